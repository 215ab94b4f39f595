package main

import (
	"context"
	"io"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whr-oam/coco-cli/internal/model"
	"github.com/whr-oam/coco-cli/internal/pipeline"
)

var batchConcurrency int

var batchCmd = &cobra.Command{
	Use:   "batch <workbook.xlsx|url>...",
	Short: "Run several workbooks concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		outcomes := processBatch(ctx, args, batchConcurrency, func(ctx context.Context, path string) (*pipeline.Result, error) {
			ds, err := loadDataset(ctx, env.Schema, path)
			if err != nil {
				return nil, err
			}
			return env.Pipeline.Run(ctx, pipeline.Input{Source: path, Records: ds.Records, Reference: ds.Reference})
		})
		if err := formatBatch(cmd.OutOrStdout(), outcomes); err != nil {
			return err
		}
		for _, o := range outcomes {
			if o.Err != nil {
				return eris.New("batch: one or more workbooks failed")
			}
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 4, "max workbooks processed at once")
	rootCmd.AddCommand(batchCmd)
}

// runFunc processes one workbook path.
type runFunc func(ctx context.Context, path string) (*pipeline.Result, error)

// batchOutcome is the result of one workbook in a batch.
type batchOutcome struct {
	Path   string
	Result *pipeline.Result
	Err    error
}

// processBatch runs every path with at most concurrency runs in flight.
// One failing workbook does not stop the others. Outcomes keep the input
// order.
func processBatch(ctx context.Context, paths []string, concurrency int, run runFunc) []batchOutcome {
	outcomes := make([]batchOutcome, len(paths))
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("workbooks", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("workbook", path))

			result, err := run(gctx, path)

			outcomes[i] = batchOutcome{Path: path, Result: result, Err: err}

			if err != nil {
				failed.Add(1)
				log.Error("batch run failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			log.Info("batch run complete", zap.Int("estimations", result.Summary.Estimations))
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return outcomes
}

func formatBatch(out io.Writer, outcomes []batchOutcome) error {
	table := tablewriter.NewWriter(out)
	defer func() { _ = table.Close() }()
	table.Header([]string{"Workbook", "Status", "Countries", "Estimations", "Message"})

	var data [][]string
	for _, o := range outcomes {
		if o.Err != nil {
			data = append(data, []string{o.Path, string(model.RunStatusFailed), "", "", o.Err.Error()})
			continue
		}
		s := o.Result.Summary
		status := model.RunStatusManual
		if o.Result.Resolution != nil && o.Result.Resolution.Resolved() {
			status = model.RunStatusComplete
		}
		data = append(data, []string{
			o.Path,
			string(status),
			strconv.Itoa(s.Countries),
			strconv.Itoa(s.Estimations),
			s.Message,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
