package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/whr-oam/coco-cli/internal/export"
	"github.com/whr-oam/coco-cli/internal/model"
	"github.com/whr-oam/coco-cli/internal/pipeline"
	"github.com/whr-oam/coco-cli/internal/stats"
)

// outputFlags are shared by run and manual.
type outputFlags struct {
	Out       string
	MatrixOut string
	Explain   string
	JSON      bool
	NoColor   bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Out, "out", "", "write results to a .csv or .xlsx file")
	cmd.Flags().StringVar(&o.MatrixOut, "matrix-out", "", "write matrix, object and attribute texts for a manual engine run")
	cmd.Flags().StringVar(&o.Explain, "explain", "", "print the formula trace for one country")
	cmd.Flags().BoolVar(&o.JSON, "json", false, "print the full result as JSON")
	cmd.Flags().BoolVar(&o.NoColor, "no-color", false, "disable colored output")
}

var runOut outputFlags

var runCmd = &cobra.Command{
	Use:   "run <workbook.xlsx|url>",
	Short: "Rank a workbook and obtain COCO estimations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ds, err := loadDataset(ctx, env.Schema, args[0])
		if err != nil {
			return err
		}

		result, err := env.Pipeline.Run(ctx, pipeline.Input{
			Source:    args[0],
			Records:   ds.Records,
			Reference: ds.Reference,
		})
		if err != nil {
			return eris.Wrap(err, "run")
		}
		return report(cmd.OutOrStdout(), env.Schema, result, runOut)
	},
}

// report prints the result and writes the requested files.
func report(w io.Writer, schema *model.Schema, result *pipeline.Result, o outputFlags) error {
	if o.MatrixOut != "" && result.Resolution != nil {
		f, err := os.Create(o.MatrixOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", o.MatrixOut)
		}
		res := result.Resolution
		werr := export.WriteManualBundle(f, res.MatrixText, res.ObjectNames, res.AttributeNames)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return eris.Wrapf(werr, "write %s", o.MatrixOut)
		}
	}

	if o.Out != "" {
		if err := export.WriteFile(o.Out, schema, result.Results); err != nil {
			return err
		}
		zap.L().Info("results exported", zap.String("path", o.Out))
	}

	if o.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if o.NoColor {
		color.NoColor = true
	}
	if err := export.RenderTable(w, schema, result.Results, !color.NoColor); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := export.RenderCorrelations(w, result.Correlations); err != nil {
		return err
	}

	msg := result.Summary.Message
	if result.Resolution != nil && result.Resolution.Resolved() {
		color.New(color.FgGreen).Fprintln(w, msg) //nolint:errcheck
	} else {
		color.New(color.FgYellow).Fprintln(w, msg) //nolint:errcheck
	}

	if o.Explain != "" {
		found := false
		for _, r := range result.Results {
			if model.NormalizeName(r.Country) != model.NormalizeName(o.Explain) {
				continue
			}
			found = true
			fmt.Fprintf(w, "\n%s\n", r.Country)
			for _, line := range stats.Explain(schema, r) {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
		if !found {
			return eris.Errorf("explain: country %q not found", o.Explain)
		}
	}
	return nil
}

func init() {
	runOut.register(runCmd)
	rootCmd.AddCommand(runCmd)
}
