package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/whr-oam/coco-cli/internal/model"
	"github.com/whr-oam/coco-cli/internal/monitoring"
	"github.com/whr-oam/coco-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect estimation run history",
	Long:  "Commands for listing, viewing, and summarizing estimation runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List estimation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Source: source,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		return formatRunsList(cmd.OutOrStdout(), runs)
	},
}

// -- runs show --

type runDetail struct {
	*model.Run
	Phases []model.RunPhase `json:"phases"`
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		phases, err := st.ListPhases(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		return writeJSON(cmd.OutOrStdout(), runDetail{Run: run, Phases: phases})
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(st).Collect(ctx, int(since.Hours()))
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		if err := formatRunStats(cmd.OutOrStdout(), snap); err != nil {
			return err
		}

		alerts := monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap)
		for _, a := range alerts {
			color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), a.Message) //nolint:errcheck
		}
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (complete, awaiting_manual, failed, ...)")
	runsListCmd.Flags().String("source", "", "filter by source (workbook path, api)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 168h; 0 for all)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

func formatRunsList(out io.Writer, runs []model.Run) error {
	table := tablewriter.NewWriter(out)
	defer func() { _ = table.Close() }()
	table.Header([]string{"ID", "Source", "Status", "Countries", "Estimations", "Created", "Duration"})

	var data [][]string
	for _, r := range runs {
		countries, estimations := "", ""
		if r.Summary != nil {
			countries = strconv.Itoa(r.Summary.Countries)
			estimations = strconv.Itoa(r.Summary.Estimations)
		}
		source := r.Source
		if len(source) > 30 {
			source = "..." + source[len(source)-27:]
		}
		data = append(data, []string{
			truncateID(r.ID),
			source,
			string(r.Status),
			countries,
			estimations,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.UpdatedAt.Sub(r.CreatedAt).Round(time.Millisecond).String(),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

func formatRunStats(out io.Writer, s *monitoring.MetricsSnapshot) error {
	table := tablewriter.NewWriter(out)
	defer func() { _ = table.Close() }()

	window := "all time"
	if s.LookbackHours > 0 {
		window = fmt.Sprintf("last %dh", s.LookbackHours)
	}
	rows := [][]string{
		{"Window", window},
		{"Total runs", strconv.Itoa(s.RunsTotal)},
		{"Complete", strconv.Itoa(s.RunsComplete)},
		{"Awaiting manual", strconv.Itoa(s.RunsManual)},
		{"Failed", strconv.Itoa(s.RunsFailed)},
		{"In progress", strconv.Itoa(s.RunsActive)},
		{"Failure rate", fmt.Sprintf("%.1f%%", s.FailRate*100)},
		{"Automation rate", fmt.Sprintf("%.1f%% (%d/%d)", s.AutomationRate*100, s.AutomatedRuns, s.EngineRuns)},
	}
	if s.AvgDurationSecs > 0 {
		rows = append(rows, []string{"Avg duration", fmt.Sprintf("%.1fs", s.AvgDurationSecs)})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
