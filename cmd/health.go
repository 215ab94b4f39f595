package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the COCO landing page",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Engine.Disabled {
			return eris.New("health: engine is disabled")
		}
		client := newEngineClient(cfg.Engine)

		report, err := client.Health(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "health")
		}
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if !report.OK {
			return eris.Errorf("health: landing page returned status %d", report.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
