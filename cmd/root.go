package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/whr-oam/coco-cli/internal/config"
)

var cfg *config.Config

var (
	noStore bool
	offline bool
)

var rootCmd = &cobra.Command{
	Use:   "coco-cli",
	Short: "WHR objective ranking with the COCO Y0 engine",
	Long:  "Ranks World Happiness Report attributes, obtains COCO Y0 estimations (reference sheet, remote engine or manual paste) and compares them with naive rankings.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if noStore {
			c.Store.Disabled = true
		}
		if offline {
			c.Engine.Disabled = true
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noStore, "no-store", false, "do not record run history")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "never contact the COCO engine")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
