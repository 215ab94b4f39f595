package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/whr-oam/coco-cli/internal/pipeline"
)

var (
	manualEstimations string
	manualOut         outputFlags
)

var manualCmd = &cobra.Command{
	Use:   "manual <workbook.xlsx|url>",
	Short: "Apply pasted COCO estimations to a workbook",
	Long:  "Reads estimations computed by hand on the COCO site (one number per country, in matrix order; ',' or '.' decimals) and computes the comparison statistics.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text, err := readInput(cmd.InOrStdin(), manualEstimations)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ds, err := loadDataset(ctx, env.Schema, args[0])
		if err != nil {
			return err
		}

		result, err := env.Pipeline.ApplyManual(ctx, pipeline.Input{
			Source:  args[0],
			Records: ds.Records,
		}, string(text))
		if err != nil {
			return err
		}
		return report(cmd.OutOrStdout(), env.Schema, result, manualOut)
	},
}

// readInput reads path, or stdin when path is "-" or empty.
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		return data, eris.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return data, nil
}

func init() {
	manualCmd.Flags().StringVar(&manualEstimations, "estimations", "-", "file with pasted estimations (- for stdin)")
	manualOut.register(manualCmd)
	rootCmd.AddCommand(manualCmd)
}
