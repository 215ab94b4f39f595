package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/whr-oam/coco-cli/internal/pipeline"
)

var submitCmd = &cobra.Command{
	Use:   "submit <request.json|->",
	Short: "Send a raw matrix request to the COCO engine",
	Long:  `Reads {"matrix": [[...]], "objectNames": [...], "attributeNames": [...]} and prints the engine response as JSON.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		status, body := handleSubmit(ctx, env.Pipeline, bytes.NewReader(data))
		if err := writeJSON(cmd.OutOrStdout(), body); err != nil {
			return err
		}
		if status != http.StatusOK {
			return eris.Errorf("submit failed with status %d", status)
		}
		return nil
	},
}

// handleSubmit decodes and runs one Submit request and returns the HTTP
// status and body to report.
func handleSubmit(ctx context.Context, p *pipeline.Pipeline, r io.Reader) (int, any) {
	req, err := pipeline.DecodeSubmit(r)
	if err == nil {
		var resp *pipeline.SubmitResponse
		if resp, err = p.Submit(ctx, req); err == nil {
			return http.StatusOK, resp
		}
	}
	return pipeline.Failure(err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(submitCmd)
}
