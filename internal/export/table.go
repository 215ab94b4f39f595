package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/whr-oam/coco-cli/internal/model"
)

// RenderTable writes a compact result table: ranks, estimation and status
// per country. Deltas are colored when useColor is set.
func RenderTable(w io.Writer, schema *model.Schema, results []model.ResultRecord, useColor bool) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	ladder := "Ladder"
	if i := schema.Index("ladder"); i >= 0 {
		ladder = schema.Attributes[i].Label
	}
	table.Header([]string{
		"Country", ladder, "naive2", "naive2 rank", "naive1", "naive1 rank",
		"Estimation", "Objective rank", "delta1", "delta2", "Status",
	})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	red, green := fmt.Sprint, fmt.Sprint
	if useColor {
		red = color.New(color.FgRed).SprintFunc()
		green = color.New(color.FgGreen).SprintFunc()
	}
	delta := func(v *int) string {
		switch {
		case v == nil:
			return "NA"
		case *v > 0:
			return red("+" + strconv.Itoa(*v))
		case *v < 0:
			return green(strconv.Itoa(*v))
		}
		return "0"
	}

	ladderIdx := schema.Index("ladder")
	var data [][]string
	for _, r := range results {
		var ladderVal *float64
		if ladderIdx >= 0 && ladderIdx < len(r.Values) {
			ladderVal = r.Values[ladderIdx]
		}
		status := string(r.Status)
		if r.Status == model.ResultOK {
			status = green(status)
		} else {
			status = red(status)
		}
		data = append(data, []string{
			r.Country,
			fmtFloat(ladderVal, 3),
			fmtInt(r.Naive2Score),
			fmtInt(r.Naive2Rank),
			fmtFloat(r.Naive1Score, 3),
			fmtInt(r.Naive1Rank),
			fmtFloat(r.Estimation, 3),
			fmtInt(r.ObjectiveRank),
			delta(r.Delta1),
			delta(r.Delta2),
			status,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// RenderCorrelations writes one line per correlation.
func RenderCorrelations(w io.Writer, corrs []model.Correlation) error {
	for _, c := range corrs {
		r := "NA"
		if c.R != nil {
			r = strconv.FormatFloat(*c.R, 'f', 4, 64)
		}
		if _, err := fmt.Fprintf(w, "%s: r = %s (N = %d)\n", c.Label, r, c.N); err != nil {
			return err
		}
	}
	return nil
}

// WriteManualBundle writes the three texts needed to run the engine by
// hand: the matrix, the object names and the attribute names.
func WriteManualBundle(w io.Writer, matrixText string, objects, attributes []string) error {
	sections := []struct {
		title string
		body  string
	}{
		{"# matrix", strings.ReplaceAll(matrixText, "\r", "\n")},
		{"# objects", strings.Join(objects, "\n")},
		{"# attributes", strings.Join(attributes, "\n")},
	}
	for i, s := range sections {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", s.title, s.body); err != nil {
			return err
		}
	}
	return nil
}

func fmtInt(v *int) string {
	if v == nil {
		return "NA"
	}
	return strconv.Itoa(*v)
}

func fmtFloat(v *float64, prec int) string {
	if v == nil {
		return "NA"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
