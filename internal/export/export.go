// Package export writes result records to CSV and XLSX files and renders
// them as terminal tables.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/whr-oam/coco-cli/internal/model"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Results"

// Headers returns the export column titles: the country column, one column
// per schema attribute, then the derived metrics.
func Headers(schema *model.Schema) []string {
	h := []string{"COCO:Y0"}
	for _, a := range schema.Attributes {
		h = append(h, a.Label)
	}
	return append(h,
		"naive2", "naive2_rank",
		"naive1", "naive1_rank",
		"objectiveRank", "delta1", "delta2",
		"Becslés", "Tény+0", "COCO_Delta", "COCO_Delta/Tény",
	)
}

// cell is one export value; exactly one of the pointers is set, or none
// for an empty cell.
type cell struct {
	s *string
	f *float64
	i *int
}

func row(schema *model.Schema, r model.ResultRecord) []cell {
	country := r.Country
	constant := schema.ConstantValue
	cells := []cell{{s: &country}}
	for j := range schema.Attributes {
		var v *float64
		if j < len(r.Values) {
			v = r.Values[j]
		}
		cells = append(cells, cell{f: v})
	}
	return append(cells,
		cell{i: r.Naive2Score}, cell{i: r.Naive2Rank},
		cell{f: r.Naive1Score}, cell{i: r.Naive1Rank},
		cell{i: r.ObjectiveRank}, cell{i: r.Delta1}, cell{i: r.Delta2},
		cell{f: r.Estimation}, cell{i: &constant},
		cell{f: r.EngineDelta}, cell{f: r.EngineDeltaPct},
	)
}

func (c cell) String() string {
	switch {
	case c.s != nil:
		return *c.s
	case c.f != nil:
		return strconv.FormatFloat(*c.f, 'f', -1, 64)
	case c.i != nil:
		return strconv.Itoa(*c.i)
	}
	return ""
}

// Rows returns the records as string rows in Headers order; undefined
// values are empty strings.
func Rows(schema *model.Schema, results []model.ResultRecord) [][]string {
	out := make([][]string, len(results))
	for i, r := range results {
		cells := row(schema, r)
		out[i] = make([]string, len(cells))
		for j, c := range cells {
			out[i][j] = c.String()
		}
	}
	return out
}

// WriteCSV writes a header line and one line per record.
func WriteCSV(w io.Writer, schema *model.Schema, results []model.ResultRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers(schema)); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	if err := cw.WriteAll(Rows(schema, results)); err != nil {
		return eris.Wrap(err, "export: write csv rows")
	}
	return nil
}

// Workbook builds an XLSX file with a single Results sheet. Numbers are
// stored as numeric cells.
func Workbook(schema *model.Schema, results []model.ResultRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Headers(schema) {
		header.AddCell().SetString(h)
	}
	for _, r := range results {
		xr := sheet.AddRow()
		for _, c := range row(schema, r) {
			xc := xr.AddCell()
			switch {
			case c.s != nil:
				xc.SetString(*c.s)
			case c.f != nil:
				xc.SetFloat(*c.f)
			case c.i != nil:
				xc.SetInt(*c.i)
			}
		}
	}
	return f, nil
}

// WriteXLSX writes the Results workbook to w.
func WriteXLSX(w io.Writer, schema *model.Schema, results []model.ResultRecord) error {
	f, err := Workbook(schema, results)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

// WriteFile picks the format from the file extension (.csv or .xlsx).
func WriteFile(path string, schema *model.Schema, results []model.ResultRecord) error {
	var write func(io.Writer, *model.Schema, []model.ResultRecord) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".xlsx":
		write = WriteXLSX
	default:
		return eris.Errorf("export: unsupported file type %q", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := write(f, schema, results); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
