// Package workbook ingests the source spreadsheet: it picks the raw data
// sheet by header heuristics, maps its columns onto the attribute schema,
// and reads an optional reference estimation sheet.
package workbook

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/whr-oam/coco-cli/internal/fetcher"
	"github.com/whr-oam/coco-cli/internal/model"
)

// Sheet is one worksheet as raw cell strings.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is the ordered set of sheets of a spreadsheet file.
type Workbook struct {
	Sheets []Sheet
}

// Dataset is the ingested content of a workbook.
type Dataset struct {
	SheetName string                `json:"sheet_name"`
	Columns   Columns               `json:"columns"`
	Records   []model.CountryRecord `json:"records"`
	// Reference is nil when the workbook carries no reference sheet.
	Reference map[string]float64    `json:"reference,omitempty"`
}

// Open reads an XLSX file.
func Open(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: open %s", path)
	}
	return fromFile(f), nil
}

// OpenBinary reads an XLSX document from memory.
func OpenBinary(data []byte) (*Workbook, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "workbook: open binary")
	}
	return fromFile(f), nil
}

func fromFile(f *xlsx.File) *Workbook {
	wb := &Workbook{Sheets: make([]Sheet, 0, len(f.Sheets))}
	for _, sh := range f.Sheets {
		s := Sheet{Name: sh.Name}
		for _, row := range sh.Rows {
			if row == nil {
				s.Rows = append(s.Rows, nil)
				continue
			}
			s.Rows = append(s.Rows, rowToStrings(row))
		}
		wb.Sheets = append(wb.Sheets, s)
	}
	return wb
}

// rowToStrings keeps the raw stored value so numeric cells are not rounded
// by their display format.
func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell == nil {
			continue
		}
		cells[j] = cell.Value
	}
	return cells
}

// Load opens path and ingests it against schema.
func Load(schema *model.Schema, path string) (*Dataset, error) {
	wb, err := Open(path)
	if err != nil {
		return nil, err
	}
	return wb.Dataset(schema)
}

// LoadRemote downloads an XLSX document with f and ingests it against
// schema.
func LoadRemote(ctx context.Context, f fetcher.Fetcher, schema *model.Schema, url string) (*Dataset, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: fetch %s", url)
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: read %s", url)
	}
	wb, err := OpenBinary(data)
	if err != nil {
		return nil, err
	}
	return wb.Dataset(schema)
}

// Dataset picks the data sheet, reads its records and any reference
// estimations.
func (wb *Workbook) Dataset(schema *model.Schema) (*Dataset, error) {
	det, err := PickDataSheet(schema, wb)
	if err != nil {
		return nil, err
	}

	for j, attr := range schema.Attributes {
		zap.L().Debug("workbook: column mapped",
			zap.String("attribute", attr.Key),
			zap.String("header", det.Columns.Header(det.Columns.Attributes[j])),
		)
	}

	ds := &Dataset{
		SheetName: det.Sheet.Name,
		Columns:   det.Columns,
		Records:   Records(schema, det.Sheet, det.Columns),
		Reference: ReferenceEstimations(wb),
	}
	zap.L().Info("workbook: dataset loaded",
		zap.String("sheet", ds.SheetName),
		zap.Int("score", det.Score),
		zap.Int("records", len(ds.Records)),
		zap.Int("reference_rows", len(ds.Reference)),
	)
	return ds, nil
}

// Records reads one CountryRecord per data row. Rows without a country are
// dropped; a repeated country keeps its first row.
func Records(schema *model.Schema, sheet Sheet, cols Columns) []model.CountryRecord {
	if len(sheet.Rows) < 2 || cols.Country < 0 {
		return nil
	}

	var out []model.CountryRecord
	seen := make(map[string]bool)
	for _, row := range sheet.Rows[1:] {
		country := trimmed(cell(row, cols.Country))
		if country == "" {
			continue
		}
		key := model.NormalizeName(country)
		if seen[key] {
			zap.L().Warn("workbook: duplicate country row skipped", zap.String("country", country))
			continue
		}
		seen[key] = true

		rec := model.CountryRecord{Country: country, Values: make([]*float64, schema.Len())}
		for j, col := range cols.Attributes {
			if col < 0 {
				continue
			}
			if v, ok := model.ParseNumber(cell(row, col)); ok {
				rec.Values[j] = model.Float(v)
			}
		}
		out = append(out, rec)
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
