package workbook

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/whr-oam/coco-cli/internal/model"
)

// ErrNoDataSheet is returned when no sheet maps enough required columns.
var ErrNoDataSheet = eris.New("workbook: could not find a valid raw data sheet with required columns")

// Columns maps schema fields to column positions; -1 means not found.
type Columns struct {
	Headers    []string `json:"headers"`
	Country    int      `json:"country"`
	Attributes []int    `json:"attributes"`
}

// Header returns the header text of column i, or "".
func (c Columns) Header(i int) string {
	if i < 0 || i >= len(c.Headers) {
		return ""
	}
	return c.Headers[i]
}

// Detection is the chosen data sheet and its column mapping.
type Detection struct {
	Sheet   Sheet
	Columns Columns
	Score   int
}

// DetectColumns maps headers onto the schema using each field's aliases.
func DetectColumns(schema *model.Schema, headers []string) Columns {
	cols := Columns{
		Headers:    headers,
		Country:    matchColumn(headers, schema.CountryAliases),
		Attributes: make([]int, schema.Len()),
	}
	for j, attr := range schema.Attributes {
		cols.Attributes[j] = matchColumn(headers, attr.Aliases)
	}
	return cols
}

// Score counts the required fields (country included) that were found.
func Score(schema *model.Schema, cols Columns) int {
	n := 0
	if cols.Country >= 0 {
		n++
	}
	for j, attr := range schema.Attributes {
		if attr.Required && cols.Attributes[j] >= 0 {
			n++
		}
	}
	return n
}

// MinScore is the lowest acceptable score: every required field but one.
func MinScore(schema *model.Schema) int {
	return max(1, schema.RequiredCount()-1)
}

// PickDataSheet scores every sheet with a header and at least one data row
// and returns the best one. Ties keep the earlier sheet.
func PickDataSheet(schema *model.Schema, wb *Workbook) (*Detection, error) {
	var best *Detection
	for _, sh := range wb.Sheets {
		if len(sh.Rows) < 2 {
			continue
		}
		cols := DetectColumns(schema, sh.Rows[0])
		score := Score(schema, cols)
		if best == nil || score > best.Score {
			best = &Detection{Sheet: sh, Columns: cols, Score: score}
		}
	}
	if best == nil || best.Score < MinScore(schema) {
		return nil, ErrNoDataSheet
	}
	return best, nil
}

// matchColumn returns the first header equal to an alias after
// normalization, else the first header containing or contained in an alias.
func matchColumn(headers []string, aliases []string) int {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = model.NormalizeHeader(h)
	}
	keys := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if n := model.NormalizeHeader(a); n != "" {
			keys = append(keys, n)
		}
	}

	for _, a := range keys {
		for i, h := range norm {
			if h == a {
				return i
			}
		}
	}
	for _, a := range keys {
		for i, h := range norm {
			if h != "" && (strings.Contains(h, a) || strings.Contains(a, h)) {
				return i
			}
		}
	}
	return -1
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
