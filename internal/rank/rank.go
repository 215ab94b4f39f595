// Package rank derives competition ranks and the engine input matrix from
// ingested country records.
package rank

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/whr-oam/coco-cli/internal/model"
)

// Competition assigns competition ranks ("1224" style) to values. Nil
// entries stay nil and are excluded from the ordering. Ties share the rank
// of the first occurrence; the next distinct value is ranked by the count
// of strictly preceding values plus one.
func Competition(values []*float64, dir model.Direction) []*int {
	type entry struct {
		idx int
		v   float64
	}

	entries := make([]entry, 0, len(values))
	for i, v := range values {
		if v == nil || math.IsNaN(*v) {
			continue
		}
		entries = append(entries, entry{idx: i, v: *v})
	}

	sort.SliceStable(entries, func(a, b int) bool {
		if dir == model.Ascending {
			return entries[a].v < entries[b].v
		}
		return entries[a].v > entries[b].v
	})

	out := make([]*int, len(values))
	rank := 0
	for pos, e := range entries {
		if pos == 0 || e.v != entries[pos-1].v {
			rank = pos + 1
		}
		out[e.idx] = model.Int(rank)
	}
	return out
}

// CompetitionInts is Competition over integer scores.
func CompetitionInts(values []*int, dir model.Direction) []*int {
	fs := make([]*float64, len(values))
	for i, v := range values {
		if v != nil {
			fs[i] = model.Float(float64(*v))
		}
	}
	return Competition(fs, dir)
}

// CompleteRows returns the records carrying every schema attribute, in
// input order.
func CompleteRows(schema *model.Schema, records []model.CountryRecord) []model.CountryRecord {
	out := make([]model.CountryRecord, 0, len(records))
	for _, r := range records {
		if r.Complete(schema.Len()) {
			out = append(out, r)
		}
	}
	return out
}

// Transform ranks each attribute column across the complete records and
// returns one RankedRow per complete record, in input order, each ending
// with the schema's constant column.
func Transform(schema *model.Schema, records []model.CountryRecord) []model.RankedRow {
	complete := CompleteRows(schema, records)
	rows := make([]model.RankedRow, len(complete))
	for i, r := range complete {
		rows[i] = model.RankedRow{
			Country:  r.Country,
			Ranks:    make([]int, schema.Len()),
			Constant: schema.ConstantValue,
		}
	}

	col := make([]*float64, len(complete))
	for j, attr := range schema.Attributes {
		for i, r := range complete {
			col[i] = r.Value(j)
		}
		for i, rk := range Competition(col, attr.Direction) {
			if rk != nil {
				rows[i].Ranks[j] = *rk
			}
		}
	}
	return rows
}

// Matrix returns the numeric engine matrix for rows.
func Matrix(rows []model.RankedRow) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Values()
	}
	return out
}

// ObjectNames returns the country names of rows in matrix order.
func ObjectNames(rows []model.RankedRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Country
	}
	return out
}

// FormatMatrix serializes a matrix the way the engine form expects it:
// numbers space-separated within a row, rows separated by carriage returns.
// Nil and non-finite cells become empty strings.
func FormatMatrix(matrix [][]*float64) string {
	lines := make([]string, len(matrix))
	for i, row := range matrix {
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
				continue
			}
			cells[j] = strconv.FormatFloat(*v, 'f', -1, 64)
		}
		lines[i] = strings.Join(cells, " ")
	}
	return strings.Join(lines, "\r")
}

// FormatRows is FormatMatrix over ranked rows.
func FormatRows(rows []model.RankedRow) string {
	m := make([][]*float64, len(rows))
	for i, r := range rows {
		vals := r.Values()
		m[i] = make([]*float64, len(vals))
		for j := range vals {
			m[i][j] = &vals[j]
		}
	}
	return FormatMatrix(m)
}
