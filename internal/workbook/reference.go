package workbook

import (
	"github.com/whr-oam/coco-cli/internal/model"
)

// referenceSheet is the normalized name of the sheet holding a previous
// engine run's estimations.
const referenceSheet = "rank2"

var (
	referenceCountryHeaders    = map[string]bool{"countryattributename": true, "countryname": true}
	referenceEstimationHeaders = map[string]bool{"est": true, "estimation": true}
)

// ReferenceEstimations reads country → estimation pairs from the reference
// sheet. The header row is found by scanning for a country column and an
// estimation column; rows below it with a country and a number are kept.
// It returns nil when the workbook has no usable reference sheet.
func ReferenceEstimations(wb *Workbook) map[string]float64 {
	var sheet *Sheet
	for i := range wb.Sheets {
		if model.NormalizeHeader(wb.Sheets[i].Name) == referenceSheet {
			sheet = &wb.Sheets[i]
			break
		}
	}
	if sheet == nil {
		return nil
	}

	headerRow, countryCol, estCol := -1, -1, -1
	for r, row := range sheet.Rows {
		c, e := findHeader(row, referenceCountryHeaders), findHeader(row, referenceEstimationHeaders)
		if c >= 0 && e >= 0 {
			headerRow, countryCol, estCol = r, c, e
			break
		}
	}
	if headerRow < 0 {
		return nil
	}

	out := make(map[string]float64)
	for _, row := range sheet.Rows[headerRow+1:] {
		country := trimmed(cell(row, countryCol))
		if country == "" {
			continue
		}
		v, ok := model.ParseNumber(cell(row, estCol))
		if !ok {
			continue
		}
		out[country] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func findHeader(row []string, names map[string]bool) int {
	for i, v := range row {
		if names[model.NormalizeHeader(v)] {
			return i
		}
	}
	return -1
}
