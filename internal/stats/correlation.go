package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/whr-oam/coco-cli/internal/model"
)

// Field extracts one numeric column from a result record; nil is missing.
type Field func(r model.ResultRecord) *float64

// Pearson returns the product-moment correlation over the pairs where both
// values are present, together with the pair count. The coefficient is nil
// when fewer than two pairs exist or either side has zero variance.
func Pearson(xs, ys []*float64) (*float64, int) {
	var px, py []float64
	for i := range xs {
		if i >= len(ys) || xs[i] == nil || ys[i] == nil {
			continue
		}
		px = append(px, *xs[i])
		py = append(py, *ys[i])
	}

	n := len(px)
	if n < 2 || constant(px) || constant(py) {
		return nil, n
	}

	r := stat.Correlation(px, py, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, n
	}
	return model.Float(r), n
}

// Correlate computes Pearson between two fields of results.
func Correlate(label string, results []model.ResultRecord, x, y Field) model.Correlation {
	xs := make([]*float64, len(results))
	ys := make([]*float64, len(results))
	for i, r := range results {
		xs[i] = x(r)
		ys[i] = y(r)
	}
	r, n := Pearson(xs, ys)
	return model.Correlation{Label: label, R: r, N: n}
}

// Correlations returns the standard agreement report: naive2 rank against
// objective rank, and ladder score against estimation.
func Correlations(schema *model.Schema, results []model.ResultRecord) []model.Correlation {
	return []model.Correlation{
		Correlate("corrRanks = corr(naive2Rank, objectiveRank)", results, Naive2Rank, ObjectiveRank),
		Correlate("corrScores = corr(LadderScore, Estimation)", results, Attribute(schema.Index("ladder")), Estimation),
	}
}

// Naive2Rank selects the naive2 rank.
func Naive2Rank(r model.ResultRecord) *float64 { return intField(r.Naive2Rank) }

// Naive1Rank selects the naive1 rank.
func Naive1Rank(r model.ResultRecord) *float64 { return intField(r.Naive1Rank) }

// ObjectiveRank selects the objective rank.
func ObjectiveRank(r model.ResultRecord) *float64 { return intField(r.ObjectiveRank) }

// Estimation selects the resolved estimation.
func Estimation(r model.ResultRecord) *float64 { return r.Estimation }

// Attribute selects the raw value at schema column i.
func Attribute(i int) Field {
	return func(r model.ResultRecord) *float64 {
		if i < 0 || i >= len(r.Values) {
			return nil
		}
		return r.Values[i]
	}
}

func intField(v *int) *float64 {
	if v == nil {
		return nil
	}
	return model.Float(float64(*v))
}

func constant(vs []float64) bool {
	for _, v := range vs[1:] {
		if v != vs[0] {
			return false
		}
	}
	return true
}
