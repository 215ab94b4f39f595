// Package stats derives the naive composite rankings, the objective ranking
// and the agreement metrics from raw records and a resolved estimation
// mapping.
package stats

import (
	"math"

	"github.com/whr-oam/coco-cli/internal/model"
	"github.com/whr-oam/coco-cli/internal/rank"
)

// EngineCeiling is the constant column value; engine deltas are measured
// against it.
const EngineCeiling = 1000.0

// Compute builds one ResultRecord per record, in input order. Records
// missing from mapping keep nil estimation-derived fields.
//
// Per-attribute display ranks are taken over every record carrying the
// attribute. naive2 sums the matrix ranks of complete rows, so it matches
// what the engine was given.
func Compute(schema *model.Schema, records []model.CountryRecord, mapping model.EstimationMapping) []model.ResultRecord {
	n := len(records)
	results := make([]model.ResultRecord, n)
	for i, r := range records {
		results[i] = model.ResultRecord{
			Country: r.Country,
			Values:  padValues(r.Values, schema.Len()),
			Ranks:   make([]*int, schema.Len()),
			Status:  model.ResultNoData,
		}
	}

	col := make([]*float64, n)
	for j, attr := range schema.Attributes {
		for i := range records {
			col[i] = results[i].Values[j]
		}
		for i, rk := range rank.Competition(col, attr.Direction) {
			results[i].Ranks[j] = rk
		}
	}

	matrix := make(map[string][]int)
	for _, row := range rank.Transform(schema, records) {
		matrix[row.Country] = row.Ranks
	}

	naive1 := make([]*float64, n)
	naive2 := make([]*int, n)
	estimations := make([]*float64, n)
	explanatory := schema.Explanatory()
	for i := range results {
		res := &results[i]
		if ranks, ok := matrix[res.Country]; ok && records[i].Complete(schema.Len()) {
			sum := 0
			for _, rk := range ranks {
				sum += rk
			}
			res.MatrixRanks = ranks
			res.Naive2Score = model.Int(sum)
			naive2[i] = res.Naive2Score
		}
		if mean, ok := explanatoryMean(res.Values, explanatory); ok {
			res.Naive1Score = model.Float(mean)
			naive1[i] = res.Naive1Score
		}
		if v, ok := mapping.Get(res.Country); ok {
			res.Estimation = model.Float(v)
			estimations[i] = res.Estimation
		}
	}

	naive1Ranks := rank.Competition(naive1, model.Descending)
	naive2Ranks := rank.CompetitionInts(naive2, model.Ascending)
	objective := rank.Competition(estimations, model.Descending)

	ladder := schema.Index("ladder")
	for i := range results {
		res := &results[i]
		res.Naive1Rank = naive1Ranks[i]
		res.Naive2Rank = naive2Ranks[i]
		res.ObjectiveRank = objective[i]
		res.Delta1 = diff(res.Naive2Rank, res.ObjectiveRank)
		res.Delta2 = diff(res.Naive1Rank, res.ObjectiveRank)

		if res.Estimation != nil {
			d := EngineCeiling - *res.Estimation
			res.EngineDelta = model.Float(d)
			res.EngineDeltaPct = model.Float(d / EngineCeiling * 100)
		}

		hasLadder := ladder < 0 || res.Values[ladder] != nil
		if hasLadder && res.Estimation != nil {
			res.Status = model.ResultOK
		}
	}
	return results
}

// explanatoryMean averages the explanatory columns, rounded to three
// decimals. It is undefined when any of them is missing.
func explanatoryMean(values []*float64, idx []int) (float64, bool) {
	if len(idx) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, j := range idx {
		if values[j] == nil {
			return 0, false
		}
		sum += *values[j]
	}
	return round3(sum / float64(len(idx))), true
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func diff(a, b *int) *int {
	if a == nil || b == nil {
		return nil
	}
	return model.Int(*a - *b)
}

func padValues(values []*float64, n int) []*float64 {
	out := make([]*float64, n)
	copy(out, values)
	return out
}
