package stats

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/whr-oam/coco-cli/internal/model"
)

// Explain returns the formula trace of one result record.
func Explain(schema *model.Schema, r model.ResultRecord) []string {
	keys := make([]string, schema.Len())
	terms := make([]string, schema.Len())
	for j, attr := range schema.Attributes {
		keys[j] = attr.Key + "Rank"
		terms[j] = "NA"
		if j < len(r.MatrixRanks) {
			terms[j] = strconv.Itoa(r.MatrixRanks[j])
		}
	}

	var explanatory []string
	for _, j := range schema.Explanatory() {
		explanatory = append(explanatory, schema.Attributes[j].Key)
	}

	return []string{
		"naive2 = " + strings.Join(keys, " + "),
		fmt.Sprintf("naive2 = %s = %s", strings.Join(terms, " + "), fmtInt(r.Naive2Score)),
		fmt.Sprintf("naive2_rank = RANK.EQ(naive2, asc) = %s", fmtInt(r.Naive2Rank)),
		fmt.Sprintf("naive1 = AVG(%s) = %s", strings.Join(explanatory, ", "), fmtFloat(r.Naive1Score, 3)),
		fmt.Sprintf("naive1_rank = RANK.EQ(naive1, desc) = %s", fmtInt(r.Naive1Rank)),
		fmt.Sprintf("objectiveRank = RANK.EQ(estimation, desc) = %s", fmtInt(r.ObjectiveRank)),
		fmt.Sprintf("delta1 = naive2_rank - objectiveRank = %s - %s = %s", fmtInt(r.Naive2Rank), fmtInt(r.ObjectiveRank), fmtInt(r.Delta1)),
		fmt.Sprintf("delta2 = naive1_rank - objectiveRank = %s - %s = %s", fmtInt(r.Naive1Rank), fmtInt(r.ObjectiveRank), fmtInt(r.Delta2)),
		fmt.Sprintf("COCO_Delta = 1000 - estimation = %s", fmtFloat(r.EngineDelta, 3)),
		fmt.Sprintf("COCO_Delta/Teny (%%) = %s", fmtFloat(r.EngineDeltaPct, 2)),
	}
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
