package model

// CountryRecord is one ingested dataset row. Values are aligned with the
// schema's attribute order; a nil entry means the value was absent.
type CountryRecord struct {
	Country string     `json:"country"`
	Values  []*float64 `json:"values"`
}

// Value returns the raw value at column i, or nil.
func (r CountryRecord) Value(i int) *float64 {
	if i < 0 || i >= len(r.Values) {
		return nil
	}
	return r.Values[i]
}

// Complete reports whether every one of the n attributes is present.
func (r CountryRecord) Complete(n int) bool {
	if len(r.Values) < n {
		return false
	}
	for _, v := range r.Values[:n] {
		if v == nil {
			return false
		}
	}
	return true
}

// RankedRow is the engine input row for a complete CountryRecord.
type RankedRow struct {
	Country  string `json:"country"`
	Ranks    []int  `json:"ranks"`
	Constant int    `json:"constant"`
}

// Values returns the ranks followed by the constant column.
func (r RankedRow) Values() []float64 {
	out := make([]float64, 0, len(r.Ranks)+1)
	for _, rk := range r.Ranks {
		out = append(out, float64(rk))
	}
	return append(out, float64(r.Constant))
}

// EstimationSource names which of the three sources produced a mapping.
type EstimationSource string

const (
	SourceNone      EstimationSource = ""
	SourceReference EstimationSource = "reference"
	SourceEngine    EstimationSource = "engine"
	SourceManual    EstimationSource = "manual"
)

// EstimationMapping maps country name to a positive estimation. It is built
// by exactly one source per run and may be partial.
type EstimationMapping struct {
	Source EstimationSource   `json:"source"`
	Values map[string]float64 `json:"values"`
}

// NewEstimationMapping returns an empty mapping for the given source.
func NewEstimationMapping(source EstimationSource) EstimationMapping {
	return EstimationMapping{Source: source, Values: make(map[string]float64)}
}

// Get returns the estimation for country, if resolved.
func (m EstimationMapping) Get(country string) (float64, bool) {
	v, ok := m.Values[country]
	return v, ok
}

// Len returns the number of resolved countries.
func (m EstimationMapping) Len() int {
	return len(m.Values)
}

// ResultStatus flags whether a result row has both ladder and estimation.
type ResultStatus string

const (
	ResultOK     ResultStatus = "OK"
	ResultNoData ResultStatus = "NO DATA"
)

// ResultRecord is the fully derived output row for one CountryRecord.
// Nil fields are undefined (missing inputs or unresolved estimation).
// MatrixRanks is set only for complete rows and holds the ranks the engine
// received.
type ResultRecord struct {
	Country        string       `json:"country"`
	Values         []*float64   `json:"values"`
	Ranks          []*int       `json:"ranks"`
	MatrixRanks    []int        `json:"matrix_ranks,omitempty"`
	Naive1Score    *float64     `json:"naive1_score"`
	Naive1Rank     *int         `json:"naive1_rank"`
	Naive2Score    *int         `json:"naive2_score"`
	Naive2Rank     *int         `json:"naive2_rank"`
	Estimation     *float64     `json:"estimation"`
	ObjectiveRank  *int         `json:"objective_rank"`
	Delta1         *int         `json:"delta1"`
	Delta2         *int         `json:"delta2"`
	EngineDelta    *float64     `json:"engine_delta"`
	EngineDeltaPct *float64     `json:"engine_delta_pct"`
	Status         ResultStatus `json:"status"`
}

// Correlation is a Pearson coefficient over N complete pairs; R is nil when
// undefined.
type Correlation struct {
	Label string   `json:"label"`
	R     *float64 `json:"r"`
	N     int      `json:"n"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
