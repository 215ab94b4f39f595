package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusQueued, "queued"},
		{RunStatusRanking, "ranking"},
		{RunStatusAcquiring, "acquiring"},
		{RunStatusComputing, "computing"},
		{RunStatusManual, "awaiting_manual"},
		{RunStatusComplete, "complete"},
		{RunStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestDefaultSchema(t *testing.T) {
	t.Parallel()

	s := DefaultSchema()
	require.Equal(t, 8, s.Len())
	assert.Equal(t, 1000, s.ConstantValue)
	assert.Equal(t, "Y", s.ConstantLabel)
	assert.Equal(t, 8, s.RequiredCount())

	corr := s.Attributes[s.Index("corr")]
	assert.Equal(t, Ascending, corr.Direction)
	for _, key := range []string{"ladder", "gdp", "soc", "life", "free", "gen", "dystopia"} {
		assert.Equal(t, Descending, s.Attributes[s.Index(key)].Direction, key)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, s.Explanatory())
	assert.Equal(t, -1, s.Index("unknown"))

	names := s.EngineAttributeNames()
	require.Len(t, names, 9)
	assert.Equal(t, "Ladder score", names[0])
	assert.Equal(t, "Y", names[8])
}

func TestParseSchema_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "constant_value: 1000\n", "no attributes"},
		{"bad direction", "constant_value: 1000\nattributes:\n  - key: a\n    direction: up\n", "invalid direction"},
		{"duplicate", "constant_value: 1000\nattributes:\n  - key: a\n    direction: asc\n  - key: a\n    direction: desc\n", "duplicate"},
		{"no constant", "attributes:\n  - key: a\n    direction: asc\n", "constant_value"},
		{"missing key", "constant_value: 5\nattributes:\n  - direction: asc\n", "no key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSchema([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadSchema_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "schema.yaml")
	body := "constant_value: 500\nattributes:\n  - key: a\n    label: A\n    direction: asc\n    required: true\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 500, s.ConstantValue)
	assert.Equal(t, []string{"A", "Y"}, s.EngineAttributeNames())

	def, err := LoadSchema("")
	require.NoError(t, err)
	assert.Equal(t, 8, def.Len())

	_, err = LoadSchema(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestCountryRecord_Complete(t *testing.T) {
	t.Parallel()

	full := CountryRecord{Country: "A", Values: []*float64{Float(1), Float(2)}}
	assert.True(t, full.Complete(2))
	assert.False(t, full.Complete(3))

	partial := CountryRecord{Country: "B", Values: []*float64{Float(1), nil}}
	assert.False(t, partial.Complete(2))
	assert.Nil(t, partial.Value(1))
	assert.Nil(t, partial.Value(7))
	assert.InDelta(t, 1.0, *partial.Value(0), 1e-9)
}

func TestRankedRow_Values(t *testing.T) {
	t.Parallel()

	row := RankedRow{Country: "A", Ranks: []int{3, 1}, Constant: 1000}
	assert.Equal(t, []float64{3, 1, 1000}, row.Values())
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "finland", NormalizeName("  Finland "))
	assert.Equal(t, NormalizeName("TÜRKIYE"), NormalizeName("türkiye"))
	// Decomposed and precomposed forms match.
	assert.Equal(t, NormalizeName("Cura\u00e7ao"), NormalizeName("Curac\u0327ao"))
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "explainedbyloggdppercapita", NormalizeHeader("Explained by: Log GDP per capita"))
	assert.Equal(t, "dystopiaresidual", NormalizeHeader("Dystopia + residual"))
	assert.Equal(t, "rank2", NormalizeHeader(" Rank 2 "))
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"7.741", 7.741, true},
		{"7,741", 7.741, true},
		{" 1 000 ", 1000, true},
		{"-3.5", -3.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"inf", 0, false},
		{"NaN", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, tt.in)
		}
	}
}

func TestPlausibleEstimation(t *testing.T) {
	t.Parallel()

	assert.True(t, PlausibleEstimation(0.5))
	assert.True(t, PlausibleEstimation(9999.99))
	assert.False(t, PlausibleEstimation(0))
	assert.False(t, PlausibleEstimation(-1))
	assert.False(t, PlausibleEstimation(10000))
}

func TestEstimationMapping(t *testing.T) {
	t.Parallel()

	m := NewEstimationMapping(SourceManual)
	m.Values["Finland"] = 990.5
	v, ok := m.Get("Finland")
	assert.True(t, ok)
	assert.InDelta(t, 990.5, v, 1e-9)
	_, ok = m.Get("Denmark")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, SourceManual, m.Source)
}
