//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whr-oam/coco-cli/internal/model"
	"github.com/whr-oam/coco-cli/internal/pipeline"
)

func testRecord(country string, vals ...float64) model.CountryRecord {
	r := model.CountryRecord{Country: country, Values: make([]*float64, 8)}
	for i, v := range vals {
		r.Values[i] = model.Float(v)
	}
	return r
}

func offlineResult(t *testing.T, reference map[string]float64) (*model.Schema, *pipeline.Result) {
	t.Helper()
	schema := model.DefaultSchema()
	p := pipeline.New(schema, nil, nil)
	res, err := p.Run(context.Background(), pipeline.Input{
		Source: "whr.xlsx",
		Records: []model.CountryRecord{
			testRecord("Finland", 7.7, 1.8, 1.5, 0.7, 0.85, 0.14, 0.55, 2.0),
			testRecord("Denmark", 7.5, 1.9, 1.5, 0.7, 0.82, 0.20, 0.50, 1.9),
			testRecord("Iceland", 7.5, 1.8, 1.6, 0.72, 0.81, 0.25, 0.18, 1.6),
		},
		Reference: reference,
	})
	require.NoError(t, err)
	return schema, res
}

func TestReport_Table(t *testing.T) {
	schema, res := offlineResult(t, map[string]float64{"Finland": 1010, "Denmark": 1005, "Iceland": 1000})

	var buf bytes.Buffer
	require.NoError(t, report(&buf, schema, res, outputFlags{NoColor: true, Explain: "finland"}))
	out := buf.String()
	assert.Contains(t, out, "Finland")
	assert.Contains(t, out, "Iceland")
	assert.Contains(t, out, "(N = 3)")
	assert.Contains(t, out, res.Summary.Message)
	assert.Contains(t, out, "naive2 = ")
}

func TestReport_ExplainUnknownCountry(t *testing.T) {
	schema, res := offlineResult(t, nil)

	var buf bytes.Buffer
	err := report(&buf, schema, res, outputFlags{NoColor: true, Explain: "Atlantis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Atlantis")
}

func TestReport_JSON(t *testing.T) {
	schema, res := offlineResult(t, map[string]float64{"Finland": 1010})

	var buf bytes.Buffer
	require.NoError(t, report(&buf, schema, res, outputFlags{JSON: true}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded["results"], 3)
	assert.Contains(t, decoded, "correlations")
}

func TestReport_WritesFiles(t *testing.T) {
	schema, res := offlineResult(t, nil)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "results.csv")
	matrixPath := filepath.Join(dir, "matrix.txt")

	var buf bytes.Buffer
	require.NoError(t, report(&buf, schema, res, outputFlags{NoColor: true, Out: outPath, MatrixOut: matrixPath}))

	csvData, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csvData), "COCO:Y0,"))

	bundle, err := os.ReadFile(matrixPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(bundle), "# matrix\n"))
	assert.Contains(t, string(bundle), "Finland\nDenmark\nIceland")
}

func TestReadInput(t *testing.T) {
	data, err := readInput(strings.NewReader("1010\n1005"), "-")
	require.NoError(t, err)
	assert.Equal(t, "1010\n1005", string(data))

	path := filepath.Join(t.TempDir(), "est.txt")
	require.NoError(t, os.WriteFile(path, []byte("999,5"), 0o600))
	data, err = readInput(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "999,5", string(data))

	_, err = readInput(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
