// Package acquire resolves one estimation mapping per run from exactly one
// source: a reference table carried by the workbook, the engine client, or
// a manually pasted block of numbers.
package acquire

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whr-oam/coco-cli/internal/model"
	"github.com/whr-oam/coco-cli/internal/rank"
	"github.com/whr-oam/coco-cli/pkg/coco"
)

const (
	msgReference     = "Used reference estimations from workbook (%d rows)."
	msgEngineOK      = "COCO automation completed."
	msgEngineEmpty   = "COCO response did not contain valid estimations. Use manual fallback paste."
	msgEngineOffline = "COCO automation disabled. Use matrix export + manual estimation paste fallback."
	msgManual        = "Manual estimations applied."
)

// InputError reports a manual paste that yielded no usable numbers.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "acquire: " + e.Reason
}

// Request is the input of one resolution.
type Request struct {
	Rows           []model.RankedRow
	AttributeNames []string
	// Reference holds country → estimation pairs read from the workbook.
	// A non-empty reference bypasses the engine entirely.
	Reference map[string]float64
}

// Resolution is the coordinator's answer. An unresolved resolution carries
// an empty mapping and the texts needed for a manual engine run.
type Resolution struct {
	Mapping        model.EstimationMapping `json:"mapping"`
	Automated      bool                    `json:"automated"`
	EngineCalled   bool                    `json:"engine_called"`
	Message        string                  `json:"message"`
	MatrixText     string                  `json:"matrix_text"`
	ObjectNames    []string                `json:"object_names"`
	AttributeNames []string                `json:"attribute_names"`
	RawHTML        string                  `json:"raw_html,omitempty"`
	Outcome        *coco.Outcome           `json:"-"`
}

// Resolved reports whether any country received an estimation.
func (r *Resolution) Resolved() bool {
	return r.Mapping.Len() > 0
}

// Coordinator applies the source precedence. A nil client disables the
// engine step.
type Coordinator struct {
	client coco.Client
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(client coco.Client) *Coordinator {
	return &Coordinator{client: client}
}

// Resolve picks the highest-precedence source that yields estimations:
// reference table, then the engine. When neither does, the resolution is
// returned unresolved for the manual path. An error is returned only when
// ctx is done.
func (c *Coordinator) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	objects := rank.ObjectNames(req.Rows)
	res := &Resolution{
		Mapping:        model.NewEstimationMapping(model.SourceNone),
		MatrixText:     rank.FormatRows(req.Rows),
		ObjectNames:    objects,
		AttributeNames: req.AttributeNames,
	}

	if len(req.Reference) > 0 {
		res.Mapping = FromReference(req.Reference)
		res.Message = fmt.Sprintf(msgReference, res.Mapping.Len())
		zap.L().Info("acquire: using reference estimations", zap.Int("rows", res.Mapping.Len()))
		return res, nil
	}

	if c.client == nil {
		res.Message = msgEngineOffline
		return res, nil
	}

	out, err := c.client.Run(ctx, coco.Submission{
		MatrixText:     res.MatrixText,
		ObjectNames:    objects,
		AttributeNames: req.AttributeNames,
	})
	if err != nil {
		return nil, eris.Wrap(err, "acquire: engine run")
	}
	res.Outcome = out
	res.RawHTML = out.RawHTML
	res.EngineCalled = true

	if !out.Automated {
		res.Message = out.Message
		zap.L().Warn("acquire: engine unresolved", zap.String("reason", out.Message))
		return res, nil
	}

	mapping := FromEngine(objects, out.Estimations)
	if mapping.Len() == 0 {
		res.Message = msgEngineEmpty
		return res, nil
	}

	res.Mapping = mapping
	res.Automated = true
	res.Message = msgEngineOK
	zap.L().Info("acquire: engine estimations mapped",
		zap.Int("resolved", mapping.Len()),
		zap.Int("objects", len(objects)),
	)
	return res, nil
}

// ApplyManual parses pasted text and zips it with the rows in matrix order.
// It returns an InputError when the text holds no numbers.
func (c *Coordinator) ApplyManual(rows []model.RankedRow, text string) (model.EstimationMapping, string, error) {
	vals, err := ParseManual(text, len(rows))
	if err != nil {
		return model.EstimationMapping{}, "", err
	}
	return FromManual(rank.ObjectNames(rows), vals), msgManual, nil
}

// FromReference copies the positive reference estimations.
func FromReference(ref map[string]float64) model.EstimationMapping {
	m := model.NewEstimationMapping(model.SourceReference)
	for country, v := range ref {
		if v > 0 {
			m.Values[country] = v
		}
	}
	return m
}

// FromEngine zips engine estimations with objects by position, keeping only
// plausible values.
func FromEngine(objects []string, est []*float64) model.EstimationMapping {
	m := model.NewEstimationMapping(model.SourceEngine)
	for i, name := range objects {
		if i >= len(est) || est[i] == nil {
			continue
		}
		if v := *est[i]; model.PlausibleEstimation(v) {
			m.Values[name] = v
		}
	}
	return m
}

// FromManual zips pasted values with objects by position. Values that are
// not positive are skipped but still consume their position.
func FromManual(objects []string, vals []float64) model.EstimationMapping {
	m := model.NewEstimationMapping(model.SourceManual)
	for i, name := range objects {
		if i >= len(vals) {
			break
		}
		if vals[i] > 0 {
			m.Values[name] = vals[i]
		}
	}
	return m
}

var manualNumber = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// ParseManual extracts decimal numbers (',' or '.' separator) from text in
// reading order, truncated to expected. Fewer numbers than expected is not
// an error; none at all is.
func ParseManual(text string, expected int) ([]float64, error) {
	var out []float64
	for _, line := range strings.Split(text, "\n") {
		for _, tok := range manualNumber.FindAllString(strings.TrimSpace(line), -1) {
			if v, ok := model.ParseNumber(tok); ok {
				out = append(out, v)
			}
		}
	}
	if len(out) == 0 {
		return nil, &InputError{Reason: "no numeric estimations found"}
	}
	if expected >= 0 && len(out) > expected {
		out = out[:expected]
	}
	return out, nil
}
