package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whr-oam/coco-cli/internal/rank"
	"github.com/whr-oam/coco-cli/pkg/coco"
)

const (
	msgInvalidSubmit = "matrix, objectNames, attributeNames are required arrays."
	msgOffline       = "COCO automation disabled. Use matrix export + manual estimation paste fallback."
)

// ValidationError reports a malformed Submit request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SubmitRequest is the Submit input. Fields stay raw until validated so a
// non-array value can be told apart from a missing one.
type SubmitRequest struct {
	Matrix         json.RawMessage `json:"matrix"`
	ObjectNames    json.RawMessage `json:"objectNames"`
	AttributeNames json.RawMessage `json:"attributeNames"`
}

// SubmitResponse is the Submit answer. Estimations is never null.
type SubmitResponse struct {
	OK          bool       `json:"ok"`
	Automated   bool       `json:"automated"`
	Estimations []*float64 `json:"estimations"`
	Message     string     `json:"message"`
	MatrixText  string     `json:"matrixText"`
	RawHTML     string     `json:"rawHtml"`
}

// ValidationFailure is the 400 body.
type ValidationFailure struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ProcessingFailure is the 500 body.
type ProcessingFailure struct {
	OK          bool       `json:"ok"`
	Automated   bool       `json:"automated"`
	Message     string     `json:"message"`
	Estimations []*float64 `json:"estimations"`
}

// DecodeSubmit reads a SubmitRequest and checks that all three fields are
// JSON arrays.
func DecodeSubmit(r io.Reader) (*SubmitRequest, error) {
	var req SubmitRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, &ValidationError{Message: msgInvalidSubmit}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks that all three fields are JSON arrays.
func (r *SubmitRequest) Validate() error {
	for _, raw := range []json.RawMessage{r.Matrix, r.ObjectNames, r.AttributeNames} {
		if !isArray(raw) {
			return &ValidationError{Message: msgInvalidSubmit}
		}
	}
	return nil
}

func isArray(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == '['
}

// Submit serializes the matrix and hands it to the engine client. It
// returns a *ValidationError for malformed input and any other error for a
// processing failure; an unresolved engine run is a successful response
// with Automated false.
func (p *Pipeline) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	matrix, err := decodeMatrix(req.Matrix)
	if err != nil {
		return nil, err
	}
	objects, err := decodeNames(req.ObjectNames)
	if err != nil {
		return nil, eris.Wrap(err, "objectNames")
	}
	attributes, err := decodeNames(req.AttributeNames)
	if err != nil {
		return nil, eris.Wrap(err, "attributeNames")
	}

	resp := &SubmitResponse{
		OK:          true,
		Estimations: []*float64{},
		MatrixText:  rank.FormatMatrix(matrix),
	}

	if p.client == nil {
		resp.Message = msgOffline
		return resp, nil
	}

	out, err := p.client.Run(ctx, coco.Submission{
		MatrixText:     resp.MatrixText,
		ObjectNames:    objects,
		AttributeNames: attributes,
	})
	if err != nil {
		return nil, err
	}

	resp.Automated = out.Automated
	resp.Message = out.Message
	resp.RawHTML = out.RawHTML
	if out.Estimations != nil {
		resp.Estimations = out.Estimations
	}
	zap.L().Info("pipeline: submit handled",
		zap.Int("objects", len(objects)),
		zap.Bool("automated", resp.Automated),
	)
	return resp, nil
}

// Failure maps a Submit error to its HTTP status and body.
func Failure(err error) (int, any) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ValidationFailure{OK: false, Message: ve.Message}
	}
	return http.StatusInternalServerError, ProcessingFailure{
		OK:          false,
		Automated:   false,
		Message:     "Proxy error: " + err.Error(),
		Estimations: []*float64{},
	}
}

// decodeMatrix keeps numeric cells and turns any other cell into an empty
// one.
func decodeMatrix(raw json.RawMessage) ([][]*float64, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, eris.Wrap(err, "matrix")
	}
	out := make([][]*float64, len(rows))
	for i, row := range rows {
		var cells []any
		if err := json.Unmarshal(row, &cells); err != nil {
			return nil, eris.Wrapf(err, "matrix row %d is not an array", i)
		}
		vals := make([]*float64, len(cells))
		for j, c := range cells {
			if f, ok := c.(float64); ok {
				v := f
				vals[j] = &v
			}
		}
		out[i] = vals
	}
	return out, nil
}

// decodeNames stringifies each array element: strings as-is, anything else
// by its JSON text.
func decodeNames(raw json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, eris.Wrap(err, "decode names")
	}
	out := make([]string, len(items))
	for i, it := range items {
		var str string
		if err := json.Unmarshal(it, &str); err == nil {
			out[i] = str
			continue
		}
		out[i] = string(bytes.TrimSpace(it))
	}
	return out, nil
}
