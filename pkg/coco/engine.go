package coco

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	msgSucceeded       = "COCO Y0 automation succeeded."
	msgSucceededDetail = "COCO Y0 automation succeeded (detail page parse)."
	msgUnparsed        = "COCO responded but estimation rows could not be parsed reliably."
	msgFetchFailed     = "COCO network fetch failed (%s). Use manual fallback (matrix/object/attribute + paste estimations)."
	msgExhausted       = "COCO could not be executed automatically (%s). Use matrix export + manual estimation paste fallback."
)

// Run drives one acquisition: fetch form, extract metadata, then try every
// payload candidate against every target until a response (or its detail
// page) parses. Steps run strictly in sequence.
func (c *httpClient) Run(ctx context.Context, sub Submission) (*Outcome, error) {
	log := zap.L().With(
		zap.String("form_url", c.formURL),
		zap.Int("objects", len(sub.ObjectNames)),
	)
	hc := c.session()

	formPage, err := c.fetch(ctx, hc, request{method: http.MethodGet, url: c.formURL}, 0, "fetch_form")
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "coco: run cancelled")
		}
		log.Warn("coco: form fetch failed", zap.Error(err))
		return unresolved(fmt.Sprintf(msgFetchFailed, err.Error()), nil), nil
	}

	meta, err := ExtractMetadata(formPage.Body, c.formURL, c.engineURL)
	if err != nil {
		log.Warn("coco: form metadata unreadable", zap.Error(err))
		return unresolved(fmt.Sprintf(msgFetchFailed, err.Error()), nil), nil
	}
	log.Debug("coco: form metadata",
		zap.String("action", meta.Action),
		zap.Int("hidden_fields", len(meta.Hidden)),
	)

	candidates := BuildCandidates(meta, sub, CandidateOptions{
		Stair:       c.stair,
		Model:       c.model,
		ButtonLabel: c.buttonLabel,
		Now:         c.now(),
	})
	targets := Targets(meta, c.engineURL)

	var (
		lastReason string
		attempts   []AttemptLog
	)
	for _, cand := range candidates {
		for _, target := range targets {
			out, entry := c.submit(ctx, hc, cand, target, sub.ObjectNames)
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "coco: run cancelled")
			}
			attempts = append(attempts, entry)
			if out != nil {
				out.Attempts = attempts
				log.Info("coco: estimations acquired",
					zap.String("candidate", cand.Name),
					zap.String("target", target),
					zap.Int("resolved", Plausible(out.Estimations)),
				)
				return out, nil
			}
			lastReason = entry.Error
			log.Debug("coco: candidate failed",
				zap.String("candidate", cand.Name),
				zap.String("target", target),
				zap.String("reason", entry.Error),
			)
		}
	}

	if lastReason == "" {
		lastReason = "unknown reason"
	}
	return unresolved(fmt.Sprintf(msgExhausted, lastReason), attempts), nil
}

// submit posts one candidate to one target and returns an outcome on a
// successful parse of the response or its detail page.
func (c *httpClient) submit(ctx context.Context, hc *http.Client, cand Candidate, target string, objects []string) (*Outcome, AttemptLog) {
	entry := AttemptLog{Candidate: cand.Name, Target: target}

	resp, err := c.fetch(ctx, hc, request{method: http.MethodPost, url: target, form: cand.Fields, referer: true}, 0, "submit")
	if err != nil {
		entry.Error = fmt.Sprintf("POST failed (%s): %s", target, err.Error())
		return nil, entry
	}

	est, doc, perr := evaluate(resp.Body, objects, c.parsers, c.threshold)
	if perr == nil {
		return &Outcome{
			Automated:   true,
			Estimations: est,
			Message:     msgSucceeded,
			RawHTML:     resp.Body,
			Target:      target,
			Candidate:   cand.Name,
		}, entry
	}

	var pe *ParseError
	if errors.As(perr, &pe) {
		zap.L().Debug("coco: response parse below threshold",
			zap.String("parser", pe.Parser),
			zap.Int("resolved", pe.Resolved),
			zap.Int("required", pe.Required),
		)
	}

	if doc != nil {
		if detailURL := FindDetailURL(doc, target); detailURL != "" {
			entry.Detail = detailURL
			if out := c.followDetail(ctx, hc, detailURL, objects); out != nil {
				out.Target = target
				out.Candidate = cand.Name
				return out, entry
			}
		}
	}

	entry.Error = msgUnparsed
	return nil, entry
}

// followDetail fetches a linked detail page and parses it. Failures are
// swallowed so the candidate loop can continue.
func (c *httpClient) followDetail(ctx context.Context, hc *http.Client, detailURL string, objects []string) *Outcome {
	resp, err := c.fetch(ctx, hc, request{method: http.MethodGet, url: detailURL, referer: true}, 0, "detail")
	if err != nil {
		zap.L().Debug("coco: detail fetch failed", zap.String("url", detailURL), zap.Error(err))
		return nil
	}
	est, _, perr := evaluate(resp.Body, objects, c.parsers, c.threshold)
	if perr != nil {
		return nil
	}
	return &Outcome{
		Automated:   true,
		Estimations: est,
		Message:     msgSucceededDetail,
		RawHTML:     resp.Body,
	}
}

// Health probes the landing page with the health attempt budget.
func (c *httpClient) Health(ctx context.Context) (*HealthReport, error) {
	start := time.Now()
	resp, err := c.fetch(ctx, c.session(), request{method: http.MethodGet, url: c.formURL}, c.healthAttempts, "health")
	if err != nil {
		return nil, eris.Wrap(err, "coco: unreachable")
	}
	return &HealthReport{
		OK:        resp.Status >= 200 && resp.Status < 300,
		Status:    resp.Status,
		LatencyMs: time.Since(start).Milliseconds(),
		URL:       c.formURL,
	}, nil
}

func unresolved(msg string, attempts []AttemptLog) *Outcome {
	return &Outcome{
		Estimations: []*float64{},
		Message:     msg,
		Attempts:    attempts,
	}
}
