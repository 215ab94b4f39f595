// Package pipeline drives one estimation run: rank the complete rows,
// acquire estimations, and compute the comparison statistics.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/whr-oam/coco-cli/internal/acquire"
	"github.com/whr-oam/coco-cli/internal/model"
	"github.com/whr-oam/coco-cli/internal/rank"
	"github.com/whr-oam/coco-cli/internal/stats"
	"github.com/whr-oam/coco-cli/internal/store"
	"github.com/whr-oam/coco-cli/pkg/coco"
)

// Phase names recorded in the run history.
const (
	PhaseRanking   = "ranking"
	PhaseAcquiring = "acquiring"
	PhaseManual    = "manual"
	PhaseComputing = "computing"
)

// Pipeline holds the dependencies shared by runs. It keeps no per-run
// state, so one Pipeline serves concurrent runs.
type Pipeline struct {
	schema *model.Schema
	client coco.Client
	coord  *acquire.Coordinator
	store  store.Store
}

// New creates a Pipeline. A nil client disables engine automation and a
// nil store disables run history.
func New(schema *model.Schema, client coco.Client, st store.Store) *Pipeline {
	if schema == nil {
		schema = model.DefaultSchema()
	}
	return &Pipeline{
		schema: schema,
		client: client,
		coord:  acquire.NewCoordinator(client),
		store:  st,
	}
}

// Schema returns the attribute schema the pipeline ranks with.
func (p *Pipeline) Schema() *model.Schema {
	return p.schema
}

// Input is one dataset to process.
type Input struct {
	Source    string
	Records   []model.CountryRecord
	Reference map[string]float64
}

// Result is the outcome of a run.
type Result struct {
	RunID        string               `json:"run_id,omitempty"`
	Rows         []model.RankedRow    `json:"rows"`
	Resolution   *acquire.Resolution  `json:"resolution"`
	Results      []model.ResultRecord `json:"results"`
	Correlations []model.Correlation  `json:"correlations"`
	Summary      *model.RunSummary    `json:"summary"`
}

// Run ranks the input, resolves estimations from the reference table or
// the engine, and computes statistics. An unresolved acquisition is not an
// error: the result carries the matrix texts for a manual run and the run
// is left awaiting manual estimations.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	return p.execute(ctx, in, func(ctx context.Context, rows []model.RankedRow) (*acquire.Resolution, error) {
		return p.coord.Resolve(ctx, acquire.Request{
			Rows:           rows,
			AttributeNames: p.schema.EngineAttributeNames(),
			Reference:      in.Reference,
		})
	}, PhaseAcquiring)
}

// ApplyManual runs the pipeline with pasted estimations in place of the
// engine. Text without any number fails with an *acquire.InputError before
// anything is recorded.
func (p *Pipeline) ApplyManual(ctx context.Context, in Input, text string) (*Result, error) {
	complete := rank.CompleteRows(p.schema, in.Records)
	if _, err := acquire.ParseManual(text, len(complete)); err != nil {
		return nil, err
	}

	return p.execute(ctx, in, func(_ context.Context, rows []model.RankedRow) (*acquire.Resolution, error) {
		mapping, msg, err := p.coord.ApplyManual(rows, text)
		if err != nil {
			return nil, err
		}
		return &acquire.Resolution{
			Mapping:        mapping,
			Message:        msg,
			MatrixText:     rank.FormatRows(rows),
			ObjectNames:    rank.ObjectNames(rows),
			AttributeNames: p.schema.EngineAttributeNames(),
		}, nil
	}, PhaseManual)
}

type acquireFunc func(ctx context.Context, rows []model.RankedRow) (*acquire.Resolution, error)

func (p *Pipeline) execute(ctx context.Context, in Input, acquireFn acquireFunc, acquirePhase string) (*Result, error) {
	log := zap.L().With(zap.String("source", in.Source))
	log.Info("pipeline: starting run", zap.Int("records", len(in.Records)))

	result := &Result{Summary: &model.RunSummary{Countries: len(in.Records)}}

	var runID string
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, in.Source)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
		result.RunID = run.ID
		log = log.With(zap.String("run_id", run.ID))
	}

	setStatus := func(status model.RunStatus) {
		if p.store == nil {
			return
		}
		if statusErr := p.store.UpdateRunStatus(ctx, runID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		var phase *model.RunPhase
		if p.store != nil {
			var phaseErr error
			phase, phaseErr = p.store.CreatePhase(ctx, runID, name)
			if phaseErr != nil {
				log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
			}
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			if err := p.store.CompletePhase(ctx, phase.ID, phaseResult); err != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(err))
			}
		}
		result.Summary.Phases = append(result.Summary.Phases, *phaseResult)
		return fnErr
	}

	fail := func(err error) (*Result, error) {
		result.Summary.Error = err.Error()
		p.saveSummary(ctx, runID, model.RunStatusFailed, result.Summary, log)
		return result, err
	}

	// Ranking
	setStatus(model.RunStatusRanking)
	_ = trackPhase(PhaseRanking, func() (*model.PhaseResult, error) {
		result.Rows = rank.Transform(p.schema, in.Records)
		return &model.PhaseResult{Metadata: map[string]any{
			"complete_rows": len(result.Rows),
			"dropped_rows":  len(in.Records) - len(result.Rows),
		}}, nil
	})
	result.Summary.CompleteRows = len(result.Rows)

	// Acquisition
	setStatus(model.RunStatusAcquiring)
	err := trackPhase(acquirePhase, func() (*model.PhaseResult, error) {
		res, err := acquireFn(ctx, result.Rows)
		if err != nil {
			return nil, err
		}
		result.Resolution = res
		return &model.PhaseResult{Metadata: map[string]any{
			"source":    string(res.Mapping.Source),
			"resolved":  res.Mapping.Len(),
			"automated": res.Automated,
		}}, nil
	})
	if err != nil {
		return fail(err)
	}

	res := result.Resolution
	result.Summary.EstimationSource = res.Mapping.Source
	result.Summary.Estimations = res.Mapping.Len()
	result.Summary.Automated = res.Automated
	result.Summary.EngineCalled = res.EngineCalled
	result.Summary.Message = res.Message

	// Statistics
	setStatus(model.RunStatusComputing)
	_ = trackPhase(PhaseComputing, func() (*model.PhaseResult, error) {
		result.Results = stats.Compute(p.schema, in.Records, res.Mapping)
		result.Correlations = stats.Correlations(p.schema, result.Results)
		return &model.PhaseResult{Metadata: map[string]any{
			"results": len(result.Results),
		}}, nil
	})
	result.Summary.Correlations = result.Correlations

	status := model.RunStatusComplete
	if !res.Resolved() {
		status = model.RunStatusManual
	}
	p.saveSummary(ctx, runID, status, result.Summary, log)

	log.Info("pipeline: run complete",
		zap.String("status", string(status)),
		zap.Int("estimations", result.Summary.Estimations),
		zap.Bool("automated", result.Summary.Automated),
	)
	return result, nil
}

func (p *Pipeline) saveSummary(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, log *zap.Logger) {
	if p.store == nil {
		return
	}
	// The run record is written even when ctx was cancelled mid-run.
	if err := p.store.UpdateRunResult(context.WithoutCancel(ctx), runID, status, summary); err != nil {
		log.Warn("pipeline: failed to save run result", zap.Error(err))
	}
}
