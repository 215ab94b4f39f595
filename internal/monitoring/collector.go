// Package monitoring watches the run history for failing runs and for a
// drop in engine automation, and posts alerts to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/whr-oam/coco-cli/internal/model"
	"github.com/whr-oam/coco-cli/internal/store"
)

// maxCollectedRuns bounds one collection pass.
const maxCollectedRuns = 10000

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	RunsTotal    int `json:"runs_total"`
	RunsComplete int `json:"runs_complete"`
	RunsManual   int `json:"runs_awaiting_manual"`
	RunsFailed   int `json:"runs_failed"`
	RunsActive   int `json:"runs_active"`

	// FailRate is failed / finished, where finished counts complete,
	// awaiting-manual and failed runs.
	FailRate float64 `json:"fail_rate"`

	// EngineRuns counts finished runs whose acquisition called the
	// engine. Reference, pasted and offline runs are left out.
	EngineRuns     int     `json:"engine_runs"`
	AutomatedRuns  int     `json:"automated_runs"`
	AutomationRate float64 `json:"automation_rate"`

	AvgDurationSecs float64 `json:"avg_duration_secs"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the store method the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run store.
type Collector struct {
	store RunLister
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window. A window of
// zero or less covers the whole history.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: maxCollectedRuns})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var cutoff time.Time
	if lookbackHours > 0 {
		cutoff = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}

	var totalDur time.Duration
	for _, r := range runs {
		if !cutoff.IsZero() && r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++

		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
		case model.RunStatusManual:
			snap.RunsManual++
		case model.RunStatusFailed:
			snap.RunsFailed++
			continue
		default:
			snap.RunsActive++
			continue
		}

		if engineRun(r) {
			snap.EngineRuns++
			if r.Summary.Automated {
				snap.AutomatedRuns++
			}
		}
	}

	if finished := snap.RunsComplete + snap.RunsManual + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.EngineRuns > 0 {
		snap.AutomationRate = float64(snap.AutomatedRuns) / float64(snap.EngineRuns)
	}
	if snap.RunsComplete > 0 {
		snap.AvgDurationSecs = totalDur.Seconds() / float64(snap.RunsComplete)
	}
	return snap, nil
}

// engineRun reports whether the run's acquisition reached the engine.
// Reference, pasted and offline runs do not count.
func engineRun(r model.Run) bool {
	return r.Summary != nil && r.Summary.EngineCalled
}
