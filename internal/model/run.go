package model

import (
	"time"
)

// RunStatus represents the current state of an estimation run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRanking   RunStatus = "ranking"
	RunStatusAcquiring RunStatus = "acquiring"
	RunStatusComputing RunStatus = "computing"
	RunStatusManual    RunStatus = "awaiting_manual"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a single estimation run over one dataset.
type Run struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"` // workbook path, "api", or "manual"
	Status    RunStatus   `json:"status"`
	Summary   *RunSummary `json:"summary,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RunSummary holds the final outcome of a run. It never carries engine
// session artifacts (hidden fields, raw HTML).
type RunSummary struct {
	Countries        int              `json:"countries"`
	CompleteRows     int              `json:"complete_rows"`
	Estimations      int              `json:"estimations"`
	EstimationSource EstimationSource `json:"estimation_source,omitempty"`
	Automated        bool             `json:"automated"`
	EngineCalled     bool             `json:"engine_called"`
	Message          string           `json:"message,omitempty"`
	Correlations     []Correlation    `json:"correlations,omitempty"`
	Phases           []PhaseResult    `json:"phases"`
	Error            string           `json:"error,omitempty"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
