package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whr-oam/coco-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "whr2024.xlsx")
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusQueued, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, "whr2024.xlsx", got.Source)
		assert.Equal(t, model.RunStatusQueued, got.Status)
		assert.Nil(t, got.Summary)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "nonexistent-id")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("UpdateRunStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "api")
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusAcquiring))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusAcquiring, got.Status)
	})

	t.Run("UpdateRunStatusNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateRunStatus(context.Background(), "nonexistent-id", model.RunStatusRanking)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("UpdateRunResult", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "whr2024.xlsx")
		require.NoError(t, err)

		r := -0.25
		summary := &model.RunSummary{
			Countries:        140,
			CompleteRows:     138,
			Estimations:      138,
			EstimationSource: model.SourceEngine,
			Automated:        true,
			Message:          "COCO automation completed.",
			Correlations:     []model.Correlation{{Label: "corrRanks", R: &r, N: 138}},
			Phases:           []model.PhaseResult{{Name: "ranking", Status: model.PhaseStatusComplete, Duration: 3}},
		}
		require.NoError(t, s.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, summary))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		require.NotNil(t, got.Summary)
		assert.Equal(t, 138, got.Summary.Estimations)
		assert.Equal(t, model.SourceEngine, got.Summary.EstimationSource)
		assert.True(t, got.Summary.Automated)
		require.Len(t, got.Summary.Correlations, 1)
		assert.InDelta(t, -0.25, *got.Summary.Correlations[0].R, 1e-12)
		require.Len(t, got.Summary.Phases, 1)
		assert.Equal(t, "ranking", got.Summary.Phases[0].Name)
	})

	t.Run("UpdateRunResultNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateRunResult(context.Background(), "nonexistent-id", model.RunStatusFailed, &model.RunSummary{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("ListRuns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		a, err := s.CreateRun(ctx, "a.xlsx")
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, "b.xlsx")
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, "api")
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, a.ID, model.RunStatusFailed))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, a.ID, failed[0].ID)

		api, err := s.ListRuns(ctx, RunFilter{Source: "api"})
		require.NoError(t, err)
		require.Len(t, api, 1)
		assert.Equal(t, "api", api[0].Source)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		paged, err := s.ListRuns(ctx, RunFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, paged, 1)
	})

	t.Run("Phases", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "whr2024.xlsx")
		require.NoError(t, err)

		phase, err := s.CreatePhase(ctx, run.ID, "acquiring")
		require.NoError(t, err)
		assert.NotEmpty(t, phase.ID)
		assert.Equal(t, model.PhaseStatusRunning, phase.Status)

		require.NoError(t, s.CompletePhase(ctx, phase.ID, &model.PhaseResult{
			Name:     "acquiring",
			Status:   model.PhaseStatusFailed,
			Duration: 1200,
			Error:    "coco: run cancelled",
			Metadata: map[string]any{"source": "engine"},
		}))

		phases, err := s.ListPhases(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, phases, 1)
		assert.Equal(t, model.PhaseStatusFailed, phases[0].Status)
		require.NotNil(t, phases[0].Result)
		assert.Equal(t, "coco: run cancelled", phases[0].Result.Error)
		assert.Equal(t, "engine", phases[0].Result.Metadata["source"])
	})

	t.Run("CompletePhaseNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.CompletePhase(context.Background(), "nonexistent-id", &model.PhaseResult{Status: model.PhaseStatusComplete})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("MigrateIdempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Migrate(context.Background()))
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLite_CreatePhase_UnknownRun(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.CreatePhase(context.Background(), "no-such-run", "ranking")
	require.Error(t, err, "foreign keys are enforced")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	run, err := s.CreateRun(ctx, "api")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	_, err = Open(ctx, "mysql", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
