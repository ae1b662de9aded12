package analysis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/seo-analyzer/internal/application"
	appanalysis "github.com/bryanwahyu/seo-analyzer/internal/application/analysis"
	domain "github.com/bryanwahyu/seo-analyzer/internal/domain/analysis"
)

func newTracker(repo *fakeRepo) *appanalysis.Tracker {
	return appanalysis.NewTracker(repo, application.SystemClock{})
}

func TestTransitionForwardOnly(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(newFakeRepo())

	job, err := tr.Create(ctx, "https://example.com")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, job.Status)

	require.NoError(t, tr.Transition(ctx, job.ID, domain.StatusAnalyzing, appanalysis.Update{}))

	// backwards is rejected
	err = tr.Transition(ctx, job.ID, domain.StatusPending, appanalysis.Update{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := tr.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusAnalyzing, got.Status)
}

func TestTransitionTerminalIsFinal(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(newFakeRepo())

	job, err := tr.Create(ctx, "https://example.com")
	require.NoError(t, err)
	require.NoError(t, tr.Transition(ctx, job.ID, domain.StatusAnalyzing, appanalysis.Update{}))
	require.NoError(t, tr.Transition(ctx, job.ID, domain.StatusCompleted, appanalysis.Update{OverallScore: 90}))

	for _, s := range []domain.Status{domain.StatusPartial, domain.StatusFailed, domain.StatusAnalyzing} {
		err := tr.Transition(ctx, job.ID, s, appanalysis.Update{})
		require.ErrorIs(t, err, domain.ErrInvalidTransition, "to %s", s)
	}

	got, err := tr.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)
	require.Equal(t, 90, got.OverallScore)
	require.NotNil(t, got.CompletedAt)
}

func TestTransitionSameStatusIdempotent(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(newFakeRepo())

	job, err := tr.Create(ctx, "https://example.com")
	require.NoError(t, err)
	require.NoError(t, tr.Transition(ctx, job.ID, domain.StatusAnalyzing, appanalysis.Update{}))
	require.NoError(t, tr.Transition(ctx, job.ID, domain.StatusCompleted, appanalysis.Update{OverallScore: 70}))

	// repeating the terminal status overwrites fields without error
	require.NoError(t, tr.Transition(ctx, job.ID, domain.StatusCompleted, appanalysis.Update{OverallScore: 75}))

	got, err := tr.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 75, got.OverallScore)
	require.Equal(t, domain.StatusCompleted, got.Status)
}

func TestTransitionUnknownJob(t *testing.T) {
	tr := newTracker(newFakeRepo())
	err := tr.Transition(context.Background(), "missing", domain.StatusAnalyzing, appanalysis.Update{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionRollsBackOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.failOn = domain.StatusCompleted
	tr := newTracker(repo)

	job, err := tr.Create(ctx, "https://example.com")
	require.NoError(t, err)
	require.NoError(t, tr.Transition(ctx, job.ID, domain.StatusAnalyzing, appanalysis.Update{}))

	err = tr.Transition(ctx, job.ID, domain.StatusCompleted, appanalysis.Update{})
	require.Error(t, err)

	// in-memory state stays where the store last agreed, so failing the job
	// afterwards is still a legal move
	got, gerr := tr.Get(ctx, job.ID)
	require.NoError(t, gerr)
	require.Equal(t, domain.StatusAnalyzing, got.Status)
	require.Nil(t, got.CompletedAt)

	require.NoError(t, tr.Transition(ctx, job.ID, domain.StatusFailed, appanalysis.Update{ErrorMessage: "store gave up"}))
}

func TestGetFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.jobs["cold"] = &domain.Job{ID: "cold", Target: "https://example.com", Status: domain.StatusCompleted}
	tr := newTracker(repo)

	got, err := tr.Get(ctx, "cold")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)

	_, err = tr.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
