package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
	"github.com/corretorconnect/match-engine/pkg/models"
	"github.com/corretorconnect/match-engine/pkg/services/matching"
)

// stubRule returns a fixed answer.
type stubRule struct {
	super bool
	err   error
	calls int
}

func (r *stubRule) Name() string { return "stub" }

func (r *stubRule) IsSuperMatch(context.Context, *models.Property, *models.ClientWant) (bool, error) {
	r.calls++
	return r.super, r.err
}

func TestMatchFinder_FindMatchesForProperty_Example(t *testing.T) {
	f := newServiceFixture(t)
	finder := f.finder(nil)

	created, err := finder.FindMatchesForProperty(f.ctx, f.p1.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	m := created[0]
	assert.Equal(t, models.MatchStatusOpen, m.Status)
	assert.Equal(t, f.p1.ID, *m.PropertyID)
	assert.Equal(t, f.c1.ID, *m.ClientWantID)
	assert.Equal(t, f.a1, m.PropertyAgentID)
	assert.Equal(t, f.a2, m.ClientAgentID)
	assert.False(t, m.IsSuperMatch)
	assert.Equal(t, []string{EventMatchCreated}, f.events.types())

	// second run is a no-op at the pair level
	created, err = finder.FindMatchesForProperty(f.ctx, f.p1.ID)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, f.store.matches, 1)
}

func TestMatchFinder_BothDirectionsShareThePair(t *testing.T) {
	f := newServiceFixture(t)
	finder := f.finder(nil)

	created, err := finder.FindMatchesForClientWant(f.ctx, f.c1.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	created, err = finder.FindMatchesForProperty(f.ctx, f.p1.ID)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Len(t, f.store.matches, 1)
}

func TestMatchFinder_SkipsIncompatibleCandidates(t *testing.T) {
	f := newServiceFixture(t)
	sp := "SP"
	f.store.addClientWant(&models.ClientWant{
		AgentID: f.a2, Purpose: models.PurposeSale, City: "São Paulo", State: &sp,
		PriceMin: 900001, PriceMax: 1000000,
	})
	f.store.addClientWant(&models.ClientWant{
		AgentID: f.a2, Purpose: models.PurposeRent, City: "São Paulo", State: &sp,
		PriceMin: 1, PriceMax: 1000000,
	})
	f.store.addClientWant(&models.ClientWant{
		AgentID: f.a2, Purpose: models.PurposeSale, City: "São Paulo",
		PriceMin: 1, PriceMax: 1000000,
	})

	created, err := f.finder(nil).FindMatchesForProperty(f.ctx, f.p1.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, f.c1.ID, *created[0].ClientWantID)
}

func TestMatchFinder_InactiveSourceYieldsNothing(t *testing.T) {
	f := newServiceFixture(t)
	f.p1.Status = models.ListingStatusSold

	created, err := f.finder(nil).FindMatchesForProperty(f.ctx, f.p1.ID)
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.Empty(t, created)
	assert.Empty(t, f.store.matches)
}

func TestMatchFinder_UnknownSource(t *testing.T) {
	f := newServiceFixture(t)
	finder := f.finder(nil)

	_, err := finder.FindMatchesForProperty(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = finder.FindMatchesForClientWant(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMatchFinder_SuperMatchRule(t *testing.T) {
	f := newServiceFixture(t)
	rule := &stubRule{super: true}

	created, err := f.finder(rule).FindMatchesForProperty(f.ctx, f.p1.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.True(t, created[0].IsSuperMatch)
	assert.Equal(t, 1, rule.calls)
}

func TestMatchFinder_TightOverlapFlagsSuper(t *testing.T) {
	f := newServiceFixture(t)
	f.c1.PriceMin = 800000 // midpoint 850000 equals the price

	created, err := f.finder(&matching.TightOverlapRule{Ratio: 0.05}).FindMatchesForClientWant(f.ctx, f.c1.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.True(t, created[0].IsSuperMatch)
}

func TestMatchFinder_RuleErrorMeansNotSuper(t *testing.T) {
	f := newServiceFixture(t)
	rule := &stubRule{super: true, err: errors.New("follow graph unavailable")}

	created, err := f.finder(rule).FindMatchesForProperty(f.ctx, f.p1.ID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.False(t, created[0].IsSuperMatch)
}

func TestMatchFinder_RepositoryErrorsSurface(t *testing.T) {
	f := newServiceFixture(t)
	dbErr := errors.New("connection reset")
	f.matchRepo.createBatchErr = dbErr

	_, err := f.finder(nil).FindMatchesForProperty(f.ctx, f.p1.ID)
	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, f.events.types())
}

func TestMatchFinder_OnPropertySavedRunsInBackground(t *testing.T) {
	f := newServiceFixture(t)
	finder := f.finder(nil)

	finder.OnPropertySaved(f.ctx, f.p1.ID)
	assert.Empty(t, f.store.matches, "nothing runs until the queue executes the task")

	tasks := f.queue.drain()
	require.Len(t, tasks, 1)
	assert.Contains(t, tasks[0].Name(), f.p1.ID.String())

	require.NoError(t, tasks[0].Execute(context.Background(), f.queue))
	assert.Len(t, f.store.matches, 1)
	assert.Equal(t, 1, f.scopes.acquired)
	assert.Equal(t, 1, f.scopes.released)
}

func TestMatchFinder_OnClientWantSavedReportsFailureToQueue(t *testing.T) {
	f := newServiceFixture(t)
	f.scopes.err = errors.New("pool exhausted")

	f.finder(nil).OnClientWantSaved(f.ctx, f.c1.ID)

	tasks := f.queue.drain()
	require.Len(t, tasks, 1)
	err := tasks[0].Execute(context.Background(), f.queue)
	assert.ErrorIs(t, err, f.scopes.err)
	assert.Empty(t, f.store.matches)
}
