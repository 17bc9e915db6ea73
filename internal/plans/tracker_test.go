package plans

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietafit/backend/internal/kvstore"
)

func newTestTracker() *Tracker {
	return NewTracker(kvstore.NewTestStore(), NewCatalog(), kvstore.NewNotifier())
}

func TestTracker_Activate(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()

	activePlan, err := tracker.Activate(ctx, "user-1", "low-carb")
	require.NoError(t, err)
	require.NotNil(t, activePlan)
	assert.NotEmpty(t, activePlan.ID)
	assert.Equal(t, "user-1", activePlan.UserID)
	assert.Equal(t, "low-carb", activePlan.PlanID)
	assert.Equal(t, "low-carb", activePlan.Plan.ID)
	assert.True(t, activePlan.Active)
	assert.Nil(t, activePlan.EndDate)

	got, err := tracker.GetActive(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, activePlan.ID, got.ID)
}

func TestTracker_Activate_unknownPlan(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()

	_, err := tracker.Activate(ctx, "user-1", "nope")
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = tracker.GetActive(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNoActivePlan)
}

func TestTracker_Activate_replacesPrevious(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()

	first, err := tracker.Activate(ctx, "user-1", "low-carb")
	require.NoError(t, err)

	second, err := tracker.Activate(ctx, "user-1", "keto")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// only one active plan per user
	active, err := tracker.GetActive(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "keto", active.PlanID)

	// another user's plan is untouched
	_, err = tracker.Activate(ctx, "user-2", "carnivore")
	require.NoError(t, err)
	active, err = tracker.GetActive(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "keto", active.PlanID)
}

func TestTracker_Deactivate(t *testing.T) {
	ctx := context.Background()
	tracker := newTestTracker()

	// deactivating with no active plan is a silent no-op
	require.NoError(t, tracker.Deactivate(ctx, "user-1"))

	_, err := tracker.Activate(ctx, "user-1", "low-carb")
	require.NoError(t, err)

	require.NoError(t, tracker.Deactivate(ctx, "user-1"))

	_, err = tracker.GetActive(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNoActivePlan)

	require.NoError(t, tracker.Deactivate(ctx, "user-1"))
}

func TestTracker_planSnapshotIsValueCopy(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewTestStore()
	catalog := NewCatalog()
	tracker := NewTracker(store, catalog, kvstore.NewNotifier())

	activePlan, err := tracker.Activate(ctx, "user-1", "keto")
	require.NoError(t, err)

	// poking at the snapshot does not touch the catalog
	activePlan.Plan.Name = "mutated"
	fromCatalog, err := catalog.Get("keto")
	require.NoError(t, err)
	assert.Equal(t, "Ketogenic", fromCatalog.Name)
}

func TestActivePlan_Progress(t *testing.T) {
	now := time.Now()
	activePlan := &ActivePlan{
		Plan:      Plan{DurationWeeks: 12},
		StartDate: now.Add(-20 * 24 * time.Hour),
	}

	progress := activePlan.Progress(now)
	assert.Equal(t, 2, progress.ElapsedWeeks)
	assert.Equal(t, 3, progress.CurrentWeek)
	assert.Equal(t, 10, progress.RemainingWeeks)
	assert.InDelta(t, 16.67, progress.ProgressPercent, 0.01)
}

func TestActivePlan_Progress_finished(t *testing.T) {
	now := time.Now()
	activePlan := &ActivePlan{
		Plan:      Plan{DurationWeeks: 8},
		StartDate: now.Add(-100 * 24 * time.Hour),
	}

	progress := activePlan.Progress(now)
	assert.Equal(t, 14, progress.ElapsedWeeks)
	assert.Equal(t, 8, progress.CurrentWeek)
	assert.Equal(t, 0, progress.RemainingWeeks)
	assert.Equal(t, 100.0, progress.ProgressPercent)
}

func TestActivePlan_Progress_freshStart(t *testing.T) {
	now := time.Now()
	activePlan := &ActivePlan{
		Plan:      Plan{DurationWeeks: 12},
		StartDate: now,
	}

	progress := activePlan.Progress(now)
	assert.Equal(t, 0, progress.ElapsedWeeks)
	assert.Equal(t, 1, progress.CurrentWeek)
	assert.Equal(t, 12, progress.RemainingWeeks)
	assert.Equal(t, 0.0, progress.ProgressPercent)
}
