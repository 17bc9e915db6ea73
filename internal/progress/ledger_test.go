package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietafit/backend/internal/kvstore"
	"github.com/dietafit/backend/internal/plans"
)

type ledgerFixture struct {
	ledger  *Ledger
	tracker *plans.Tracker
	store   *kvstore.TestStore
}

func newLedgerFixture() ledgerFixture {
	store := kvstore.NewTestStore()
	notifier := kvstore.NewNotifier()
	tracker := plans.NewTracker(store, plans.NewCatalog(), notifier)
	return ledgerFixture{
		ledger:  NewLedger(store, tracker, notifier),
		tracker: tracker,
		store:   store,
	}
}

func TestLedger_RecordWeight(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture()

	now := time.Now()
	entry, err := f.ledger.RecordWeight(ctx, "user-1", now.Add(-48*time.Hour), 82.5, "after vacation")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 82.5, entry.WeightKG)

	_, err = f.ledger.RecordWeight(ctx, "user-1", now, 81.0, "")
	require.NoError(t, err)
	_, err = f.ledger.RecordWeight(ctx, "user-2", now, 90.0, "")
	require.NoError(t, err)

	entries, err := f.ledger.ListWeights(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// date-descending: newest first
	assert.Equal(t, 81.0, entries[0].WeightKG)
	assert.Equal(t, 82.5, entries[1].WeightKG)
}

func TestLedger_RecordFast(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture()

	// no active plan: session is stored without a plan link
	session, err := f.ledger.RecordFast(ctx, "user-1", time.Now(), "20:00", "12:00", "16h")
	require.NoError(t, err)
	assert.Equal(t, 16.0, session.DurationHours)
	assert.Empty(t, session.ActivePlanID)

	activePlan, err := f.tracker.Activate(ctx, "user-1", "fasting-16h")
	require.NoError(t, err)

	session, err = f.ledger.RecordFast(ctx, "user-1", time.Now(), "18:00", "12:00", "18h")
	require.NoError(t, err)
	assert.Equal(t, 18.0, session.DurationHours)
	assert.Equal(t, activePlan.ID, session.ActivePlanID)

	sessions, err := f.ledger.ListFasts(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestLedger_RecordFast_invalidTime(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture()

	_, err := f.ledger.RecordFast(ctx, "user-1", time.Now(), "not-a-time", "12:00", "16h")
	assert.Error(t, err)

	sessions, err := f.ledger.ListFasts(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLedger_RecordDietDay(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture()

	// no active plan
	_, err := f.ledger.RecordDietDay(ctx, "user-1", time.Now(), "")
	assert.ErrorIs(t, err, ErrNoActivePlan)

	activePlan, err := f.tracker.Activate(ctx, "user-1", "low-carb")
	require.NoError(t, err)

	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	entry, err := f.ledger.RecordDietDay(ctx, "user-1", day, "all good")
	require.NoError(t, err)
	assert.Equal(t, activePlan.ID, entry.ActivePlanID)

	// one diet day per calendar date
	_, err = f.ledger.RecordDietDay(ctx, "user-1", day.Add(6*time.Hour), "again")
	assert.ErrorIs(t, err, ErrDuplicateDietDay)

	// the duplicate was never stored
	entries, err := f.ledger.ListDietDays(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// the day before is a different calendar date
	_, err = f.ledger.RecordDietDay(ctx, "user-1", day.Add(-24*time.Hour), "")
	require.NoError(t, err)

	entries, err = f.ledger.ListDietDays(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Date.After(entries[1].Date))
}
