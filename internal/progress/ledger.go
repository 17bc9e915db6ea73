package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dietafit/backend/internal/kvstore"
	"github.com/dietafit/backend/internal/plans"
	"github.com/dietafit/backend/internal/telemetry/tracing"
)

const (
	weightEntriesKind   = "weight-entries"
	fastingSessionsKind = "fasting-sessions"
	dietDaysKind        = "diet-days"
)

var (
	ErrNoActivePlan     = errors.New("no active plan")
	ErrDuplicateDietDay = errors.New("diet day already logged for that date")
)

type activePlanChecker interface {
	GetActive(ctx context.Context, userID string) (*plans.ActivePlan, error)
}

// Ledger holds the append-only per-user logs of weight, fasting and
// diet-day events. Each write is a read-list/append/write-list cycle
// over the key-value store, serialized by an in-process mutex.
type Ledger struct {
	mu       sync.Mutex
	store    kvstore.Store
	planner  activePlanChecker
	notifier *kvstore.Notifier
}

func NewLedger(store kvstore.Store, planner activePlanChecker, notifier *kvstore.Notifier) *Ledger {
	return &Ledger{
		store:    store,
		planner:  planner,
		notifier: notifier,
	}
}

// RecordWeight appends a weigh-in. Range and date validation is the
// form layer's job.
func (l *Ledger) RecordWeight(ctx context.Context, userID string, date time.Time, weightKG float64, notes string) (_ *WeightEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.ledger.recordWeight")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	key := kvstore.UserKey(weightEntriesKind, userID)
	entries, err := kvstore.GetList[WeightEntry](ctx, l.store, key)
	if err != nil {
		return nil, fmt.Errorf("get weight entries: %w", err)
	}

	entry := WeightEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      date,
		WeightKG:  weightKG,
		Notes:     notes,
		CreatedAt: time.Now(),
	}
	entries = append(entries, entry)

	if err := l.store.Set(ctx, key, entries); err != nil {
		return nil, fmt.Errorf("save weight entries: %w", err)
	}

	l.notifier.Notify(weightEntriesKind)
	return &entry, nil
}

// RecordFast appends a fasting session and stamps the active plan id
// when a plan is active. Duration within [12,72] hours is a documented
// precondition checked by the form layer, not here.
func (l *Ledger) RecordFast(ctx context.Context, userID string, date time.Time, startTime, endTime, protocol string) (_ *FastingSession, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.ledger.recordFast")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	duration, err := FastDuration(startTime, endTime)
	if err != nil {
		return nil, err
	}

	var activePlanID string
	activePlan, err := l.planner.GetActive(ctx, userID)
	switch {
	case err == nil:
		activePlanID = activePlan.ID
	case errors.Is(err, plans.ErrNoActivePlan):
		// fasting without a plan is fine
	default:
		return nil, fmt.Errorf("get active plan: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := kvstore.UserKey(fastingSessionsKind, userID)
	sessions, err := kvstore.GetList[FastingSession](ctx, l.store, key)
	if err != nil {
		return nil, fmt.Errorf("get fasting sessions: %w", err)
	}

	session := FastingSession{
		ID:            uuid.NewString(),
		UserID:        userID,
		Date:          date,
		StartTime:     startTime,
		EndTime:       endTime,
		DurationHours: duration,
		Protocol:      protocol,
		ActivePlanID:  activePlanID,
		CreatedAt:     time.Now(),
	}
	sessions = append(sessions, session)

	if err := l.store.Set(ctx, key, sessions); err != nil {
		return nil, fmt.Errorf("save fasting sessions: %w", err)
	}

	l.notifier.Notify(fastingSessionsKind)
	return &session, nil
}

// RecordDietDay appends a diet-day mark. It requires an active plan and
// rejects a second entry for the same calendar date.
func (l *Ledger) RecordDietDay(ctx context.Context, userID string, date time.Time, notes string) (_ *DietDayEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.ledger.recordDietDay")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	activePlan, err := l.planner.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, plans.ErrNoActivePlan) {
			return nil, ErrNoActivePlan
		}
		return nil, fmt.Errorf("get active plan: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := kvstore.UserKey(dietDaysKind, userID)
	entries, err := kvstore.GetList[DietDayEntry](ctx, l.store, key)
	if err != nil {
		return nil, fmt.Errorf("get diet days: %w", err)
	}

	day := date.Format("2006-01-02")
	for i := range entries {
		if entries[i].Date.Format("2006-01-02") == day {
			return nil, ErrDuplicateDietDay
		}
	}

	entry := DietDayEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Date:         date,
		ActivePlanID: activePlan.ID,
		Notes:        notes,
		CreatedAt:    time.Now(),
	}
	entries = append(entries, entry)

	if err := l.store.Set(ctx, key, entries); err != nil {
		return nil, fmt.Errorf("save diet days: %w", err)
	}

	l.notifier.Notify(dietDaysKind)
	return &entry, nil
}

func (l *Ledger) ListWeights(ctx context.Context, userID string) ([]WeightEntry, error) {
	entries, err := kvstore.GetList[WeightEntry](ctx, l.store, kvstore.UserKey(weightEntriesKind, userID))
	if err != nil {
		return nil, fmt.Errorf("get weight entries: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
	return entries, nil
}

func (l *Ledger) ListFasts(ctx context.Context, userID string) ([]FastingSession, error) {
	sessions, err := kvstore.GetList[FastingSession](ctx, l.store, kvstore.UserKey(fastingSessionsKind, userID))
	if err != nil {
		return nil, fmt.Errorf("get fasting sessions: %w", err)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Date.After(sessions[j].Date)
	})
	return sessions, nil
}

func (l *Ledger) ListDietDays(ctx context.Context, userID string) ([]DietDayEntry, error) {
	entries, err := kvstore.GetList[DietDayEntry](ctx, l.store, kvstore.UserKey(dietDaysKind, userID))
	if err != nil {
		return nil, fmt.Errorf("get diet days: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
	return entries, nil
}
