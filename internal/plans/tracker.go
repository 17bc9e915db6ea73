package plans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dietafit/backend/internal/kvstore"
	"github.com/dietafit/backend/internal/telemetry/tracing"
)

const activePlansKey = "active-plans"

var ErrNoActivePlan = errors.New("no active plan")

// ActivePlan is a user's adoption of a catalog plan. The Plan field is a
// value copy taken at activation, so later catalog edits never rewrite
// history.
type ActivePlan struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	PlanID    string     `json:"planId"`
	Plan      Plan       `json:"plan"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type WeekProgress struct {
	CurrentWeek     int     `json:"currentWeek"`
	ElapsedWeeks    int     `json:"elapsedWeeks"`
	RemainingWeeks  int     `json:"remainingWeeks"`
	ProgressPercent float64 `json:"progressPercent"`
}

// Progress derives week counters from the activation date.
func (ap *ActivePlan) Progress(now time.Time) WeekProgress {
	elapsedDays := int(math.Floor(now.Sub(ap.StartDate).Hours() / 24))
	if elapsedDays < 0 {
		elapsedDays = 0
	}
	elapsedWeeks := elapsedDays / 7

	duration := ap.Plan.DurationWeeks
	progress := float64(elapsedWeeks) / float64(duration) * 100
	if progress > 100 {
		progress = 100
	}

	currentWeek := elapsedWeeks + 1
	if currentWeek > duration {
		currentWeek = duration
	}
	remaining := duration - elapsedWeeks
	if remaining < 0 {
		remaining = 0
	}

	return WeekProgress{
		CurrentWeek:     currentWeek,
		ElapsedWeeks:    elapsedWeeks,
		RemainingWeeks:  remaining,
		ProgressPercent: progress,
	}
}

// Tracker enforces the single-active-plan rule per user over the shared
// active-plans list.
type Tracker struct {
	mu       sync.Mutex
	store    kvstore.Store
	catalog  *Catalog
	notifier *kvstore.Notifier
}

func NewTracker(store kvstore.Store, catalog *Catalog, notifier *kvstore.Notifier) *Tracker {
	return &Tracker{
		store:    store,
		catalog:  catalog,
		notifier: notifier,
	}
}

func (t *Tracker) Activate(ctx context.Context, userID, planID string) (_ *ActivePlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "plans.tracker.activate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	plan, err := t.catalog.Get(planID)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	activePlans, err := kvstore.GetList[ActivePlan](ctx, t.store, activePlansKey)
	if err != nil {
		return nil, fmt.Errorf("get active plans: %w", err)
	}

	now := time.Now()
	for i := range activePlans {
		if activePlans[i].UserID == userID && activePlans[i].Active {
			activePlans[i].Active = false
			endDate := now
			activePlans[i].EndDate = &endDate
			activePlans[i].UpdatedAt = now
		}
	}

	activePlan := ActivePlan{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    planID,
		Plan:      plan,
		StartDate: now,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	activePlans = append(activePlans, activePlan)

	if err := t.store.Set(ctx, activePlansKey, activePlans); err != nil {
		return nil, fmt.Errorf("save active plans: %w", err)
	}

	t.notifier.Notify(activePlansKey)
	return &activePlan, nil
}

// Deactivate ends the user's current plan. No active plan is a no-op.
func (t *Tracker) Deactivate(ctx context.Context, userID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "plans.tracker.deactivate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	t.mu.Lock()
	defer t.mu.Unlock()

	activePlans, err := kvstore.GetList[ActivePlan](ctx, t.store, activePlansKey)
	if err != nil {
		return fmt.Errorf("get active plans: %w", err)
	}

	now := time.Now()
	deactivated := false
	for i := range activePlans {
		if activePlans[i].UserID == userID && activePlans[i].Active {
			activePlans[i].Active = false
			endDate := now
			activePlans[i].EndDate = &endDate
			activePlans[i].UpdatedAt = now
			deactivated = true
		}
	}

	if !deactivated {
		return nil
	}

	if err := t.store.Set(ctx, activePlansKey, activePlans); err != nil {
		return fmt.Errorf("save active plans: %w", err)
	}

	t.notifier.Notify(activePlansKey)
	return nil
}

// GetActive returns ErrNoActivePlan when the user has none.
func (t *Tracker) GetActive(ctx context.Context, userID string) (*ActivePlan, error) {
	activePlans, err := kvstore.GetList[ActivePlan](ctx, t.store, activePlansKey)
	if err != nil {
		return nil, fmt.Errorf("get active plans: %w", err)
	}

	for i := range activePlans {
		if activePlans[i].UserID == userID && activePlans[i].Active {
			return &activePlans[i], nil
		}
	}
	return nil, ErrNoActivePlan
}
