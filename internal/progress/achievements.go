package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dietafit/backend/internal/kvstore"
	"github.com/dietafit/backend/internal/plans"
	"github.com/dietafit/backend/internal/telemetry/metrics"
	"github.com/dietafit/backend/internal/telemetry/tracing"
)

const achievementsKind = "achievements"

type ConditionType string

const (
	ConditionConsecutiveDays ConditionType = "consecutiveDays"
	ConditionCount           ConditionType = "count"
	ConditionGoalReached     ConditionType = "goalReached"
	ConditionFastDuration    ConditionType = "fastDuration"
)

type Condition struct {
	Type      ConditionType `json:"type"`
	Threshold float64       `json:"threshold"`
	Unit      string        `json:"unit,omitempty"`
}

// Achievement is a catalog definition, never mutated at runtime.
type Achievement struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Category    string    `json:"category"`
	Condition   Condition `json:"condition"`
}

// AchievementUnlock is the per-user state of one achievement. Unlocked
// is a one-way ratchet: once true it stays true even when the metric
// later drops below the threshold.
type AchievementUnlock struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	AchievementID   string     `json:"achievementId"`
	Unlocked        bool       `json:"unlocked"`
	UnlockedAt      *time.Time `json:"unlockedAt,omitempty"`
	ProgressPercent float64    `json:"progressPercent"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func AchievementCatalog() []Achievement {
	return []Achievement{
		{
			ID:          "first-week",
			Name:        "1st Week",
			Description: "Complete your first week of dieting",
			Icon:        "🏆",
			Category:    "diet",
			Condition:   Condition{Type: ConditionConsecutiveDays, Threshold: 7},
		},
		{
			ID:          "five-fasts",
			Name:        "5 Fasts",
			Description: "Complete 5 fasting sessions",
			Icon:        "🌙",
			Category:    "fasting",
			Condition:   Condition{Type: ConditionCount, Threshold: 5},
		},
		{
			ID:          "minus-3kg",
			Name:        "-3kg",
			Description: "Lose 3kg from your initial weight",
			Icon:        "📸",
			Category:    "weight",
			Condition:   Condition{Type: ConditionGoalReached, Threshold: 3, Unit: "kg"},
		},
		{
			ID:          "ketosis",
			Name:        "Ketosis",
			Description: "Keep ketosis for 7 consecutive days",
			Icon:        "💧",
			Category:    "combined",
			Condition:   Condition{Type: ConditionConsecutiveDays, Threshold: 7},
		},
	}
}

// Evaluator compares ledger-derived metrics against the achievement
// catalog and persists per-user unlock records.
type Evaluator struct {
	mu       sync.Mutex
	store    kvstore.Store
	ledger   *Ledger
	planner  activePlanChecker
	notifier *kvstore.Notifier
	metrics  *metrics.Manager
}

func NewEvaluator(
	store kvstore.Store,
	ledger *Ledger,
	planner activePlanChecker,
	notifier *kvstore.Notifier,
	metrics *metrics.Manager,
) *Evaluator {
	return &Evaluator{
		store:    store,
		ledger:   ledger,
		planner:  planner,
		notifier: notifier,
		metrics:  metrics,
	}
}

// Evaluate recomputes all achievement metrics for the user and ratchets
// unlocks. It returns the full unlock state, catalog-ordered.
func (e *Evaluator) Evaluate(ctx context.Context, userID string) (_ []AchievementUnlock, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.achievements.evaluate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	actuals, err := e.metricValues(ctx, userID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := kvstore.UserKey(achievementsKind, userID)
	unlocks, err := kvstore.GetList[AchievementUnlock](ctx, e.store, key)
	if err != nil {
		return nil, fmt.Errorf("get achievement unlocks: %w", err)
	}

	indexByAchievement := make(map[string]int, len(unlocks))
	for i := range unlocks {
		indexByAchievement[unlocks[i].AchievementID] = i
	}
	for _, achievement := range AchievementCatalog() {
		if _, ok := indexByAchievement[achievement.ID]; !ok {
			unlocks = append(unlocks, AchievementUnlock{
				ID:            uuid.NewString(),
				UserID:        userID,
				AchievementID: achievement.ID,
			})
			indexByAchievement[achievement.ID] = len(unlocks) - 1
		}
	}

	now := time.Now()
	newlyUnlocked := 0
	result := make([]AchievementUnlock, 0, len(AchievementCatalog()))

	for _, achievement := range AchievementCatalog() {
		record := &unlocks[indexByAchievement[achievement.ID]]

		actual := actuals[achievement.ID]
		progress := actual / achievement.Condition.Threshold * 100
		if progress > 100 {
			progress = 100
		}

		if record.Unlocked {
			// the ratchet: never re-locked, progress pinned at 100
			record.ProgressPercent = 100
		} else {
			record.ProgressPercent = progress
			if actual >= achievement.Condition.Threshold {
				record.Unlocked = true
				unlockedAt := now
				record.UnlockedAt = &unlockedAt
				newlyUnlocked++
			}
		}
		record.UpdatedAt = now
		result = append(result, *record)
	}

	if err := e.store.Set(ctx, key, unlocks); err != nil {
		return nil, fmt.Errorf("save achievement unlocks: %w", err)
	}

	if newlyUnlocked > 0 {
		e.metrics.CounterAchievementsUnlocked.Add(float64(newlyUnlocked))
		e.notifier.Notify(achievementsKind)
	}

	return result, nil
}

// ListUnlocks returns the persisted unlock records without evaluating.
func (e *Evaluator) ListUnlocks(ctx context.Context, userID string) ([]AchievementUnlock, error) {
	unlocks, err := kvstore.GetList[AchievementUnlock](ctx, e.store, kvstore.UserKey(achievementsKind, userID))
	if err != nil {
		return nil, fmt.Errorf("get achievement unlocks: %w", err)
	}
	return unlocks, nil
}

// metricValues computes the actual metric per achievement id.
func (e *Evaluator) metricValues(ctx context.Context, userID string) (map[string]float64, error) {
	dietDays, err := e.ledger.ListDietDays(ctx, userID)
	if err != nil {
		return nil, err
	}
	fasts, err := e.ledger.ListFasts(ctx, userID)
	if err != nil {
		return nil, err
	}
	weights, err := e.ledger.ListWeights(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	streak := float64(DietStreakDays(dietDays, now))

	var weightLost float64
	if len(weights) > 1 {
		weightLost = weights[len(weights)-1].WeightKG - weights[0].WeightKG
		if weightLost < 0 {
			weightLost = 0
		}
	}

	// the ketosis streak only counts while a combined (keto+fasting)
	// plan is active
	var ketosisStreak float64
	activePlan, err := e.planner.GetActive(ctx, userID)
	switch {
	case err == nil:
		if activePlan.Plan.Kind == plans.KindCombined {
			ketosisStreak = streak
		}
	case errors.Is(err, plans.ErrNoActivePlan):
	default:
		return nil, fmt.Errorf("get active plan: %w", err)
	}

	return map[string]float64{
		"first-week": streak,
		"five-fasts": float64(len(fasts)),
		"minus-3kg":  weightLost,
		"ketosis":    ketosisStreak,
	}, nil
}
