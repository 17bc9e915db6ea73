package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"

	"github.com/dietafit/backend/internal/telemetry/tracing"
	"github.com/dietafit/backend/internal/users"
)

const statsCacheTTLSeconds = 300

// Stats is the derived per-user progress snapshot. BMI is nil when the
// user has no profile height or no logged weight; AvgFastHours is nil
// when there are no fasting sessions.
type Stats struct {
	CurrentWeight        float64  `json:"currentWeight"`
	BMI                  *float64 `json:"bmi"`
	DietStreakDays       int      `json:"dietStreakDays"`
	AvgFastHours         *float64 `json:"avgFastHours"`
	TotalWeightChange    float64  `json:"totalWeightChange"`
	UnlockedAchievements int      `json:"unlockedAchievements"`
}

type profileReader interface {
	GetProfile(ctx context.Context, userID string) (*users.Profile, error)
}

// StatsService computes progress stats over the ledger, with a per-user
// freecache layer in front. Cache entries are dropped on any ledger
// notification.
type StatsService struct {
	ledger    *Ledger
	profiles  profileReader
	evaluator *Evaluator
	cache     *freecache.Cache
}

func NewStatsService(
	ledger *Ledger,
	profiles profileReader,
	evaluator *Evaluator,
	cache *freecache.Cache,
) *StatsService {
	return &StatsService{
		ledger:    ledger,
		profiles:  profiles,
		evaluator: evaluator,
		cache:     cache,
	}
}

// StartCacheInvalidation clears cached stats whenever a ledger entity
// changes. Runs until ctx is done.
func (s *StatsService) StartCacheInvalidation(ctx context.Context, updates <-chan string) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entityKind := <-updates:
				switch entityKind {
				case weightEntriesKind, fastingSessionsKind, dietDaysKind,
					achievementsKind, "active-plans", "user-profile":
					s.cache.Clear()
					log.Tracef("stats cache cleared on %s update", entityKind)
				}
			}
		}
	}()
}

func (s *StatsService) Compute(ctx context.Context, userID string) (_ *Stats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "progress.stats.compute")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cacheKey := []byte("stats::" + userID)
	if cached, cacheErr := s.cache.Get(cacheKey); cacheErr == nil {
		var stats Stats
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
		// fall through and recompute on a corrupt cache entry
	}

	stats, err := s.compute(ctx, userID, time.Now())
	if err != nil {
		return nil, err
	}

	statsBytes, err := json.Marshal(stats)
	if err != nil {
		return nil, fmt.Errorf("marshal stats: %w", err)
	}
	if err := s.cache.Set(cacheKey, statsBytes, statsCacheTTLSeconds); err != nil {
		log.Warnf("cache stats for %s: %s", userID, err)
	}

	return stats, nil
}

func (s *StatsService) compute(ctx context.Context, userID string, now time.Time) (*Stats, error) {
	weights, err := s.ledger.ListWeights(ctx, userID)
	if err != nil {
		return nil, err
	}
	fasts, err := s.ledger.ListFasts(ctx, userID)
	if err != nil {
		return nil, err
	}
	dietDays, err := s.ledger.ListDietDays(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		DietStreakDays: DietStreakDays(dietDays, now),
	}

	if len(weights) > 0 {
		// lists are date-descending: first is newest, last is oldest
		stats.CurrentWeight = weights[0].WeightKG
		stats.TotalWeightChange = weights[len(weights)-1].WeightKG - weights[0].WeightKG
	}

	if len(fasts) > 0 {
		var total float64
		for i := range fasts {
			total += fasts[i].DurationHours
		}
		avg := total / float64(len(fasts))
		stats.AvgFastHours = &avg
	}

	if stats.CurrentWeight > 0 {
		if profile, profileErr := s.profiles.GetProfile(ctx, userID); profileErr == nil && profile.HeightCM > 0 {
			bmi := profile.BMI(stats.CurrentWeight)
			stats.BMI = &bmi
		}
	}

	unlocks, err := s.evaluator.ListUnlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range unlocks {
		if unlocks[i].Unlocked {
			stats.UnlockedAchievements++
		}
	}

	return stats, nil
}

// DietStreakDays counts consecutive logged calendar days ending today.
// Entries must be date-descending; the walk stops at the first gap.
func DietStreakDays(entries []DietDayEntry, now time.Time) int {
	streak := 0
	for i, entry := range entries {
		diffDays := int(math.Floor(now.Sub(entry.Date).Hours() / 24))
		if diffDays != i {
			break
		}
		streak++
	}
	return streak
}
