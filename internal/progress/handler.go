package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/dietafit/backend/internal/auth"
	"github.com/dietafit/backend/internal/telemetry/metrics"
	"github.com/dietafit/backend/internal/telemetry/tracing"
	"github.com/dietafit/backend/pkg"
)

const (
	maxWeightKG     = 500
	minFastHours    = 12
	maxFastHours    = 72
	maxNotesLength  = 500
	entryDateLayout = "2006-01-02"
)

type Handler struct {
	ledger    *Ledger
	stats     *StatsService
	evaluator *Evaluator
	metrics   *metrics.Manager
}

func NewHandler(
	ledger *Ledger,
	stats *StatsService,
	evaluator *Evaluator,
	metrics *metrics.Manager,
) *Handler {
	return &Handler{
		ledger:    ledger,
		stats:     stats,
		evaluator: evaluator,
		metrics:   metrics,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/progress/weights", handler.HandleRecordWeight).
		Methods("POST", "OPTIONS").Name("new-weight")
	mainRouter.HandleFunc("/progress/weights", handler.HandleListWeights).
		Methods("GET", "OPTIONS").Name("list-weights")
	mainRouter.HandleFunc("/progress/fasts", handler.HandleRecordFast).
		Methods("POST", "OPTIONS").Name("new-fast")
	mainRouter.HandleFunc("/progress/fasts", handler.HandleListFasts).
		Methods("GET", "OPTIONS").Name("list-fasts")
	mainRouter.HandleFunc("/progress/dietdays", handler.HandleRecordDietDay).
		Methods("POST", "OPTIONS").Name("new-diet-day")
	mainRouter.HandleFunc("/progress/dietdays", handler.HandleListDietDays).
		Methods("GET", "OPTIONS").Name("list-diet-days")
	mainRouter.HandleFunc("/progress/stats", handler.HandleStats).
		Methods("GET", "OPTIONS").Name("progress-stats")
	mainRouter.HandleFunc("/progress/achievements", handler.HandleAchievements).
		Methods("GET", "OPTIONS").Name("progress-achievements")
}

func parseEntryDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("date empty")
	}
	date, err := time.Parse(entryDateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %q", value)
	}
	// same-day entries are fine, tomorrow's are not
	if date.After(time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)) {
		return time.Time{}, errors.New("date is in the future")
	}
	return date, nil
}

type recordWeightRequest struct {
	Date     string  `json:"date"`
	WeightKG float64 `json:"weightKg"`
	Notes    string  `json:"notes"`
}

func (handler *Handler) HandleRecordWeight(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "progressHandler.recordWeight")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	var req recordWeightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("record weight, unmarshal json params: %s", err)
		http.Error(w, "record weight failed", http.StatusBadRequest)
		return
	}

	date, err := parseEntryDate(req.Date)
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}
	if req.WeightKG <= 0 || req.WeightKG > maxWeightKG {
		http.Error(w, "error, weight out of range", http.StatusBadRequest)
		return
	}
	if len(req.Notes) > maxNotesLength {
		http.Error(w, "error, notes too long", http.StatusBadRequest)
		return
	}

	entry, err := handler.ledger.RecordWeight(ctx, userID, date, req.WeightKG, req.Notes)
	if err != nil {
		log.Errorf("record weight for %s: %s", userID, err)
		http.Error(w, "record weight failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterWeightEntries.Inc()

	entryJson, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("marshal weight entry error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, entryJson, http.StatusCreated)
}

func (handler *Handler) HandleListWeights(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "progressHandler.listWeights")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	entries, err := handler.ledger.ListWeights(ctx, userID)
	if err != nil {
		log.Errorf("list weights for %s: %s", userID, err)
		http.Error(w, "failed to get weight entries", http.StatusInternalServerError)
		return
	}

	if len(entries) == 0 {
		entries = []WeightEntry{}
	}
	entriesJson, err := json.Marshal(entries)
	if err != nil {
		log.Errorf("marshal weight entries error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resJson := fmt.Sprintf(`{"entries": %s, "total": %d}`, entriesJson, len(entries))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, []byte(resJson))
}

type recordFastRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Protocol  string `json:"protocol"`
}

func (handler *Handler) HandleRecordFast(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "progressHandler.recordFast")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	var req recordFastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("record fast, unmarshal json params: %s", err)
		http.Error(w, "record fast failed", http.StatusBadRequest)
		return
	}

	date, err := parseEntryDate(req.Date)
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	duration, err := FastDuration(req.StartTime, req.EndTime)
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}
	if duration < minFastHours || duration > maxFastHours {
		http.Error(w, "error, fast duration out of range", http.StatusBadRequest)
		return
	}

	session, err := handler.ledger.RecordFast(ctx, userID, date, req.StartTime, req.EndTime, req.Protocol)
	if err != nil {
		log.Errorf("record fast for %s: %s", userID, err)
		http.Error(w, "record fast failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterFastingSessions.Inc()

	sessionJson, err := json.Marshal(session)
	if err != nil {
		log.Errorf("marshal fasting session error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, sessionJson, http.StatusCreated)
}

func (handler *Handler) HandleListFasts(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "progressHandler.listFasts")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	sessions, err := handler.ledger.ListFasts(ctx, userID)
	if err != nil {
		log.Errorf("list fasts for %s: %s", userID, err)
		http.Error(w, "failed to get fasting sessions", http.StatusInternalServerError)
		return
	}

	if len(sessions) == 0 {
		sessions = []FastingSession{}
	}
	sessionsJson, err := json.Marshal(sessions)
	if err != nil {
		log.Errorf("marshal fasting sessions error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resJson := fmt.Sprintf(`{"sessions": %s, "total": %d}`, sessionsJson, len(sessions))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, []byte(resJson))
}

type recordDietDayRequest struct {
	Date  string `json:"date"`
	Notes string `json:"notes"`
}

func (handler *Handler) HandleRecordDietDay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "progressHandler.recordDietDay")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	var req recordDietDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("record diet day, unmarshal json params: %s", err)
		http.Error(w, "record diet day failed", http.StatusBadRequest)
		return
	}

	date, err := parseEntryDate(req.Date)
	if err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}
	if len(req.Notes) > maxNotesLength {
		http.Error(w, "error, notes too long", http.StatusBadRequest)
		return
	}

	entry, err := handler.ledger.RecordDietDay(ctx, userID, date, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoActivePlan):
			http.Error(w, "error, no active plan", http.StatusBadRequest)
		case errors.Is(err, ErrDuplicateDietDay):
			http.Error(w, "error, diet day already logged", http.StatusConflict)
		default:
			log.Errorf("record diet day for %s: %s", userID, err)
			http.Error(w, "record diet day failed", http.StatusInternalServerError)
		}
		return
	}

	handler.metrics.CounterDietDays.Inc()

	entryJson, err := json.Marshal(entry)
	if err != nil {
		log.Errorf("marshal diet day error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, entryJson, http.StatusCreated)
}

func (handler *Handler) HandleListDietDays(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "progressHandler.listDietDays")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	entries, err := handler.ledger.ListDietDays(ctx, userID)
	if err != nil {
		log.Errorf("list diet days for %s: %s", userID, err)
		http.Error(w, "failed to get diet days", http.StatusInternalServerError)
		return
	}

	if len(entries) == 0 {
		entries = []DietDayEntry{}
	}
	entriesJson, err := json.Marshal(entries)
	if err != nil {
		log.Errorf("marshal diet days error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resJson := fmt.Sprintf(`{"entries": %s, "total": %d}`, entriesJson, len(entries))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, []byte(resJson))
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "progressHandler.stats")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	stats, err := handler.stats.Compute(ctx, userID)
	if err != nil {
		log.Errorf("compute stats for %s: %s", userID, err)
		http.Error(w, "failed to compute stats", http.StatusInternalServerError)
		return
	}

	statsJson, err := json.Marshal(stats)
	if err != nil {
		log.Errorf("marshal stats error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statsJson)
}

type achievementState struct {
	Achievement
	Unlocked        bool       `json:"unlocked"`
	UnlockedAt      *time.Time `json:"unlockedAt,omitempty"`
	ProgressPercent float64    `json:"progressPercent"`
}

func (handler *Handler) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "progressHandler.achievements")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	unlocks, err := handler.evaluator.Evaluate(ctx, userID)
	if err != nil {
		log.Errorf("evaluate achievements for %s: %s", userID, err)
		http.Error(w, "failed to evaluate achievements", http.StatusInternalServerError)
		return
	}

	unlocksByID := make(map[string]AchievementUnlock, len(unlocks))
	for _, unlock := range unlocks {
		unlocksByID[unlock.AchievementID] = unlock
	}

	states := make([]achievementState, 0, len(AchievementCatalog()))
	for _, achievement := range AchievementCatalog() {
		unlock := unlocksByID[achievement.ID]
		states = append(states, achievementState{
			Achievement:     achievement,
			Unlocked:        unlock.Unlocked,
			UnlockedAt:      unlock.UnlockedAt,
			ProgressPercent: unlock.ProgressPercent,
		})
	}

	statesJson, err := json.Marshal(states)
	if err != nil {
		log.Errorf("marshal achievements error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resJson := fmt.Sprintf(`{"achievements": %s, "total": %d}`, statesJson, len(states))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, []byte(resJson))
}
