package plans

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

type Handler struct {
	catalog *Catalog
	tracker *Tracker
	metrics *metrics.Manager
}

func NewHandler(catalog *Catalog, tracker *Tracker, metrics *metrics.Manager) *Handler {
	return &Handler{
		catalog: catalog,
		tracker: tracker,
		metrics: metrics,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/plans", handler.HandleList).
		Methods("GET", "OPTIONS").Name("list-plans")
	mainRouter.HandleFunc("/plans/active", handler.HandleGetActive).
		Methods("GET", "OPTIONS").Name("get-active-plan")
	mainRouter.HandleFunc("/plans/active", handler.HandleDeactivate).
		Methods("DELETE", "OPTIONS").Name("deactivate-plan")
	mainRouter.HandleFunc("/plans/{id}/activate", handler.HandleActivate).
		Methods("POST", "OPTIONS").Name("activate-plan")
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.list")
	defer span.End()

	allPlans := handler.catalog.All()
	plansJson, err := json.Marshal(allPlans)
	if err != nil {
		log.Errorf("marshal plans error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resJson := fmt.Sprintf(`{"plans": %s, "total": %d}`, plansJson, len(allPlans))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, []byte(resJson))
}

type activePlanResponse struct {
	ActivePlan
	Progress WeekProgress `json:"progress"`
}

func (handler *Handler) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.getActive")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	activePlan, err := handler.tracker.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoActivePlan) {
			http.Error(w, "no active plan", http.StatusNotFound)
			return
		}
		log.Errorf("get active plan of %s: %s", userID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := activePlanResponse{
		ActivePlan: *activePlan,
		Progress:   activePlan.Progress(time.Now()),
	}
	respJson, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("marshal active plan error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.activate")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	planID := mux.Vars(r)["id"]
	if planID == "" {
		http.Error(w, "error, plan id empty", http.StatusBadRequest)
		return
	}

	activePlan, err := handler.tracker.Activate(ctx, userID, planID)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		log.Errorf("activate plan %s for %s: %s", planID, userID, err)
		http.Error(w, "activate plan failed", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterPlanActivations.Inc()

	activePlanJson, err := json.Marshal(activePlan)
	if err != nil {
		log.Errorf("marshal active plan error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Tracef("plan %s activated for user %s", planID, userID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, activePlanJson, http.StatusCreated)
}

func (handler *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "plansHandler.deactivate")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "DELETE, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	if err := handler.tracker.Deactivate(ctx, userID); err != nil {
		log.Errorf("deactivate plan of %s: %s", userID, err)
		http.Error(w, "deactivate plan failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "deactivated")
}
