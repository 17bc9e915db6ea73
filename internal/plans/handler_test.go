package plans

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietafit/backend/internal/auth"
	"github.com/dietafit/backend/internal/kvstore"
	"github.com/dietafit/backend/internal/telemetry/metrics"
)

func newTestPlansRouter() *mux.Router {
	catalog := NewCatalog()
	tracker := NewTracker(kvstore.NewTestStore(), catalog, kvstore.NewNotifier())
	handler := NewHandler(catalog, tracker, metrics.NewTestManager())

	router := mux.NewRouter()
	handler.SetupRoutes(router)
	return router
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(auth.ContextWithUserID(req.Context(), "user-1"))
}

func TestPlansHandler_List(t *testing.T) {
	router := newTestPlansRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/plans", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Plans []Plan `json:"plans"`
		Total int    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Total)
	assert.Len(t, resp.Plans, 7)
}

func TestPlansHandler_ActivateAndGetActive(t *testing.T) {
	router := newTestPlansRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/plans/low-carb/activate"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/plans/active"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp activePlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "low-carb", resp.PlanID)
	assert.True(t, resp.Active)
	assert.Equal(t, 1, resp.Progress.CurrentWeek)
}

func TestPlansHandler_Activate_unknownPlan(t *testing.T) {
	router := newTestPlansRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/plans/nope/activate"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlansHandler_GetActive_none(t *testing.T) {
	router := newTestPlansRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/plans/active"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlansHandler_Deactivate(t *testing.T) {
	router := newTestPlansRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("POST", "/plans/keto/activate"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("DELETE", "/plans/active"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "deactivated", rec.Body.String())

	// second deactivate is still OK, it is a no-op
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("DELETE", "/plans/active"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest("GET", "/plans/active"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
