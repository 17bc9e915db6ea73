package measurements

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/dietafit/backend/internal/auth"
	"github.com/dietafit/backend/internal/progress"
	"github.com/dietafit/backend/internal/telemetry/tracing"
	"github.com/dietafit/backend/pkg"
)

type weightsReader interface {
	ListWeights(ctx context.Context, userID string) ([]progress.WeightEntry, error)
}

type Handler struct {
	repo    *Repo
	weights weightsReader
}

func NewHandler(repo *Repo, weights weightsReader) *Handler {
	return &Handler{
		repo:    repo,
		weights: weights,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/measurements", handler.HandleAdd).
		Methods("POST", "OPTIONS").Name("new-measurement")
	mainRouter.HandleFunc("/measurements", handler.HandleList).
		Methods("GET", "OPTIONS").Name("list-measurements")
	mainRouter.HandleFunc("/measurements/export", handler.HandleExport).
		Methods("GET", "OPTIONS").Name("export-measurements")
	mainRouter.HandleFunc("/measurements/{id}", handler.HandleUpdate).
		Methods("PUT", "OPTIONS").Name("update-measurement")
	mainRouter.HandleFunc("/measurements/{id}", handler.HandleDelete).
		Methods("DELETE", "OPTIONS").Name("delete-measurement")
	mainRouter.HandleFunc("/photos", handler.HandleAddPhoto).
		Methods("POST", "OPTIONS").Name("new-photo")
	mainRouter.HandleFunc("/photos", handler.HandleListPhotos).
		Methods("GET", "OPTIONS").Name("list-photos")
	mainRouter.HandleFunc("/photos/{id}", handler.HandleDeletePhoto).
		Methods("DELETE", "OPTIONS").Name("delete-photo")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "measurementsHandler.add")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var measurement Measurement
	if err := json.NewDecoder(r.Body).Decode(&measurement); err != nil {
		log.Errorf("add measurement, unmarshal json params: %s", err)
		http.Error(w, "add measurement failed", http.StatusBadRequest)
		return
	}
	measurement.UserID = userID
	if measurement.Date.IsZero() {
		measurement.Date = time.Now()
	}

	added, err := handler.repo.Add(ctx, measurement)
	if err != nil {
		log.Errorf("add measurement for %s: %s", userID, err)
		http.Error(w, "add measurement failed", http.StatusInternalServerError)
		return
	}

	addedJson, err := json.Marshal(added)
	if err != nil {
		log.Errorf("marshal measurement error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "measurementsHandler.list")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	all, err := handler.repo.List(ctx, userID)
	if err != nil {
		log.Errorf("list measurements for %s: %s", userID, err)
		http.Error(w, "failed to get measurements", http.StatusInternalServerError)
		return
	}

	trend := TrendStable
	if weightEntries, weightsErr := handler.weights.ListWeights(ctx, userID); weightsErr == nil {
		weights := make([]float64, 0, len(weightEntries))
		for i := range weightEntries {
			weights = append(weights, weightEntries[i].WeightKG)
		}
		trend = TrendOf(weights)
	}

	if len(all) == 0 {
		all = []Measurement{}
	}
	allJson, err := json.Marshal(all)
	if err != nil {
		log.Errorf("marshal measurements error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resJson := fmt.Sprintf(`{"measurements": %s, "total": %d, "weightTrend": "%s"}`, allJson, len(all), trend)
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, []byte(resJson))
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "measurementsHandler.update")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	var measurement Measurement
	if err := json.NewDecoder(r.Body).Decode(&measurement); err != nil {
		log.Errorf("update measurement, unmarshal json params: %s", err)
		http.Error(w, "update measurement failed", http.StatusBadRequest)
		return
	}
	measurement.ID = id
	measurement.UserID = userID

	updated, err := handler.repo.Update(ctx, measurement)
	if err != nil {
		if errors.Is(err, ErrMeasurementNotFound) {
			http.Error(w, "measurement not found", http.StatusNotFound)
			return
		}
		log.Errorf("update measurement %s for %s: %s", id, userID, err)
		http.Error(w, "update measurement failed", http.StatusInternalServerError)
		return
	}

	updatedJson, err := json.Marshal(updated)
	if err != nil {
		log.Errorf("marshal measurement error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, updatedJson)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "measurementsHandler.delete")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if err := handler.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, ErrMeasurementNotFound) {
			http.Error(w, "measurement not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete measurement %s for %s: %s", id, userID, err)
		http.Error(w, "delete measurement failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponse(w, pkg.ContentType.JSON, fmt.Sprintf(`{"deletedId": "%s"}`, id), http.StatusOK)
}

func (handler *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "measurementsHandler.export")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	all, err := handler.repo.List(ctx, userID)
	if err != nil {
		log.Errorf("export measurements for %s: %s", userID, err)
		http.Error(w, "failed to export measurements", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", pkg.ContentType.CSV)
	w.Header().Set("Content-Disposition", `attachment; filename="measurements.csv"`)

	csvWriter := csv.NewWriter(w)
	_ = csvWriter.Write([]string{"date", "armsCm", "bustCm", "waistCm", "hipsCm", "thighsCm", "notes"})
	for _, m := range all {
		_ = csvWriter.Write([]string{
			m.Date.Format("2006-01-02"),
			strconv.FormatFloat(m.ArmsCm, 'f', 1, 64),
			strconv.FormatFloat(m.BustCm, 'f', 1, 64),
			strconv.FormatFloat(m.WaistCm, 'f', 1, 64),
			strconv.FormatFloat(m.HipsCm, 'f', 1, 64),
			strconv.FormatFloat(m.ThighsCm, 'f', 1, 64),
			m.Notes,
		})
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		log.Errorf("write measurements csv: %s", err)
	}
}

func (handler *Handler) HandleAddPhoto(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "measurementsHandler.addPhoto")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	var photo Photo
	if err := json.NewDecoder(r.Body).Decode(&photo); err != nil {
		log.Errorf("add photo, unmarshal json params: %s", err)
		http.Error(w, "add photo failed", http.StatusBadRequest)
		return
	}
	if photo.DataBase64 == "" {
		http.Error(w, "error, photo data empty", http.StatusBadRequest)
		return
	}
	photo.UserID = userID
	if photo.Date.IsZero() {
		photo.Date = time.Now()
	}

	added, err := handler.repo.AddPhoto(ctx, photo)
	if err != nil {
		log.Errorf("add photo for %s: %s", userID, err)
		http.Error(w, "add photo failed", http.StatusInternalServerError)
		return
	}

	addedJson, err := json.Marshal(added)
	if err != nil {
		log.Errorf("marshal photo error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

func (handler *Handler) HandleListPhotos(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "measurementsHandler.listPhotos")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	all, err := handler.repo.ListPhotos(ctx, userID)
	if err != nil {
		log.Errorf("list photos for %s: %s", userID, err)
		http.Error(w, "failed to get photos", http.StatusInternalServerError)
		return
	}

	if len(all) == 0 {
		all = []Photo{}
	}
	allJson, err := json.Marshal(all)
	if err != nil {
		log.Errorf("marshal photos error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resJson := fmt.Sprintf(`{"photos": %s, "total": %d}`, allJson, len(all))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, []byte(resJson))
}

func (handler *Handler) HandleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "measurementsHandler.deletePhoto")
	defer span.End()

	userID, ok := auth.RequestUserID(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if err := handler.repo.DeletePhoto(ctx, userID, id); err != nil {
		if errors.Is(err, ErrPhotoNotFound) {
			http.Error(w, "photo not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete photo %s for %s: %s", id, userID, err)
		http.Error(w, "delete photo failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponse(w, pkg.ContentType.JSON, fmt.Sprintf(`{"deletedId": "%s"}`, id), http.StatusOK)
}
