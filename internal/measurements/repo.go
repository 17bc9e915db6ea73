package measurements

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dietafit/backend/internal/kvstore"
	"github.com/dietafit/backend/internal/telemetry/tracing"
)

const (
	measurementsKind = "body-measurements"
	photosKind       = "progress-photos"
)

var (
	ErrMeasurementNotFound = errors.New("measurement not found")
	ErrPhotoNotFound       = errors.New("photo not found")
)

// Repo stores per-user measurement and photo lists in the key-value
// store, one list per user.
type Repo struct {
	mu       sync.Mutex
	store    kvstore.Store
	notifier *kvstore.Notifier
}

func NewRepo(store kvstore.Store, notifier *kvstore.Notifier) *Repo {
	return &Repo{
		store:    store,
		notifier: notifier,
	}
}

func (r *Repo) Add(ctx context.Context, measurement Measurement) (_ *Measurement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "measurements.repo.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	key := kvstore.UserKey(measurementsKind, measurement.UserID)
	all, err := kvstore.GetList[Measurement](ctx, r.store, key)
	if err != nil {
		return nil, fmt.Errorf("get measurements: %w", err)
	}

	now := time.Now()
	measurement.ID = uuid.NewString()
	measurement.CreatedAt = now
	measurement.UpdatedAt = now
	all = append(all, measurement)

	if err := r.store.Set(ctx, key, all); err != nil {
		return nil, fmt.Errorf("save measurements: %w", err)
	}

	r.notifier.Notify(measurementsKind)
	return &measurement, nil
}

func (r *Repo) List(ctx context.Context, userID string) ([]Measurement, error) {
	all, err := kvstore.GetList[Measurement](ctx, r.store, kvstore.UserKey(measurementsKind, userID))
	if err != nil {
		return nil, fmt.Errorf("get measurements: %w", err)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Date.After(all[j].Date)
	})
	return all, nil
}

func (r *Repo) Update(ctx context.Context, measurement Measurement) (_ *Measurement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "measurements.repo.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	key := kvstore.UserKey(measurementsKind, measurement.UserID)
	all, err := kvstore.GetList[Measurement](ctx, r.store, key)
	if err != nil {
		return nil, fmt.Errorf("get measurements: %w", err)
	}

	for i := range all {
		if all[i].ID == measurement.ID {
			measurement.CreatedAt = all[i].CreatedAt
			measurement.UpdatedAt = time.Now()
			all[i] = measurement
			if err := r.store.Set(ctx, key, all); err != nil {
				return nil, fmt.Errorf("save measurements: %w", err)
			}
			r.notifier.Notify(measurementsKind)
			return &measurement, nil
		}
	}

	return nil, ErrMeasurementNotFound
}

func (r *Repo) Delete(ctx context.Context, userID, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "measurements.repo.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	key := kvstore.UserKey(measurementsKind, userID)
	all, err := kvstore.GetList[Measurement](ctx, r.store, key)
	if err != nil {
		return fmt.Errorf("get measurements: %w", err)
	}

	for i := range all {
		if all[i].ID == id {
			all = append(all[:i], all[i+1:]...)
			if err := r.store.Set(ctx, key, all); err != nil {
				return fmt.Errorf("save measurements: %w", err)
			}
			r.notifier.Notify(measurementsKind)
			return nil
		}
	}

	return ErrMeasurementNotFound
}

func (r *Repo) AddPhoto(ctx context.Context, photo Photo) (_ *Photo, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "measurements.repo.addPhoto")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	key := kvstore.UserKey(photosKind, photo.UserID)
	all, err := kvstore.GetList[Photo](ctx, r.store, key)
	if err != nil {
		return nil, fmt.Errorf("get photos: %w", err)
	}

	photo.ID = uuid.NewString()
	photo.CreatedAt = time.Now()
	all = append(all, photo)

	if err := r.store.Set(ctx, key, all); err != nil {
		return nil, fmt.Errorf("save photos: %w", err)
	}

	r.notifier.Notify(photosKind)
	return &photo, nil
}

func (r *Repo) ListPhotos(ctx context.Context, userID string) ([]Photo, error) {
	all, err := kvstore.GetList[Photo](ctx, r.store, kvstore.UserKey(photosKind, userID))
	if err != nil {
		return nil, fmt.Errorf("get photos: %w", err)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Date.After(all[j].Date)
	})
	return all, nil
}

func (r *Repo) DeletePhoto(ctx context.Context, userID, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "measurements.repo.deletePhoto")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	key := kvstore.UserKey(photosKind, userID)
	all, err := kvstore.GetList[Photo](ctx, r.store, key)
	if err != nil {
		return fmt.Errorf("get photos: %w", err)
	}

	for i := range all {
		if all[i].ID == id {
			all = append(all[:i], all[i+1:]...)
			if err := r.store.Set(ctx, key, all); err != nil {
				return fmt.Errorf("save photos: %w", err)
			}
			r.notifier.Notify(photosKind)
			return nil
		}
	}

	return ErrPhotoNotFound
}
