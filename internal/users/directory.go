package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dietafit/backend/internal/kvstore"
	"github.com/dietafit/backend/internal/telemetry/tracing"
	"github.com/dietafit/backend/pkg"
)

const (
	usersKey        = "users"
	userDataKind    = "user-data"
	userProfileKind = "user-profile"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Directory maps credentials to user records and owns the per-user
// profile snapshots. All writes go through the read-list / mutate /
// write-list cycle over the key-value store, serialized by a mutex.
type Directory struct {
	mu       sync.Mutex
	store    kvstore.Store
	notifier *kvstore.Notifier
}

func NewDirectory(store kvstore.Store, notifier *kvstore.Notifier) *Directory {
	return &Directory{
		store:    store,
		notifier: notifier,
	}
}

func (d *Directory) Register(ctx context.Context, name, email, password string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "users.directory.register")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	allUsers, err := kvstore.GetList[User](ctx, d.store, usersKey)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	for i := range allUsers {
		if allUsers[i].Email == email {
			return nil, ErrEmailTaken
		}
	}

	passwordHash, err := pkg.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user := User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	allUsers = append(allUsers, user)
	if err := d.store.Set(ctx, usersKey, allUsers); err != nil {
		return nil, fmt.Errorf("save users: %w", err)
	}
	// per-user snapshot, for direct lookups without the full list
	if err := d.store.Set(ctx, kvstore.UserKey(userDataKind, user.ID), user); err != nil {
		return nil, fmt.Errorf("save user snapshot: %w", err)
	}

	d.notifier.Notify(usersKey)
	return &user, nil
}

func (d *Directory) Get(ctx context.Context, id string) (*User, error) {
	allUsers, err := kvstore.GetList[User](ctx, d.store, usersKey)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	for i := range allUsers {
		if allUsers[i].ID == id {
			return &allUsers[i], nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (*User, error) {
	allUsers, err := kvstore.GetList[User](ctx, d.store, usersKey)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for i := range allUsers {
		if allUsers[i].Email == email {
			return &allUsers[i], nil
		}
	}
	return nil, ErrUserNotFound
}

func (d *Directory) Update(ctx context.Context, user *User) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "users.directory.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	allUsers, err := kvstore.GetList[User](ctx, d.store, usersKey)
	if err != nil {
		return fmt.Errorf("get users: %w", err)
	}

	for i := range allUsers {
		if allUsers[i].ID == user.ID {
			user.UpdatedAt = time.Now()
			allUsers[i] = *user
			if err := d.store.Set(ctx, usersKey, allUsers); err != nil {
				return fmt.Errorf("save users: %w", err)
			}
			if err := d.store.Set(ctx, kvstore.UserKey(userDataKind, user.ID), *user); err != nil {
				return fmt.Errorf("save user snapshot: %w", err)
			}
			d.notifier.Notify(usersKey)
			return nil
		}
	}

	return ErrUserNotFound
}

func (d *Directory) ValidateCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := d.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !pkg.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (d *Directory) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	if err := d.store.Get(ctx, kvstore.UserKey(userProfileKind, userID), &profile); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// SetProfile creates or replaces the body profile of the given user.
func (d *Directory) SetProfile(ctx context.Context, userID string, profile Profile) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "users.directory.setProfile")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	now := time.Now()
	if existing, getErr := d.GetProfile(ctx, userID); getErr == nil {
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.ID = uuid.NewString()
		profile.CreatedAt = now
	}

	profile.UserID = userID
	profile.UpdatedAt = now

	if err := d.store.Set(ctx, kvstore.UserKey(userProfileKind, userID), profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	d.notifier.Notify(userProfileKind)
	return &profile, nil
}
