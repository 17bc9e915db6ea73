package users

import (
	"context"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietafit/backend/internal/kvstore"
)

func newTestDirectory() *Directory {
	return NewDirectory(kvstore.NewTestStore(), kvstore.NewNotifier())
}

func TestDirectory_Register(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	user, err := dir.Register(ctx, "Ana", "Ana@Example.com", "s3cr3t-pass")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "Ana", user.Name)
	// emails are stored lowercased
	assert.Equal(t, "ana@example.com", user.Email)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "s3cr3t-pass", user.PasswordHash)

	// same email, different casing
	_, err = dir.Register(ctx, "Ana Again", "ANA@example.com", "other-pass")
	assert.ErrorIs(t, err, ErrEmailTaken)

	found, err := dir.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)

	found, err = dir.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestDirectory_GetNotFound(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	_, err := dir.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = dir.FindByEmail(ctx, "nope@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDirectory_ValidateCredentials(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	registered, err := dir.Register(ctx, "Ana", "ana@example.com", "s3cr3t-pass")
	require.NoError(t, err)

	user, err := dir.ValidateCredentials(ctx, "ana@example.com", "s3cr3t-pass")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = dir.ValidateCredentials(ctx, "ana@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = dir.ValidateCredentials(ctx, "unknown@example.com", "s3cr3t-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDirectory_Update(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	user, err := dir.Register(ctx, "Ana", "ana@example.com", "s3cr3t-pass")
	require.NoError(t, err)

	user.Name = "Ana Maria"
	require.NoError(t, dir.Update(ctx, user))

	found, err := dir.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", found.Name)
	assert.False(t, found.UpdatedAt.Before(found.CreatedAt))

	unknown := *user
	unknown.ID = "nope"
	assert.ErrorIs(t, dir.Update(ctx, &unknown), ErrUserNotFound)
}

func TestDirectory_Profile(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	_, err := dir.GetProfile(ctx, "user-1")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	saved, err := dir.SetProfile(ctx, "user-1", Profile{
		Age:           30,
		Sex:           SexFemale,
		HeightCM:      165,
		WeightKG:      62,
		ActivityLevel: ActivityLight,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "user-1", saved.UserID)

	got, err := dir.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, 62.0, got.WeightKG)

	// replacing keeps the id and creation time
	replaced, err := dir.SetProfile(ctx, "user-1", Profile{
		Age:           31,
		Sex:           SexFemale,
		HeightCM:      165,
		WeightKG:      60,
		ActivityLevel: ActivityModerate,
	})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, replaced.ID)
	assert.Equal(t, saved.CreatedAt.Unix(), replaced.CreatedAt.Unix())
	assert.Equal(t, 60.0, replaced.WeightKG)
}

func TestDirectory_RegisterMany(t *testing.T) {
	ctx := context.Background()
	dir := newTestDirectory()

	registered := make(map[string]string)
	for range 20 {
		name := gofakeit.Name()
		email := strings.ToLower(gofakeit.Email())
		if _, taken := registered[email]; taken {
			continue
		}

		user, err := dir.Register(ctx, name, email, gofakeit.Password(true, true, true, false, false, 12))
		require.NoError(t, err)
		registered[email] = user.ID
	}

	for email, id := range registered {
		found, err := dir.FindByEmail(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, id, found.ID)
	}
}
