package kvstore

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestRedisStore_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStore(db)
	ctx := context.Background()

	mock.ExpectGet("some-entity::user-1").SetVal(`{"name":"banana","count":3}`)
	var val testValue
	require.NoError(t, store.Get(ctx, UserKey("some-entity", "user-1"), &val))
	assert.Equal(t, "banana", val.Name)
	assert.Equal(t, 3, val.Count)

	mock.ExpectGet("missing-key").SetErr(redis.Nil)
	err := store.Get(ctx, "missing-key", &val)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisStore_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStore(db)
	ctx := context.Background()

	mock.ExpectSet("some-entity::user-1", []byte(`{"name":"banana","count":3}`), 0).SetVal("OK")
	require.NoError(t, store.Set(ctx, UserKey("some-entity", "user-1"), testValue{
		Name:  "banana",
		Count: 3,
	}))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Remove(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStore(db)

	mock.ExpectDel("some-entity::user-1").SetVal(1)
	require.NoError(t, store.Remove(context.Background(), UserKey("some-entity", "user-1")))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetList_MissingKeyYieldsEmpty(t *testing.T) {
	store := NewTestStore()
	ctx := context.Background()

	list, err := GetList[testValue](ctx, store, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, store.Set(ctx, "values", []testValue{{Name: "a"}, {Name: "b"}}))
	list, err = GetList[testValue](ctx, store, "values")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
}

func TestNotifier(t *testing.T) {
	notifier := NewNotifier()
	sub := notifier.Subscribe()

	notifier.Notify("weight-entries")

	select {
	case kind := <-sub:
		assert.Equal(t, "weight-entries", kind)
	default:
		t.Fatal("expected a notification")
	}
}
