package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/kitchen/internal/cache"
)

type detail struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := cache.NewRedisStore(client, cache.WithTTL(time.Minute))

	mock.ExpectGet("kitchen:orders:1").RedisNil()
	mock.ExpectSet("kitchen:orders:1", []byte(`{"id":1}`), time.Minute).SetVal("OK")
	mock.ExpectDel("kitchen:orders:1").SetVal(1)

	_, err := store.Get(t.Context(), "orders:1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	require.NoError(t, store.Set(t.Context(), "orders:1", []byte(`{"id":1}`), 0))
	require.NoError(t, store.Delete(t.Context(), "orders:1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreWithoutNamespace(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := cache.NewRedisStore(client, cache.WithNamespace(""))

	mock.ExpectSet("orders:2", []byte("x"), 30*time.Second).SetVal("OK")
	mock.ExpectDel("orders:2").SetErr(errors.New("down"))

	require.NoError(t, store.Set(t.Context(), "orders:2", []byte("x"), 30*time.Second))
	assert.EqualError(t, store.Delete(t.Context(), "orders:2"), "down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONRoundTripThroughRedis(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := cache.NewRedisStore(client, cache.WithTTL(time.Minute))

	mock.ExpectSet("kitchen:orders:3", []byte(`{"id":3,"status":"CONFIRMED"}`), time.Minute).SetVal("OK")
	mock.ExpectGet("kitchen:orders:3").SetVal(`{"id":3,"status":"CONFIRMED"}`)

	require.NoError(t, cache.SetJSON(t.Context(), store, "orders:3", &detail{ID: 3, Status: "CONFIRMED"}, 0))
	got, err := cache.GetJSON[detail](t.Context(), store, "orders:3")
	require.NoError(t, err)
	assert.Equal(t, detail{ID: 3, Status: "CONFIRMED"}, *got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJSONDropsUndecodableEntries(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := cache.NewRedisStore(client)

	mock.ExpectGet("kitchen:orders:4").SetVal(`not json`)
	mock.ExpectDel("kitchen:orders:4").SetVal(1)

	_, err := cache.GetJSON[detail](t.Context(), store, "orders:4")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopStoreAlwaysMisses(t *testing.T) {
	store := cache.Noop()

	require.NoError(t, store.Set(t.Context(), "k", []byte("v"), time.Second))
	_, err := store.Get(t.Context(), "k")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.NoError(t, store.Delete(t.Context(), "k"))
}
