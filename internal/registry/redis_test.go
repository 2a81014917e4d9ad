package registry

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreFromClient(client)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	def := &WorkerDefinition{
		ID:       "w1",
		Name:     "resizer",
		CodeCID:  "bafy-1",
		Metadata: map[string]string{"runtime": "wasm"},
		Active:   true,
	}
	require.NoError(t, store.Put(ctx, def))

	got, err := store.Get(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, def, got)

	got, err = store.GetByCID(ctx, "bafy-1")
	require.NoError(t, err)
	assert.Equal(t, "w1", got.ID)
}

func TestRedisStoreNotFound(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrWorkerNotFound)

	_, err = store.GetByCID(ctx, "missing-cid")
	assert.ErrorIs(t, err, ErrWorkerNotFound)
}

func TestRedisStoreListActive(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &WorkerDefinition{ID: "w1", CodeCID: "c1", Active: true}))
	require.NoError(t, store.Put(ctx, &WorkerDefinition{ID: "w2", CodeCID: "c2", Active: false}))

	defs, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "w1", defs[0].ID)
}

func TestRedisStoreDeactivationLeavesActiveSet(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	def := &WorkerDefinition{ID: "w1", CodeCID: "c1", Active: true}
	require.NoError(t, store.Put(ctx, def))
	def.Active = false
	require.NoError(t, store.Put(ctx, def))

	defs, err := store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, defs)
}
