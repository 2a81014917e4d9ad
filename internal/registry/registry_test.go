package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dws-network/dws-cache/internal/cache"
)

type fakeStore struct {
	defs  map[string]*WorkerDefinition
	err   error
	calls int
}

func (s *fakeStore) Get(ctx context.Context, id string) (*WorkerDefinition, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	def, ok := s.defs[id]
	if !ok {
		return nil, ErrWorkerNotFound
	}
	return def, nil
}

func (s *fakeStore) GetByCID(ctx context.Context, cid string) (*WorkerDefinition, error) {
	for _, def := range s.defs {
		if def.CodeCID == cid {
			return def, nil
		}
	}
	return nil, ErrWorkerNotFound
}

func (s *fakeStore) ListActive(ctx context.Context) ([]*WorkerDefinition, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := []*WorkerDefinition{}
	for _, def := range s.defs {
		if def.Active {
			out = append(out, def)
		}
	}
	return out, nil
}

func newTestRegistry(t *testing.T, store PersistentStore) (*Registry, Substrate) {
	t.Helper()
	engine := cache.NewEngine(cache.DefaultConfig(), nil, nil)
	t.Cleanup(engine.Close)
	sub := NewEngineSubstrate(engine)
	r := New(Config{
		Pod: PodInfo{PodID: "pod-1", Region: "eu-west", Endpoint: "http://pod-1:8080"},
	}, sub, store, nil, nil)
	return r, sub
}

func TestGetWorkerFromLocalMemory(t *testing.T) {
	r, _ := newTestRegistry(t, nil)
	def := &WorkerDefinition{ID: "w1", CodeCID: "cid-1", Active: true}
	r.RegisterWorker(def)

	lookup, err := r.GetWorker(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, lookup.Source)
	assert.False(t, lookup.ColdStart)
	assert.Equal(t, def, lookup.Worker)
}

func TestGetWorkerFromCacheTier(t *testing.T) {
	r, sub := newTestRegistry(t, nil)

	def := &WorkerDefinition{ID: "w2", CodeCID: "cid-2", Active: true}
	data, err := json.Marshal(def)
	require.NoError(t, err)
	require.NoError(t, sub.Set(Namespace, "meta:w2", string(data), metaTTL))

	lookup, err := r.GetWorker(context.Background(), "w2")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, lookup.Source)
	assert.True(t, lookup.ColdStart)
	assert.Equal(t, "cid-2", lookup.Worker.CodeCID)

	// The cache hit registers the worker locally.
	lookup, err = r.GetWorker(context.Background(), "w2")
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, lookup.Source)
}

func TestGetWorkerFromPersistentStore(t *testing.T) {
	store := &fakeStore{defs: map[string]*WorkerDefinition{
		"w3": {ID: "w3", CodeCID: "cid-3", Active: true},
	}}
	r, sub := newTestRegistry(t, store)

	lookup, err := r.GetWorker(context.Background(), "w3")
	require.NoError(t, err)
	assert.Equal(t, SourcePersistent, lookup.Source)
	assert.True(t, lookup.ColdStart)

	// The persistent hit populates the cache tier.
	raw, found, err := sub.Get(Namespace, "meta:w3")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, raw, "cid-3")
}

func TestGetWorkerMiss(t *testing.T) {
	store := &fakeStore{defs: map[string]*WorkerDefinition{}}
	r, _ := newTestRegistry(t, store)

	lookup, err := r.GetWorker(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, SourceMiss, lookup.Source)
	assert.Nil(t, lookup.Worker)
	assert.Equal(t, 1, store.calls, "not-found is permanent, no retries")
}

func TestGetWorkerRetriesOnStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	r, _ := newTestRegistry(t, store)

	_, err := r.GetWorker(context.Background(), "w")
	require.Error(t, err)
	assert.True(t, cache.IsCode(err, cache.CodeNodeUnavailable))
	assert.Equal(t, 4, store.calls, "initial attempt plus three retries")
}

func TestFindWarmPodsFiltersAndSorts(t *testing.T) {
	r, sub := newTestRegistry(t, nil)
	now := time.Now().UnixMilli()

	loc := WorkerLocation{
		WorkerID: "w",
		CodeCID:  "cid",
		WarmPods: []PodStanza{
			{PodID: "stale", Region: "eu-west", LastHeartbeat: now - 2*staleAfterMs},
			{PodID: "busy-local", Region: "eu-west", LastHeartbeat: now, ActiveInvocations: 9},
			{PodID: "idle-remote", Region: "us-east", LastHeartbeat: now, ActiveInvocations: 0},
			{PodID: "idle-local", Region: "eu-west", LastHeartbeat: now, ActiveInvocations: 1},
		},
	}
	data, err := json.Marshal(loc)
	require.NoError(t, err)
	require.NoError(t, sub.Set(Namespace, "location:w", string(data), locationTTL))

	pods := r.FindWarmPods("w", "eu-west")
	require.Len(t, pods, 3, "stale stanza is dropped")
	assert.Equal(t, "idle-local", pods[0].PodID)
	assert.Equal(t, "busy-local", pods[1].PodID)
	assert.Equal(t, "idle-remote", pods[2].PodID)

	// Without a preferred region only load matters.
	pods = r.FindWarmPods("w", "")
	assert.Equal(t, "idle-remote", pods[0].PodID)

	assert.Empty(t, r.FindWarmPods("unknown", ""))
}

func TestHeartbeatPublishesPodState(t *testing.T) {
	r, sub := newTestRegistry(t, nil)
	r.RegisterWorker(&WorkerDefinition{ID: "w1", CodeCID: "cid-1", Active: true})

	r.Start()
	defer r.Close()

	raw, found, err := sub.Get(Namespace, "heartbeat:pod-1")
	require.NoError(t, err)
	require.True(t, found)
	var info PodInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &info))
	assert.Equal(t, "pod-1", info.PodID)
	assert.Equal(t, 1, info.WorkerCount)

	raw, found, err = sub.Get(Namespace, "workers:pod-1")
	require.NoError(t, err)
	require.True(t, found)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(raw), &ids))
	assert.Equal(t, []string{"w1"}, ids)

	raw, found, err = sub.Get(Namespace, "location:w1")
	require.NoError(t, err)
	require.True(t, found)
	var loc WorkerLocation
	require.NoError(t, json.Unmarshal([]byte(raw), &loc))
	require.Len(t, loc.WarmPods, 1)
	assert.Equal(t, "pod-1", loc.WarmPods[0].PodID)
	assert.Equal(t, "eu-west", loc.WarmPods[0].Region)
}

func TestInvocationCountersFeedLocation(t *testing.T) {
	r, sub := newTestRegistry(t, nil)
	def := &WorkerDefinition{ID: "w1", CodeCID: "cid-1", Active: true}

	r.BeginInvocation()
	r.BeginInvocation()
	r.EndInvocation()
	r.RegisterWorker(def)

	raw, found, err := sub.Get(Namespace, "location:w1")
	require.NoError(t, err)
	require.True(t, found)
	var loc WorkerLocation
	require.NoError(t, json.Unmarshal([]byte(raw), &loc))
	require.Len(t, loc.WarmPods, 1)
	assert.Equal(t, int64(1), loc.WarmPods[0].ActiveInvocations)
}

func TestUnregisterWorkerDropsFromWarmSet(t *testing.T) {
	r, _ := newTestRegistry(t, nil)
	r.RegisterWorker(&WorkerDefinition{ID: "w1", CodeCID: "cid-1", Active: true})
	r.UnregisterWorker("w1")

	r.mu.Lock()
	_, loaded := r.loaded["w1"]
	r.mu.Unlock()
	assert.False(t, loaded)
}
