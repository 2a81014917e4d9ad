package registry

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"

	"github.com/dws-network/dws-cache/internal/cache"
	"github.com/dws-network/dws-cache/internal/events"
	"github.com/dws-network/dws-cache/pkg/observability"
)

const localCacheSize = 4096

// Config holds the registry tunables.
type Config struct {
	Pod               PodInfo
	HeartbeatInterval time.Duration
	ResyncInterval    time.Duration
}

// Registry tracks which workers are loaded on this pod and resolves worker
// definitions through three tiers: local memory, the cache substrate, then
// the persistent store.
type Registry struct {
	cfg   Config
	cache Substrate
	local *lru.Cache[string, *WorkerDefinition]
	store PersistentStore

	breaker *gobreaker.CircuitBreaker
	bus     *events.Bus
	logger  observability.Logger

	mu      sync.Mutex
	loaded  map[string]*WorkerDefinition // workers warm on this pod
	invokes int64

	stop chan struct{}
	done chan struct{}
}

// New creates a registry. The store may be nil when no durable backend is
// configured; tier 3 then always misses.
func New(cfg Config, substrate Substrate, store PersistentStore, bus *events.Bus, logger observability.Logger) *Registry {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.ResyncInterval <= 0 {
		cfg.ResyncInterval = 60 * time.Second
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	local, _ := lru.New[string, *WorkerDefinition](localCacheSize)
	return &Registry{
		cfg:   cfg,
		cache: substrate,
		local: local,
		store: store,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "worker-store",
		}),
		bus:    bus,
		logger: logger,
		loaded: make(map[string]*WorkerDefinition),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start announces the pod and begins the heartbeat and resync loops.
func (r *Registry) Start() {
	r.bus.Emit(events.Event{Type: events.EventNodeJoin, NodeID: r.cfg.Pod.PodID})
	r.heartbeat()
	go r.run()
}

// Close stops the background loops and announces departure.
func (r *Registry) Close() {
	select {
	case <-r.stop:
		return
	default:
	}
	close(r.stop)
	<-r.done
	r.bus.Emit(events.Event{Type: events.EventNodeLeave, NodeID: r.cfg.Pod.PodID})
}

func (r *Registry) run() {
	defer close(r.done)
	heartbeat := time.NewTicker(r.cfg.HeartbeatInterval)
	resync := time.NewTicker(r.cfg.ResyncInterval)
	defer heartbeat.Stop()
	defer resync.Stop()
	for {
		select {
		case <-heartbeat.C:
			r.heartbeat()
		case <-resync.C:
			r.resync()
		case <-r.stop:
			return
		}
	}
}

// RegisterWorker marks the worker as warm on this pod and uploads its
// definition to the cache tier.
func (r *Registry) RegisterWorker(def *WorkerDefinition) {
	r.mu.Lock()
	r.loaded[def.ID] = def
	r.mu.Unlock()
	r.local.Add(def.ID, def)

	if data, err := json.Marshal(def); err == nil {
		if err := r.cache.Set(Namespace, "meta:"+def.ID, string(data), metaTTL); err != nil {
			r.logger.Warn("failed to upload worker meta", map[string]interface{}{
				"worker": def.ID, "error": err.Error(),
			})
		}
	}
	r.refreshLocation(def)
}

// UnregisterWorker drops the worker from this pod's warm set.
func (r *Registry) UnregisterWorker(workerID string) {
	r.mu.Lock()
	delete(r.loaded, workerID)
	r.mu.Unlock()
}

// BeginInvocation and EndInvocation track this pod's in-flight load, which
// is advertised in location records for least-loaded routing.
func (r *Registry) BeginInvocation() {
	r.mu.Lock()
	r.invokes++
	r.mu.Unlock()
}

// EndInvocation decrements the in-flight counter.
func (r *Registry) EndInvocation() {
	r.mu.Lock()
	if r.invokes > 0 {
		r.invokes--
	}
	r.mu.Unlock()
}

// Lookup is the result of GetWorker.
type Lookup struct {
	Worker    *WorkerDefinition
	Source    Source
	ColdStart bool
}

// GetWorker resolves a worker definition: local memory first, then the
// cache substrate, then the persistent store with retry. A cache or
// persistent hit registers the worker locally and counts as a cold start.
func (r *Registry) GetWorker(ctx context.Context, workerID string) (Lookup, error) {
	if def, ok := r.local.Get(workerID); ok {
		return Lookup{Worker: def, Source: SourceMemory}, nil
	}

	if raw, ok, err := r.cache.Get(Namespace, "meta:"+workerID); err == nil && ok {
		var def WorkerDefinition
		if json.Unmarshal([]byte(raw), &def) == nil {
			r.local.Add(workerID, &def)
			return Lookup{Worker: &def, Source: SourceCache, ColdStart: true}, nil
		}
	}

	if r.store == nil {
		return Lookup{Source: SourceMiss}, nil
	}
	def, err := r.storeGet(ctx, workerID)
	if err != nil {
		if err == ErrWorkerNotFound {
			return Lookup{Source: SourceMiss}, nil
		}
		return Lookup{Source: SourceMiss}, cache.NewError(cache.CodeNodeUnavailable, "worker store: %v", err)
	}
	r.local.Add(workerID, def)
	if data, err := json.Marshal(def); err == nil {
		_ = r.cache.Set(Namespace, "meta:"+workerID, string(data), metaTTL)
	}
	return Lookup{Worker: def, Source: SourcePersistent, ColdStart: true}, nil
}

// storeGet calls the persistent store behind the circuit breaker, retrying
// up to 3 times with exponential backoff (100ms doubling, capped at 2s).
func (r *Registry) storeGet(ctx context.Context, workerID string) (*WorkerDefinition, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.Multiplier = 2
	policy.MaxInterval = 2 * time.Second
	policy.RandomizationFactor = 0

	var def *WorkerDefinition
	op := func() error {
		out, err := r.breaker.Execute(func() (interface{}, error) {
			return r.store.Get(ctx, workerID)
		})
		if err != nil {
			if err == ErrWorkerNotFound {
				return backoff.Permanent(err)
			}
			return err
		}
		def = out.(*WorkerDefinition)
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx)); err != nil {
		return nil, err
	}
	return def, nil
}

// FindWarmPods returns the live pods holding the worker warm, same-region
// pods first, then least loaded. An absent location yields an empty list.
func (r *Registry) FindWarmPods(workerID, preferredRegion string) []PodStanza {
	raw, ok, err := r.cache.Get(Namespace, "location:"+workerID)
	if err != nil || !ok {
		return []PodStanza{}
	}
	var loc WorkerLocation
	if json.Unmarshal([]byte(raw), &loc) != nil {
		return []PodStanza{}
	}
	now := time.Now().UnixMilli()
	pods := []PodStanza{}
	for _, p := range loc.WarmPods {
		if now-p.LastHeartbeat <= staleAfterMs {
			pods = append(pods, p)
		}
	}
	sort.SliceStable(pods, func(i, j int) bool {
		iSame := pods[i].Region == preferredRegion
		jSame := pods[j].Region == preferredRegion
		if preferredRegion != "" && iSame != jSame {
			return iSame
		}
		return pods[i].ActiveInvocations < pods[j].ActiveInvocations
	})
	return pods
}

// heartbeat publishes this pod's liveness, its warm worker list and a
// refreshed location record per owned worker.
func (r *Registry) heartbeat() {
	r.mu.Lock()
	workers := make([]*WorkerDefinition, 0, len(r.loaded))
	ids := make([]string, 0, len(r.loaded))
	for id, def := range r.loaded {
		workers = append(workers, def)
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)

	info := r.cfg.Pod
	info.WorkerCount = len(ids)
	info.Timestamp = time.Now().UnixMilli()
	if data, err := json.Marshal(info); err == nil {
		if err := r.cache.Set(Namespace, "heartbeat:"+info.PodID, string(data), heartbeatTTL); err != nil {
			r.logger.Warn("heartbeat write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if data, err := json.Marshal(ids); err == nil {
		_ = r.cache.Set(Namespace, "workers:"+info.PodID, string(data), workersTTL)
	}
	for _, def := range workers {
		r.refreshLocation(def)
	}
}

// refreshLocation merges this pod's stanza into the worker's location
// record, dropping stale stanzas along the way.
func (r *Registry) refreshLocation(def *WorkerDefinition) {
	now := time.Now().UnixMilli()
	loc := WorkerLocation{WorkerID: def.ID, CodeCID: def.CodeCID, Metadata: def.Metadata}
	if raw, ok, err := r.cache.Get(Namespace, "location:"+def.ID); err == nil && ok {
		_ = json.Unmarshal([]byte(raw), &loc)
	}

	r.mu.Lock()
	invokes := r.invokes
	r.mu.Unlock()

	merged := []PodStanza{{
		PodID:             r.cfg.Pod.PodID,
		Region:            r.cfg.Pod.Region,
		Endpoint:          r.cfg.Pod.Endpoint,
		LastHeartbeat:     now,
		ActiveInvocations: invokes,
	}}
	for _, p := range loc.WarmPods {
		if p.PodID == r.cfg.Pod.PodID {
			continue
		}
		if now-p.LastHeartbeat <= staleAfterMs {
			merged = append(merged, p)
		}
	}
	loc.WarmPods = merged
	loc.UpdatedAt = now

	if data, err := json.Marshal(loc); err == nil {
		_ = r.cache.Set(Namespace, "location:"+def.ID, string(data), locationTTL)
	}
}

// resync pulls the active worker set from the persistent store so
// newly-deployed workers become resolvable before their first invocation.
func (r *Registry) resync() {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.store.ListActive(ctx)
	})
	if err != nil {
		r.logger.Warn("worker resync failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defs := out.([]*WorkerDefinition)
	added := 0
	for _, def := range defs {
		if _, ok := r.local.Get(def.ID); ok {
			continue
		}
		r.local.Add(def.ID, def)
		if data, err := json.Marshal(def); err == nil {
			_ = r.cache.Set(Namespace, "meta:"+def.ID, string(data), metaTTL)
		}
		added++
	}
	if added > 0 {
		r.logger.Info("resynced workers from persistent store", map[string]interface{}{
			"added": added,
		})
	}
}
