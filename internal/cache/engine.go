// Package cache implements the in-memory data-structure engine: six value
// kinds with redis-family semantics, per-namespace byte accounting, an
// engine-wide LRU index, TTL expiry and memory-budget eviction.
package cache

import (
	"sync"
	"time"

	"github.com/dws-network/dws-cache/internal/events"
	"github.com/dws-network/dws-cache/pkg/observability"
)

// Config holds the tunables of one engine instance.
type Config struct {
	MaxMemoryMB       int
	DefaultTTLSeconds int64
	MaxTTLSeconds     int64
	ReaperInterval    time.Duration
	EvictionPolicy    string
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxMemoryMB:       256,
		DefaultTTLSeconds: 3600,
		MaxTTLSeconds:     30 * 24 * 3600,
		ReaperInterval:    10 * time.Second,
		EvictionPolicy:    "lru",
	}
}

// Engine owns its namespaces and their entries. All commands and the
// reaper/eviction loops serialize on one mutex; a read mutates LRU position
// and hit counters, so there is no reader/writer split.
type Engine struct {
	mu         sync.Mutex
	cfg        Config
	maxBytes   int64
	namespaces map[string]*namespaceData
	lru        *lruIndex
	usedTotal  int64

	hits        int64
	misses      int64
	evictions   int64
	expiredKeys int64

	bus    *events.Bus
	logger observability.Logger

	stopReaper chan struct{}
	reaperDone chan struct{}
}

// NewEngine creates an engine and starts its TTL reaper.
func NewEngine(cfg Config, bus *events.Bus, logger observability.Logger) *Engine {
	if cfg.MaxMemoryMB <= 0 {
		cfg.MaxMemoryMB = 256
	}
	if cfg.MaxTTLSeconds <= 0 {
		cfg.MaxTTLSeconds = 30 * 24 * 3600
	}
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = 10 * time.Second
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	e := &Engine{
		cfg:        cfg,
		maxBytes:   int64(cfg.MaxMemoryMB) << 20,
		namespaces: make(map[string]*namespaceData),
		lru:        newLRUIndex(),
		bus:        bus,
		logger:     logger,
		stopReaper: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	go e.reaperLoop()
	return e
}

// Close stops the reaper. The engine stays usable for direct calls.
func (e *Engine) Close() {
	select {
	case <-e.stopReaper:
	default:
		close(e.stopReaper)
		<-e.reaperDone
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

func nowMs() int64 { return time.Now().UnixMilli() }

// ns returns the namespace, creating it lazily.
func (e *Engine) ns(name string) *namespaceData {
	nsd, ok := e.namespaces[name]
	if !ok {
		nsd = newNamespaceData()
		e.namespaces[name] = nsd
	}
	return nsd
}

// liveEntry returns the entry if present and not expired, applying lazy
// expiry otherwise. Hit/miss accounting is the caller's business.
func (e *Engine) liveEntry(nsd *namespaceData, namespace, key string, now int64) (*Entry, bool) {
	ent, ok := nsd.entries[key]
	if !ok {
		return nil, false
	}
	if ent.expired(now) {
		e.dropEntry(nsd, namespace, key, ent)
		e.expiredKeys++
		e.bus.Emit(events.Event{Type: events.EventKeyExpire, Namespace: namespace, Key: key})
		return nil, false
	}
	return ent, true
}

// dropEntry removes the entry and its LRU node and reverses its accounting.
func (e *Engine) dropEntry(nsd *namespaceData, namespace, key string, ent *Entry) {
	delete(nsd.entries, key)
	nsd.usedBytes -= int64(len(ent.Data))
	e.usedTotal -= int64(len(ent.Data))
	e.lru.remove(lruKey{namespace: namespace, key: key})
}

// touchRead marks the entry as accessed and moves it to the LRU tail.
func (e *Engine) touchRead(namespace, key string, ent *Entry, now int64) {
	ent.LastAccessedAt = now
	ent.AccessCount++
	e.lru.touch(lruKey{namespace: namespace, key: key})
}

// evictOne detaches the LRU head and deletes its entry. Returns false when
// the list is empty or only the protected key remains at the head.
func (e *Engine) evictOne(protect lruKey) bool {
	head, ok := e.lru.oldest()
	if !ok || head == protect {
		return false
	}
	nsd, ok := e.namespaces[head.namespace]
	if !ok {
		// Drift: node without a namespace. Remove and continue.
		e.lru.remove(head)
		return true
	}
	ent, ok := nsd.entries[head.key]
	if !ok {
		e.lru.remove(head)
		return true
	}
	e.dropEntry(nsd, head.namespace, head.key, ent)
	e.evictions++
	e.bus.Emit(events.Event{Type: events.EventKeyEvict, Namespace: head.namespace, Key: head.key})
	return true
}

// commit installs newData for (namespace, key) under kind, applies the size
// delta and enforces the memory budget. On MemoryLimit the write is rolled
// back: the previous entry (if any) is restored untouched.
//
// expiresAt semantics: pass keepExpiry to retain the entry's current expiry
// (or apply the default TTL when the entry is new).
func (e *Engine) commit(nsd *namespaceData, namespace, key string, existing *Entry, kind Kind, newData []byte, expiresAt int64, now int64) error {
	k := lruKey{namespace: namespace, key: key}

	var prev *Entry
	if existing != nil {
		prevCopy := *existing
		prev = &prevCopy
	}

	oldSize := int64(0)
	ent := existing
	if ent != nil {
		oldSize = int64(len(ent.Data))
	} else {
		ent = &Entry{Kind: kind, CreatedAt: now}
		nsd.entries[key] = ent
	}
	ent.Data = newData
	ent.ExpiresAt = expiresAt
	ent.LastAccessedAt = now
	ent.AccessCount++

	delta := int64(len(newData)) - oldSize
	nsd.usedBytes += delta
	e.usedTotal += delta
	e.lru.touch(k)

	for e.usedTotal > e.maxBytes {
		if !e.evictOne(k) {
			// Roll back this write's own accounting.
			if prev != nil {
				*existing = *prev
				nsd.usedBytes -= delta
				e.usedTotal -= delta
			} else {
				e.dropEntry(nsd, namespace, key, ent)
			}
			return ErrMemoryLimit()
		}
	}

	e.bus.Emit(events.Event{Type: events.EventKeySet, Namespace: namespace, Key: key})
	return nil
}

// keepExpiry is a sentinel for commit: retain the current expiry, or apply
// the default TTL to a new entry.
const keepExpiry int64 = -1

// resolveExpiry turns commit's sentinel into a concrete ExpiresAt value.
func (e *Engine) resolveExpiry(existing *Entry, expiresAt, now int64) int64 {
	if expiresAt != keepExpiry {
		return expiresAt
	}
	if existing != nil {
		return existing.ExpiresAt
	}
	if e.cfg.DefaultTTLSeconds > 0 {
		return now + e.cfg.DefaultTTLSeconds*1000
	}
	return 0
}

// validateTTL converts a TTL in seconds to an absolute expiry, enforcing the
// configured maximum.
func (e *Engine) validateTTL(seconds, now int64) (int64, error) {
	if seconds <= 0 {
		return 0, nil
	}
	if seconds > e.cfg.MaxTTLSeconds {
		return 0, ErrTTLExceeded(seconds, e.cfg.MaxTTLSeconds)
	}
	return now + seconds*1000, nil
}

// EngineStats is a point-in-time snapshot across all namespaces.
type EngineStats struct {
	Namespaces  int   `json:"namespaces"`
	Keys        int64 `json:"keys"`
	MemoryBytes int64 `json:"memoryBytes"`
	MaxBytes    int64 `json:"maxBytes"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	ExpiredKeys int64 `json:"expiredKeys"`
}

// HitRate returns hits / (hits + misses), or 0 with no traffic.
func (s EngineStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	var keys int64
	for _, nsd := range e.namespaces {
		keys += int64(len(nsd.entries))
	}
	return EngineStats{
		Namespaces:  len(e.namespaces),
		Keys:        keys,
		MemoryBytes: e.usedTotal,
		MaxBytes:    e.maxBytes,
		Hits:        e.hits,
		Misses:      e.misses,
		Evictions:   e.evictions,
		ExpiredKeys: e.expiredKeys,
	}
}

// NamespaceStats describes one namespace.
type NamespaceStats struct {
	Namespace string `json:"namespace"`
	Keys      int    `json:"keys"`
	UsedBytes int64  `json:"usedBytes"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
}

// StatsFor returns the counters of a single namespace. A missing namespace
// yields zeroes.
func (e *Engine) StatsFor(namespace string) NamespaceStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := NamespaceStats{Namespace: namespace}
	if nsd, ok := e.namespaces[namespace]; ok {
		st.Keys = len(nsd.entries)
		st.UsedBytes = nsd.usedBytes
		st.Hits = nsd.hits
		st.Misses = nsd.misses
	}
	return st
}
