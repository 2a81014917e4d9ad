package cache

import (
	"strconv"

	"github.com/dws-network/dws-cache/internal/events"
)

// SetOptions carries the optional flags of a Set.
type SetOptions struct {
	// NX: only set if the key does not exist. XX: only set if it does.
	NX bool
	XX bool
	// TTLSeconds overrides the default TTL. nil applies the configured
	// default; a pointer to 0 stores without expiry.
	TTLSeconds *int64
}

// Set stores a string value. The boolean is false when an NX/XX condition
// was not met; the value is left unchanged in that case.
func (e *Engine) Set(namespace, key, value string, opts SetOptions) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists := e.liveEntry(nsd, namespace, key, now)

	if opts.NX && exists {
		return false, nil
	}
	if opts.XX && !exists {
		return false, nil
	}
	if exists && ent.Kind != KindString {
		return false, ErrInvalidOperation("key %q holds a %s, not a string", key, ent.Kind)
	}

	expiresAt := keepExpiry
	if opts.TTLSeconds != nil {
		abs, err := e.validateTTL(*opts.TTLSeconds, now)
		if err != nil {
			return false, err
		}
		expiresAt = abs
	}
	if err := e.commit(nsd, namespace, key, ent, KindString, []byte(value), e.resolveExpiry(ent, expiresAt, now), now); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the string value, or ok=false on a miss. Expired entries are
// lazily removed and reported as misses.
func (e *Engine) Get(namespace, key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return "", false, nil
	}
	ent, ok := e.liveEntry(nsd, namespace, key, now)
	if !ok {
		nsd.misses++
		e.misses++
		return "", false, nil
	}
	if ent.Kind != KindString {
		return "", false, ErrInvalidOperation("key %q holds a %s, not a string", key, ent.Kind)
	}
	nsd.hits++
	e.hits++
	e.touchRead(namespace, key, ent, now)
	e.bus.Emit(events.Event{Type: events.EventKeyGet, Namespace: namespace, Key: key})
	return string(ent.Data), true, nil
}

// Del deletes the given keys and returns how many were actually removed.
func (e *Engine) Del(namespace string, keys ...string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0
	}
	deleted := 0
	for _, key := range keys {
		if ent, ok := nsd.entries[key]; ok {
			e.dropEntry(nsd, namespace, key, ent)
			deleted++
			e.bus.Emit(events.Event{Type: events.EventKeyDelete, Namespace: namespace, Key: key})
		}
	}
	return deleted
}

// Exists returns how many of the given keys are live.
func (e *Engine) Exists(namespace string, keys ...string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0
	}
	now := nowMs()
	n := 0
	for _, key := range keys {
		if _, ok := e.liveEntry(nsd, namespace, key, now); ok {
			n++
		}
	}
	return n
}

// IncrBy adjusts the integer value of key by delta, creating it at zero when
// absent. A non-integer value fails with InvalidOperation.
func (e *Engine) IncrBy(namespace, key string, delta int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists := e.liveEntry(nsd, namespace, key, now)

	var current int64
	if exists {
		if ent.Kind != KindString {
			return 0, ErrInvalidOperation("key %q holds a %s, not a string", key, ent.Kind)
		}
		parsed, err := strconv.ParseInt(string(ent.Data), 10, 64)
		if err != nil {
			return 0, ErrInvalidOperation("value at %q is not an integer", key)
		}
		current = parsed
	}
	next := current + delta
	if err := e.commit(nsd, namespace, key, ent, KindString, []byte(strconv.FormatInt(next, 10)), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return next, nil
}

// DecrBy is IncrBy with a negated delta.
func (e *Engine) DecrBy(namespace, key string, delta int64) (int64, error) {
	return e.IncrBy(namespace, key, -delta)
}

// Append concatenates value onto the existing string, keeping its TTL, and
// returns the new length.
func (e *Engine) Append(namespace, key, value string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists := e.liveEntry(nsd, namespace, key, now)
	if exists && ent.Kind != KindString {
		return 0, ErrInvalidOperation("key %q holds a %s, not a string", key, ent.Kind)
	}
	var data []byte
	if exists {
		data = append(append([]byte{}, ent.Data...), value...)
	} else {
		data = []byte(value)
	}
	if err := e.commit(nsd, namespace, key, ent, KindString, data, e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return len(data), nil
}

// MGet returns the values for keys in order; nil marks a miss.
func (e *Engine) MGet(namespace string, keys ...string) []*string {
	out := make([]*string, len(keys))
	for i, key := range keys {
		if v, ok, err := e.Get(namespace, key); ok && err == nil {
			val := v
			out[i] = &val
		}
	}
	return out
}

// MSet stores each pair in turn. Per-key atomicity only; a memory failure
// leaves earlier pairs written.
func (e *Engine) MSet(namespace string, pairs map[string]string) error {
	for key, value := range pairs {
		if _, err := e.Set(namespace, key, value, SetOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// Expire sets a TTL in seconds on an existing key. Returns false when the
// key is absent.
func (e *Engine) Expire(namespace, key string, seconds int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	abs, err := e.validateTTL(seconds, now)
	if err != nil {
		return false, err
	}
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return false, nil
	}
	ent, ok := e.liveEntry(nsd, namespace, key, now)
	if !ok {
		return false, nil
	}
	ent.ExpiresAt = abs
	return true, nil
}

// ExpireAt sets an absolute expiry (unix seconds) on an existing key.
func (e *Engine) ExpireAt(namespace, key string, unixSeconds int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	abs := unixSeconds * 1000
	if abs > now && (abs-now)/1000 > e.cfg.MaxTTLSeconds {
		return false, ErrTTLExceeded((abs-now)/1000, e.cfg.MaxTTLSeconds)
	}
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return false, nil
	}
	ent, ok := e.liveEntry(nsd, namespace, key, now)
	if !ok {
		return false, nil
	}
	ent.ExpiresAt = abs
	return true, nil
}

// Persist removes the expiry from a key. Returns false when the key is
// absent or had no expiry.
func (e *Engine) Persist(namespace, key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return false
	}
	ent, ok := e.liveEntry(nsd, namespace, key, nowMs())
	if !ok || ent.ExpiresAt == 0 {
		return false
	}
	ent.ExpiresAt = 0
	return true
}

// TTL returns the remaining lifetime in seconds: -2 when the key is absent,
// -1 when it has no expiry.
func (e *Engine) TTL(namespace, key string) int64 {
	ms := e.PTTL(namespace, key)
	if ms < 0 {
		return ms
	}
	return ms / 1000
}

// PTTL is TTL in milliseconds.
func (e *Engine) PTTL(namespace, key string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return -2
	}
	now := nowMs()
	ent, ok := e.liveEntry(nsd, namespace, key, now)
	if !ok {
		return -2
	}
	if ent.ExpiresAt == 0 {
		return -1
	}
	return ent.ExpiresAt - now
}
