package cache

import (
	"sort"
	"strconv"

	"github.com/dws-network/dws-cache/internal/events"
	"github.com/dws-network/dws-cache/internal/glob"
)

// Keys returns the live keys matching the glob pattern, sorted.
func (e *Engine) Keys(namespace, pattern string) ([]string, error) {
	re, err := glob.Compile(pattern)
	if err != nil {
		return nil, ErrInvalidOperation("invalid pattern %q", pattern)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return []string{}, nil
	}
	now := nowMs()
	out := []string{}
	for key, ent := range nsd.entries {
		if ent.expired(now) {
			continue
		}
		if re.MatchString(key) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Scan walks the sorted key listing from the decimal cursor. The returned
// cursor is "0" once the listing is exhausted.
func (e *Engine) Scan(namespace, cursor, pattern string, count int) ([]string, string, error) {
	if count <= 0 {
		count = 10
	}
	offset, err := strconv.Atoi(cursor)
	if err != nil || offset < 0 {
		return nil, "", ErrInvalidOperation("invalid cursor %q", cursor)
	}
	if pattern == "" {
		pattern = "*"
	}
	all, err := e.Keys(namespace, pattern)
	if err != nil {
		return nil, "", err
	}
	if offset >= len(all) {
		return []string{}, "0", nil
	}
	end := offset + count
	next := "0"
	if end < len(all) {
		next = strconv.Itoa(end)
	} else {
		end = len(all)
	}
	return all[offset:end], next, nil
}

// Type returns the kind tag of the key, or "none".
func (e *Engine) Type(namespace, key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return "none"
	}
	ent, ok := e.liveEntry(nsd, namespace, key, nowMs())
	if !ok {
		return "none"
	}
	return string(ent.Kind)
}

// Rename moves the value bytes under a new key, TTL and size carried over,
// across kinds as-is. The renamed key enters the LRU tail. Returns false
// when the source is absent.
func (e *Engine) Rename(namespace, oldKey, newKey string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return false, nil
	}
	ent, ok := e.liveEntry(nsd, namespace, oldKey, now)
	if !ok {
		return false, nil
	}
	if oldKey == newKey {
		return true, nil
	}
	if dst, ok := nsd.entries[newKey]; ok {
		e.dropEntry(nsd, namespace, newKey, dst)
	}
	moved := *ent
	e.dropEntry(nsd, namespace, oldKey, ent)
	nsd.entries[newKey] = &moved
	nsd.usedBytes += int64(len(moved.Data))
	e.usedTotal += int64(len(moved.Data))
	e.lru.touch(lruKey{namespace: namespace, key: newKey})
	return true, nil
}

// FlushDB drops the namespace. Absent namespaces are a silent no-op.
func (e *Engine) FlushDB(namespace string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushLocked(namespace)
}

// FlushAll drops every namespace.
func (e *Engine) FlushAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name := range e.namespaces {
		e.flushLocked(name)
	}
}

func (e *Engine) flushLocked(namespace string) {
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return
	}
	for key := range nsd.entries {
		e.lru.remove(lruKey{namespace: namespace, key: key})
		e.bus.Emit(events.Event{Type: events.EventKeyDelete, Namespace: namespace, Key: key})
	}
	e.usedTotal -= nsd.usedBytes
	delete(e.namespaces, namespace)
}
