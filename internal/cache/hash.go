package cache

import "strconv"

// readTyped resolves a live entry of the expected kind for a read, counting
// hit/miss and touching the LRU. Caller must hold e.mu.
func (e *Engine) readTyped(nsd *namespaceData, namespace, key string, kind Kind, now int64) (*Entry, bool, error) {
	ent, ok := e.liveEntry(nsd, namespace, key, now)
	if !ok {
		nsd.misses++
		e.misses++
		return nil, false, nil
	}
	if ent.Kind != kind {
		return nil, false, ErrInvalidOperation("key %q holds a %s, not a %s", key, ent.Kind, kind)
	}
	nsd.hits++
	e.hits++
	e.touchRead(namespace, key, ent, now)
	return ent, true, nil
}

// writeTyped resolves the entry for a structured mutation: either absent or
// of the expected kind. Caller must hold e.mu.
func (e *Engine) writeTyped(nsd *namespaceData, namespace, key string, kind Kind, now int64) (*Entry, bool, error) {
	ent, ok := e.liveEntry(nsd, namespace, key, now)
	if ok && ent.Kind != kind {
		return nil, false, ErrInvalidOperation("key %q holds a %s, not a %s", key, ent.Kind, kind)
	}
	return ent, ok, nil
}

// HSet sets one field. Returns 1 when the field is new, 0 when it replaced
// an existing value.
func (e *Engine) HSet(namespace, key, field, value string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindHash, now)
	if err != nil {
		return 0, err
	}
	h := map[string]string{}
	if exists {
		if h, err = decodeHash(ent.Data); err != nil {
			return 0, err
		}
	}
	added := 0
	if _, ok := h[field]; !ok {
		added = 1
	}
	h[field] = value
	if err := e.commit(nsd, namespace, key, ent, KindHash, encodeHash(h), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return added, nil
}

// HMSet sets several fields at once.
func (e *Engine) HMSet(namespace, key string, fields map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindHash, now)
	if err != nil {
		return err
	}
	h := map[string]string{}
	if exists {
		if h, err = decodeHash(ent.Data); err != nil {
			return err
		}
	}
	for f, v := range fields {
		h[f] = v
	}
	return e.commit(nsd, namespace, key, ent, KindHash, encodeHash(h), e.resolveExpiry(ent, keepExpiry, now), now)
}

// HGet returns one field value.
func (e *Engine) HGet(namespace, key, field string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return "", false, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindHash, nowMs())
	if err != nil || !ok {
		return "", false, err
	}
	h, err := decodeHash(ent.Data)
	if err != nil {
		return "", false, err
	}
	v, ok := h[field]
	return v, ok, nil
}

// HGetAll returns the full field-to-value view.
func (e *Engine) HGetAll(namespace, key string) (map[string]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return map[string]string{}, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindHash, nowMs())
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	return decodeHash(ent.Data)
}

// HDel removes fields and returns how many existed.
func (e *Engine) HDel(namespace, key string, fields ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0, nil
	}
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindHash, now)
	if err != nil || !exists {
		return 0, err
	}
	h, err := decodeHash(ent.Data)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range fields {
		if _, ok := h[f]; ok {
			delete(h, f)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := e.commit(nsd, namespace, key, ent, KindHash, encodeHash(h), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return removed, nil
}

// HLen returns the number of fields.
func (e *Engine) HLen(namespace, key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindHash, nowMs())
	if err != nil || !ok {
		return 0, err
	}
	h, err := decodeHash(ent.Data)
	if err != nil {
		return 0, err
	}
	return len(h), nil
}

// HIncrBy adjusts an integer-parsable field by delta.
func (e *Engine) HIncrBy(namespace, key, field string, delta int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindHash, now)
	if err != nil {
		return 0, err
	}
	h := map[string]string{}
	if exists {
		if h, err = decodeHash(ent.Data); err != nil {
			return 0, err
		}
	}
	var current int64
	if raw, ok := h[field]; ok {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, ErrInvalidOperation("hash field %q is not an integer", field)
		}
		current = parsed
	}
	next := current + delta
	h[field] = strconv.FormatInt(next, 10)
	if err := e.commit(nsd, namespace, key, ent, KindHash, encodeHash(h), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return next, nil
}
