package cache

// LPush prepends values and returns the new length. Values are pushed one at
// a time, so LPush(k, a, b, c) leaves c at the head.
func (e *Engine) LPush(namespace, key string, values ...string) (int, error) {
	return e.push(namespace, key, values, true)
}

// RPush appends values and returns the new length.
func (e *Engine) RPush(namespace, key string, values ...string) (int, error) {
	return e.push(namespace, key, values, false)
}

func (e *Engine) push(namespace, key string, values []string, left bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindList, now)
	if err != nil {
		return 0, err
	}
	var l []string
	if exists {
		if l, err = decodeList(ent.Data); err != nil {
			return 0, err
		}
	}
	for _, v := range values {
		if left {
			l = append([]string{v}, l...)
		} else {
			l = append(l, v)
		}
	}
	if err := e.commit(nsd, namespace, key, ent, KindList, encodeList(l), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return len(l), nil
}

// LPop removes and returns the head element.
func (e *Engine) LPop(namespace, key string) (string, bool, error) {
	return e.pop(namespace, key, true)
}

// RPop removes and returns the tail element.
func (e *Engine) RPop(namespace, key string) (string, bool, error) {
	return e.pop(namespace, key, false)
}

func (e *Engine) pop(namespace, key string, left bool) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return "", false, nil
	}
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindList, now)
	if err != nil || !exists {
		return "", false, err
	}
	l, err := decodeList(ent.Data)
	if err != nil {
		return "", false, err
	}
	if len(l) == 0 {
		return "", false, nil
	}
	var v string
	if left {
		v, l = l[0], l[1:]
	} else {
		v, l = l[len(l)-1], l[:len(l)-1]
	}
	if err := e.commit(nsd, namespace, key, ent, KindList, encodeList(l), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return "", false, err
	}
	return v, true, nil
}

// normalizeRange maps redis-style inclusive indices (negatives from the end)
// onto [from, to) slice bounds. An inverted or out-of-range window yields an
// empty slice.
func normalizeRange(start, stop, length int) (int, int) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if length == 0 || start > stop || start >= length {
		return 0, 0
	}
	return start, stop + 1
}

// LRange returns the inclusive slice [start, stop].
func (e *Engine) LRange(namespace, key string, start, stop int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return []string{}, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindList, nowMs())
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	l, err := decodeList(ent.Data)
	if err != nil {
		return nil, err
	}
	from, to := normalizeRange(start, stop, len(l))
	out := make([]string, to-from)
	copy(out, l[from:to])
	return out, nil
}

// LLen returns the list length.
func (e *Engine) LLen(namespace, key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindList, nowMs())
	if err != nil || !ok {
		return 0, err
	}
	l, err := decodeList(ent.Data)
	if err != nil {
		return 0, err
	}
	return len(l), nil
}

// LTrim retains the inclusive slice [start, stop]; an out-of-range window
// empties the list.
func (e *Engine) LTrim(namespace, key string, start, stop int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return nil
	}
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindList, now)
	if err != nil || !exists {
		return err
	}
	l, err := decodeList(ent.Data)
	if err != nil {
		return err
	}
	from, to := normalizeRange(start, stop, len(l))
	return e.commit(nsd, namespace, key, ent, KindList, encodeList(l[from:to]), e.resolveExpiry(ent, keepExpiry, now), now)
}
