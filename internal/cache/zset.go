package cache

import "sort"

// ZAdd inserts or updates (member, score) pairs. The return counts only new
// members; updating a score keeps cardinality unchanged. Equal scores keep
// insertion order.
func (e *Engine) ZAdd(namespace, key string, members ...ZMember) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindZSet, now)
	if err != nil {
		return 0, err
	}
	var z []ZMember
	if exists {
		if z, err = decodeZSet(ent.Data); err != nil {
			return 0, err
		}
	}
	added := 0
	for _, m := range members {
		found := false
		for i := range z {
			if z[i].Member == m.Member {
				z[i].Score = m.Score
				found = true
				break
			}
		}
		if !found {
			z = append(z, m)
			added++
		}
	}
	sort.SliceStable(z, func(i, j int) bool { return z[i].Score < z[j].Score })
	if err := e.commit(nsd, namespace, key, ent, KindZSet, encodeZSet(z), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return added, nil
}

// ZRange returns members by positional index, inclusive, negatives counting
// from the end.
func (e *Engine) ZRange(namespace, key string, start, stop int, withScores bool) ([]ZMember, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return []ZMember{}, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindZSet, nowMs())
	if err != nil {
		return nil, err
	}
	if !ok {
		return []ZMember{}, nil
	}
	z, err := decodeZSet(ent.Data)
	if err != nil {
		return nil, err
	}
	from, to := normalizeRange(start, stop, len(z))
	out := make([]ZMember, to-from)
	copy(out, z[from:to])
	if !withScores {
		for i := range out {
			out[i].Score = 0
		}
	}
	return out, nil
}

// ZRangeByScore returns members with min <= score <= max, both ends
// inclusive.
func (e *Engine) ZRangeByScore(namespace, key string, min, max float64) ([]ZMember, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return []ZMember{}, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindZSet, nowMs())
	if err != nil {
		return nil, err
	}
	if !ok {
		return []ZMember{}, nil
	}
	z, err := decodeZSet(ent.Data)
	if err != nil {
		return nil, err
	}
	out := []ZMember{}
	for _, m := range z {
		if m.Score >= min && m.Score <= max {
			out = append(out, m)
		}
	}
	return out, nil
}

// ZRem removes members by identity and returns how many were present.
func (e *Engine) ZRem(namespace, key string, members ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0, nil
	}
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindZSet, now)
	if err != nil || !exists {
		return 0, err
	}
	z, err := decodeZSet(ent.Data)
	if err != nil {
		return 0, err
	}
	drop := make(map[string]struct{}, len(members))
	for _, m := range members {
		drop[m] = struct{}{}
	}
	kept := z[:0]
	removed := 0
	for _, m := range z {
		if _, ok := drop[m.Member]; ok {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := e.commit(nsd, namespace, key, ent, KindZSet, encodeZSet(kept), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return removed, nil
}

// ZScore returns the score of a member.
func (e *Engine) ZScore(namespace, key, member string) (float64, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0, false, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindZSet, nowMs())
	if err != nil || !ok {
		return 0, false, err
	}
	z, err := decodeZSet(ent.Data)
	if err != nil {
		return 0, false, err
	}
	for _, m := range z {
		if m.Member == member {
			return m.Score, true, nil
		}
	}
	return 0, false, nil
}

// ZCard returns the cardinality.
func (e *Engine) ZCard(namespace, key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindZSet, nowMs())
	if err != nil || !ok {
		return 0, err
	}
	z, err := decodeZSet(ent.Data)
	if err != nil {
		return 0, err
	}
	return len(z), nil
}
