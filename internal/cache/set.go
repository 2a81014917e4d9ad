package cache

import (
	"math/rand"
	"sort"
)

// SAdd adds members and returns the number actually new.
func (e *Engine) SAdd(namespace, key string, members ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindSet, now)
	if err != nil {
		return 0, err
	}
	s := map[string]struct{}{}
	if exists {
		if s, err = decodeSet(ent.Data); err != nil {
			return 0, err
		}
	}
	added := 0
	for _, m := range members {
		if _, ok := s[m]; !ok {
			s[m] = struct{}{}
			added++
		}
	}
	if err := e.commit(nsd, namespace, key, ent, KindSet, encodeSet(s), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return added, nil
}

// SRem removes members and returns how many were present.
func (e *Engine) SRem(namespace, key string, members ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0, nil
	}
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindSet, now)
	if err != nil || !exists {
		return 0, err
	}
	s, err := decodeSet(ent.Data)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range members {
		if _, ok := s[m]; ok {
			delete(s, m)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := e.commit(nsd, namespace, key, ent, KindSet, encodeSet(s), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return 0, err
	}
	return removed, nil
}

// SMembers returns all members, sorted.
func (e *Engine) SMembers(namespace, key string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return []string{}, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindSet, nowMs())
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	s, err := decodeSet(ent.Data)
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(s))
	for m := range s {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

// SIsMember reports membership.
func (e *Engine) SIsMember(namespace, key, member string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return false, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindSet, nowMs())
	if err != nil || !ok {
		return false, err
	}
	s, err := decodeSet(ent.Data)
	if err != nil {
		return false, err
	}
	_, ok = s[member]
	return ok, nil
}

// SCard returns the cardinality.
func (e *Engine) SCard(namespace, key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindSet, nowMs())
	if err != nil || !ok {
		return 0, err
	}
	s, err := decodeSet(ent.Data)
	if err != nil {
		return 0, err
	}
	return len(s), nil
}

// SPop removes and returns a random member. The randomness source is not
// cryptographic.
func (e *Engine) SPop(namespace, key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd, ok := e.namespaces[namespace]
	if !ok {
		return "", false, nil
	}
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindSet, now)
	if err != nil || !exists {
		return "", false, err
	}
	s, err := decodeSet(ent.Data)
	if err != nil {
		return "", false, err
	}
	if len(s) == 0 {
		return "", false, nil
	}
	m := pickRandom(s)
	delete(s, m)
	if err := e.commit(nsd, namespace, key, ent, KindSet, encodeSet(s), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return "", false, err
	}
	return m, true, nil
}

// SRandMember returns a random member without removing it.
func (e *Engine) SRandMember(namespace, key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return "", false, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindSet, nowMs())
	if err != nil || !ok {
		return "", false, err
	}
	s, err := decodeSet(ent.Data)
	if err != nil {
		return "", false, err
	}
	if len(s) == 0 {
		return "", false, nil
	}
	return pickRandom(s), true, nil
}

func pickRandom(s map[string]struct{}) string {
	members := make([]string, 0, len(s))
	for m := range s {
		members = append(members, m)
	}
	sort.Strings(members)
	return members[rand.Intn(len(members))]
}
