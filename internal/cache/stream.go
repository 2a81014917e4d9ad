package cache

import "fmt"

// streamMaxEntries is the per-stream retention cap; the oldest entries are
// dropped past it.
const streamMaxEntries = 10000

// XAdd appends an entry and returns its id, "{epochMs}-{seq}". The sequence
// is monotonic per stream, so ids stay unique across the retention rollover.
func (e *Engine) XAdd(namespace, key string, fields map[string]string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	nsd := e.ns(namespace)
	ent, exists, err := e.writeTyped(nsd, namespace, key, KindStream, now)
	if err != nil {
		return "", err
	}
	var s streamValue
	if exists {
		if s, err = decodeStream(ent.Data); err != nil {
			return "", err
		}
	}
	id := fmt.Sprintf("%d-%d", now, s.Seq)
	s.Seq++
	s.Entries = append(s.Entries, StreamEntry{ID: id, Fields: fields})
	if len(s.Entries) > streamMaxEntries {
		s.Entries = s.Entries[len(s.Entries)-streamMaxEntries:]
	}
	if err := e.commit(nsd, namespace, key, ent, KindStream, encodeStream(s), e.resolveExpiry(ent, keepExpiry, now), now); err != nil {
		return "", err
	}
	return id, nil
}

// XRange returns entries with start <= id <= end under lexicographic id
// ordering. "-" and "+" are open-ended sentinels. count <= 0 means no limit.
func (e *Engine) XRange(namespace, key, start, end string, count int) ([]StreamEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return []StreamEntry{}, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindStream, nowMs())
	if err != nil {
		return nil, err
	}
	if !ok {
		return []StreamEntry{}, nil
	}
	s, err := decodeStream(ent.Data)
	if err != nil {
		return nil, err
	}
	out := []StreamEntry{}
	for _, se := range s.Entries {
		if start != "-" && se.ID < start {
			continue
		}
		if end != "+" && se.ID > end {
			continue
		}
		out = append(out, se)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

// XLen returns the number of retained entries.
func (e *Engine) XLen(namespace, key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nsd, ok := e.namespaces[namespace]
	if !ok {
		return 0, nil
	}
	ent, ok, err := e.readTyped(nsd, namespace, key, KindStream, nowMs())
	if err != nil || !ok {
		return 0, err
	}
	s, err := decodeStream(ent.Data)
	if err != nil {
		return 0, err
	}
	return len(s.Entries), nil
}
