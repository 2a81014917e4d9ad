package cache

import (
	"encoding/json"
	"sort"
)

// Kind is the immutable type tag of an entry.
type Kind string

// Value kinds
const (
	KindString Kind = "string"
	KindHash   Kind = "hash"
	KindList   Kind = "list"
	KindSet    Kind = "set"
	KindZSet   Kind = "zset"
	KindStream Kind = "stream"
)

// Entry is one value in a namespace. Size accounting uses len(Data); the
// structured kinds are re-encoded on every mutation and the delta applied to
// the namespace's usedBytes in the same critical section.
type Entry struct {
	Data []byte
	Kind Kind

	// Milliseconds since epoch. ExpiresAt == 0 means no expiry.
	CreatedAt      int64
	ExpiresAt      int64
	LastAccessedAt int64
	AccessCount    int64
}

func (e *Entry) expired(nowMs int64) bool {
	return e.ExpiresAt != 0 && e.ExpiresAt < nowMs
}

// ZMember is one (member, score) pair of a sorted set. Members are held
// sorted by ascending score, stable on insertion order for equal scores.
type ZMember struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// StreamEntry is one appended stream record.
type StreamEntry struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// streamValue keeps the per-stream sequence counter with the entries so ids
// stay unique across the retention rollover.
type streamValue struct {
	Seq     int64         `json:"seq"`
	Entries []StreamEntry `json:"entries"`
}

func encodeHash(h map[string]string) []byte {
	data, _ := json.Marshal(h)
	return data
}

func decodeHash(data []byte) (map[string]string, error) {
	h := make(map[string]string)
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, ErrInvalidOperation("corrupt hash payload")
	}
	return h, nil
}

func encodeList(l []string) []byte {
	if l == nil {
		l = []string{}
	}
	data, _ := json.Marshal(l)
	return data
}

func decodeList(data []byte) ([]string, error) {
	var l []string
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, ErrInvalidOperation("corrupt list payload")
	}
	return l, nil
}

// Sets are encoded as a sorted member slice so equal sets produce equal
// bytes regardless of insertion order.
func encodeSet(s map[string]struct{}) []byte {
	members := make([]string, 0, len(s))
	for m := range s {
		members = append(members, m)
	}
	sort.Strings(members)
	data, _ := json.Marshal(members)
	return data
}

func decodeSet(data []byte) (map[string]struct{}, error) {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, ErrInvalidOperation("corrupt set payload")
	}
	s := make(map[string]struct{}, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s, nil
}

func encodeZSet(z []ZMember) []byte {
	if z == nil {
		z = []ZMember{}
	}
	data, _ := json.Marshal(z)
	return data
}

func decodeZSet(data []byte) ([]ZMember, error) {
	var z []ZMember
	if err := json.Unmarshal(data, &z); err != nil {
		return nil, ErrInvalidOperation("corrupt zset payload")
	}
	return z, nil
}

func encodeStream(s streamValue) []byte {
	if s.Entries == nil {
		s.Entries = []StreamEntry{}
	}
	data, _ := json.Marshal(s)
	return data
}

func decodeStream(data []byte) (streamValue, error) {
	var s streamValue
	if err := json.Unmarshal(data, &s); err != nil {
		return streamValue{}, ErrInvalidOperation("corrupt stream payload")
	}
	return s, nil
}
