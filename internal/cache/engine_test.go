package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e := NewEngine(cfg, nil, nil)
	t.Cleanup(e.Close)
	return e
}

func defaultTestEngine(t *testing.T) *Engine {
	return newTestEngine(t, DefaultConfig())
}

func TestEvictionDropsLeastRecentlyUsed(t *testing.T) {
	e := newTestEngine(t, Config{MaxMemoryMB: 1, DefaultTTLSeconds: 3600})

	big := strings.Repeat("x", 300<<10)
	for _, key := range []string{"a", "b", "c"} {
		_, err := e.Set("default", key, big, SetOptions{})
		require.NoError(t, err)
	}

	// Touch "a" so "b" becomes the oldest.
	_, found, err := e.Get("default", "a")
	require.NoError(t, err)
	require.True(t, found)

	_, err = e.Set("default", "d", big, SetOptions{})
	require.NoError(t, err)

	_, found, err = e.Get("default", "b")
	require.NoError(t, err)
	assert.False(t, found, "least recently used key should be evicted")
	_, found, err = e.Get("default", "a")
	require.NoError(t, err)
	assert.True(t, found, "recently read key must survive eviction")

	st := e.Stats()
	assert.Equal(t, int64(1), st.Evictions)
	assert.LessOrEqual(t, st.MemoryBytes, st.MaxBytes)
}

func TestSingleValueOverBudgetFails(t *testing.T) {
	e := newTestEngine(t, Config{MaxMemoryMB: 1})

	_, err := e.Set("default", "huge", strings.Repeat("x", 2<<20), SetOptions{})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeMemoryLimit))

	// The failed write must leave no trace.
	assert.Equal(t, int64(0), e.Stats().MemoryBytes)
	assert.Equal(t, int64(0), e.Stats().Keys)
}

func TestFailedOversizeUpdateKeepsPreviousValue(t *testing.T) {
	e := newTestEngine(t, Config{MaxMemoryMB: 1})

	_, err := e.Set("default", "k", "small", SetOptions{})
	require.NoError(t, err)

	_, err = e.Set("default", "k", strings.Repeat("x", 2<<20), SetOptions{})
	require.True(t, IsCode(err, CodeMemoryLimit))

	v, found, err := e.Get("default", "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "small", v)
}

func TestLazyExpiry(t *testing.T) {
	e := defaultTestEngine(t)

	_, err := e.Set("default", "k", "v", SetOptions{})
	require.NoError(t, err)

	// Push the expiry into the past; the next read must miss and reclaim.
	applied, err := e.ExpireAt("default", "k", time.Now().Unix()-10)
	require.NoError(t, err)
	require.True(t, applied)

	_, found, err := e.Get("default", "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(1), e.Stats().ExpiredKeys)
	assert.Equal(t, int64(0), e.Stats().MemoryBytes)
}

func TestReaperSweepsExpiredKeys(t *testing.T) {
	e := newTestEngine(t, Config{MaxMemoryMB: 16, ReaperInterval: 20 * time.Millisecond})

	_, err := e.Set("default", "k", "v", SetOptions{})
	require.NoError(t, err)
	_, err = e.ExpireAt("default", "k", time.Now().Unix()-1)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return e.Stats().ExpiredKeys == 1
	}, time.Second, 10*time.Millisecond)
}

func TestNamespaceIsolation(t *testing.T) {
	e := defaultTestEngine(t)

	_, err := e.Set("tenant-a", "k", "a-value", SetOptions{})
	require.NoError(t, err)
	_, err = e.Set("tenant-b", "k", "b-value", SetOptions{})
	require.NoError(t, err)

	va, _, err := e.Get("tenant-a", "k")
	require.NoError(t, err)
	vb, _, err := e.Get("tenant-b", "k")
	require.NoError(t, err)
	assert.Equal(t, "a-value", va)
	assert.Equal(t, "b-value", vb)

	e.FlushDB("tenant-a")
	_, found, err := e.Get("tenant-a", "k")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = e.Get("tenant-b", "k")
	require.NoError(t, err)
	assert.True(t, found, "flushing one namespace must not touch another")
}

func TestUsedBytesMatchesEntrySizes(t *testing.T) {
	e := defaultTestEngine(t)

	_, err := e.Set("default", "s", "hello", SetOptions{})
	require.NoError(t, err)
	_, err = e.HSet("default", "h", "f", "v")
	require.NoError(t, err)
	_, err = e.RPush("default", "l", "a", "b")
	require.NoError(t, err)
	e.Del("default", "s")

	e.mu.Lock()
	defer e.mu.Unlock()
	var sum int64
	for _, nsd := range e.namespaces {
		var nsSum int64
		for _, ent := range nsd.entries {
			nsSum += int64(len(ent.Data))
		}
		assert.Equal(t, nsSum, nsd.usedBytes)
		sum += nsSum
	}
	assert.Equal(t, sum, e.usedTotal)
	assert.Equal(t, e.lru.len(), 2)
}

func TestTTLAboveMaximumRejected(t *testing.T) {
	e := newTestEngine(t, Config{MaxMemoryMB: 16, MaxTTLSeconds: 100})

	ttl := int64(101)
	_, err := e.Set("default", "k", "v", SetOptions{TTLSeconds: &ttl})
	assert.True(t, IsCode(err, CodeTTLExceeded))

	ttl = 100
	_, err = e.Set("default", "k", "v", SetOptions{TTLSeconds: &ttl})
	assert.NoError(t, err)
}

func TestDefaultTTLAppliedWhenOmitted(t *testing.T) {
	e := newTestEngine(t, Config{MaxMemoryMB: 16, DefaultTTLSeconds: 60})

	_, err := e.Set("default", "k", "v", SetOptions{})
	require.NoError(t, err)
	ttl := e.TTL("default", "k")
	assert.Greater(t, ttl, int64(55))
	assert.LessOrEqual(t, ttl, int64(60))
}

func TestZeroTTLStoresWithoutExpiry(t *testing.T) {
	e := defaultTestEngine(t)

	ttl := int64(0)
	_, err := e.Set("default", "k", "v", SetOptions{TTLSeconds: &ttl})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), e.TTL("default", "k"))
}

func TestHitRateAccounting(t *testing.T) {
	e := defaultTestEngine(t)

	_, err := e.Set("default", "k", "v", SetOptions{})
	require.NoError(t, err)
	_, _, _ = e.Get("default", "k")
	_, _, _ = e.Get("default", "missing")

	st := e.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.InDelta(t, 0.5, st.HitRate(), 0.001)

	nsStats := e.StatsFor("default")
	assert.Equal(t, int64(1), nsStats.Hits)
	assert.Equal(t, int64(1), nsStats.Misses)
}
