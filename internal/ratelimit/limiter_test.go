package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	l := NewLimiter(cfg, nil)
	t.Cleanup(l.Close)
	return l
}

func TestWindowBoundary(t *testing.T) {
	l := newTestLimiter(t, Config{Window: time.Hour, Limit: 5})

	for i := 0; i < 5; i++ {
		d := l.Allow("caller")
		assert.True(t, d.Allowed, "request %d within the limit", i+1)
		assert.Equal(t, int64(5), d.Limit)
		assert.Equal(t, int64(4-i), d.Remaining)
	}

	d := l.Allow("caller")
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(0), d.Remaining)
	assert.Greater(t, d.RetryAfter, int64(0))
	assert.True(t, d.ResetAt.After(time.Now()))
}

func TestCallersAreIndependent(t *testing.T) {
	l := newTestLimiter(t, Config{Window: time.Hour, Limit: 1})

	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed, "a second caller has its own window")
}

func TestWindowResets(t *testing.T) {
	l := newTestLimiter(t, Config{Window: 50 * time.Millisecond, Limit: 1})

	assert.True(t, l.Allow("caller").Allowed)
	assert.False(t, l.Allow("caller").Allowed)

	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.Allow("caller").Allowed, "counter resets on the window boundary")
}

func TestRefusalsDoNotGrowTheCounter(t *testing.T) {
	l := newTestLimiter(t, Config{Window: time.Hour, Limit: 3})

	for i := 0; i < 10; i++ {
		l.Allow("caller")
	}

	l.mu.Lock()
	count := l.records["caller"].count
	l.mu.Unlock()
	assert.Equal(t, int64(4), count, "counter stops one past the limit")
	assert.False(t, l.Allow("caller").Allowed)
}

func TestGlobalGuardDisabledByDefault(t *testing.T) {
	l := newTestLimiter(t, Config{Window: time.Hour, Limit: 1})
	assert.True(t, l.AllowGlobal())
}

func TestGlobalGuardBurst(t *testing.T) {
	l := newTestLimiter(t, Config{Window: time.Hour, Limit: 1000, GlobalRPS: 1, GlobalBurst: 2})

	assert.True(t, l.AllowGlobal())
	assert.True(t, l.AllowGlobal())
	assert.False(t, l.AllowGlobal(), "burst exhausted")
}

func TestJanitorDropsExpiredRecords(t *testing.T) {
	l := newTestLimiter(t, Config{Window: 30 * time.Millisecond, Limit: 10})

	l.Allow("caller")
	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.records) == 0
	}, time.Second, 10*time.Millisecond)
}
