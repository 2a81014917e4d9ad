// Package ratelimit implements the per-caller fixed-window limiter plus a
// process-wide RPS guard.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dws-network/dws-cache/pkg/observability"
)

// Config holds the limiter tunables.
type Config struct {
	Window time.Duration
	Limit  int64
	// GlobalRPS/GlobalBurst guard the whole process independent of caller
	// identity. Zero disables the guard.
	GlobalRPS   int
	GlobalBurst int
}

// DefaultConfig returns the fixed production settings: 1000 requests per
// caller per 60 second window.
func DefaultConfig() Config {
	return Config{
		Window:      60 * time.Second,
		Limit:       1000,
		GlobalRPS:   2000,
		GlobalBurst: 4000,
	}
}

// record is one caller's window state.
type record struct {
	count   int64
	resetAt time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    time.Time
	RetryAfter int64 // seconds; only meaningful when !Allowed
}

// Limiter is a fixed-window counter map keyed by caller identity. A janitor
// wipes expired records once per window.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*record
	cfg     Config
	global  *rate.Limiter
	logger  observability.Logger

	stop chan struct{}
	done chan struct{}
}

// NewLimiter creates a limiter and starts its janitor.
func NewLimiter(cfg Config, logger observability.Logger) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 1000
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	l := &Limiter{
		records: make(map[string]*record),
		cfg:     cfg,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.GlobalRPS > 0 {
		l.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst)
	}
	go l.janitor()
	return l
}

// Allow counts one request against the caller key. The counter stops at
// limit+1: once a window is exhausted further refusals leave it unchanged.
func (l *Limiter) Allow(key string) Decision {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok || now.After(rec.resetAt) {
		rec = &record{resetAt: now.Add(l.cfg.Window)}
		l.records[key] = rec
	}
	if rec.count <= l.cfg.Limit {
		rec.count++
	}

	d := Decision{
		Limit:   l.cfg.Limit,
		ResetAt: rec.resetAt,
	}
	if rec.count > l.cfg.Limit {
		d.Allowed = false
		d.Remaining = 0
		d.RetryAfter = int64(time.Until(rec.resetAt).Seconds()) + 1
		return d
	}
	d.Allowed = true
	d.Remaining = l.cfg.Limit - rec.count
	return d
}

// AllowGlobal consults the process-wide RPS guard.
func (l *Limiter) AllowGlobal() bool {
	if l.global == nil {
		return true
	}
	return l.global.Allow()
}

// janitor wipes records whose window has passed.
func (l *Limiter) janitor() {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, rec := range l.records {
		if now.After(rec.resetAt) {
			delete(l.records, key)
		}
	}
	l.logger.Debug("rate limit janitor completed", map[string]interface{}{
		"remaining_records": len(l.records),
	})
}

// Close stops the janitor.
func (l *Limiter) Close() {
	select {
	case <-l.stop:
	default:
		close(l.stop)
		<-l.done
	}
}
