package cache

import (
	"time"

	"github.com/dws-network/dws-cache/internal/events"
)

// reaperLoop periodically sweeps expired entries. Lazy expiry on the access
// paths guarantees correctness between sweeps; the reaper only bounds memory
// held by never-touched expired keys.
func (e *Engine) reaperLoop() {
	defer close(e.reaperDone)
	ticker := time.NewTicker(e.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := e.sweepExpired(); n > 0 {
				e.logger.Debug("reaper removed expired entries", map[string]interface{}{
					"count": n,
				})
			}
		case <-e.stopReaper:
			return
		}
	}
}

// sweepExpired removes every expired entry and returns the count.
func (e *Engine) sweepExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := nowMs()
	removed := 0
	for namespace, nsd := range e.namespaces {
		for key, ent := range nsd.entries {
			if !ent.expired(now) {
				continue
			}
			e.dropEntry(nsd, namespace, key, ent)
			e.expiredKeys++
			removed++
			e.bus.Emit(events.Event{Type: events.EventKeyExpire, Namespace: namespace, Key: key})
		}
	}
	return removed
}
