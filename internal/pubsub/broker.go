// Package pubsub implements the process-local publish/subscribe broker:
// exact channel subscriptions plus glob pattern subscriptions with
// best-effort, per-subscriber in-order fan-out.
package pubsub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dws-network/dws-cache/internal/glob"
	"github.com/dws-network/dws-cache/pkg/observability"
)

// sinkTimeout bounds one delivery attempt; a subscriber that cannot accept
// within it is dropped.
const sinkTimeout = 50 * time.Millisecond

const sinkBuffer = 64

// Message is one published payload as seen by a subscriber.
type Message struct {
	Channel     string `json:"channel"`
	Pattern     string `json:"pattern,omitempty"`
	Payload     string `json:"payload"`
	PublisherID string `json:"publisherId,omitempty"`
}

// Subscriber is one registered sink. Messages arrive on C in publisher
// order until the subscriber is unsubscribed or dropped.
type Subscriber struct {
	ID string

	ch     chan Message
	closed chan struct{}
	once   sync.Once
}

// C returns the subscriber's receive channel.
func (s *Subscriber) C() <-chan Message { return s.ch }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.closed) })
}

// send delivers with a bounded wait. Returns false when the sink is full or
// closed, which drops the subscription.
func (s *Subscriber) send(msg Message) bool {
	select {
	case <-s.closed:
		return false
	case s.ch <- msg:
		return true
	case <-time.After(sinkTimeout):
		return false
	}
}

// Broker holds the channel and pattern subscription tables. The two tables
// lock independently and are never held while calling into the engine.
type Broker struct {
	chanMu   sync.RWMutex
	channels map[string]map[string]*Subscriber

	patMu    sync.RWMutex
	patterns map[string]map[string]*Subscriber

	logger observability.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger observability.Logger) *Broker {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Broker{
		channels: make(map[string]map[string]*Subscriber),
		patterns: make(map[string]map[string]*Subscriber),
		logger:   logger,
	}
}

func newSubscriber() *Subscriber {
	return &Subscriber{
		ID:     uuid.NewString(),
		ch:     make(chan Message, sinkBuffer),
		closed: make(chan struct{}),
	}
}

// Subscribe registers a sink on the given exact channels.
func (b *Broker) Subscribe(channels ...string) *Subscriber {
	sub := newSubscriber()
	b.chanMu.Lock()
	defer b.chanMu.Unlock()
	for _, ch := range channels {
		if b.channels[ch] == nil {
			b.channels[ch] = make(map[string]*Subscriber)
		}
		b.channels[ch][sub.ID] = sub
	}
	return sub
}

// PSubscribe registers a sink on the given glob patterns.
func (b *Broker) PSubscribe(patterns ...string) *Subscriber {
	sub := newSubscriber()
	b.patMu.Lock()
	defer b.patMu.Unlock()
	for _, p := range patterns {
		if b.patterns[p] == nil {
			b.patterns[p] = make(map[string]*Subscriber)
		}
		b.patterns[p][sub.ID] = sub
	}
	return sub
}

// Unsubscribe removes the subscriber from every channel and pattern set.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	sub.close()
	b.chanMu.Lock()
	for ch, subs := range b.channels {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(b.channels, ch)
		}
	}
	b.chanMu.Unlock()

	b.patMu.Lock()
	for p, subs := range b.patterns {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(b.patterns, p)
		}
	}
	b.patMu.Unlock()
}

// Publish fans the message out to exact subscribers of channel plus every
// pattern subscriber whose glob matches it, and returns the number
// delivered. A failed sink write silently drops that subscriber.
func (b *Broker) Publish(channel, payload, publisherID string) int {
	msg := Message{Channel: channel, Payload: payload, PublisherID: publisherID}

	delivered := 0
	var failed []*Subscriber

	b.chanMu.RLock()
	targets := make([]*Subscriber, 0, len(b.channels[channel]))
	for _, sub := range b.channels[channel] {
		targets = append(targets, sub)
	}
	b.chanMu.RUnlock()
	for _, sub := range targets {
		if sub.send(msg) {
			delivered++
		} else {
			failed = append(failed, sub)
		}
	}

	b.patMu.RLock()
	type patTarget struct {
		sub     *Subscriber
		pattern string
	}
	var patTargets []patTarget
	for pattern, subs := range b.patterns {
		if !glob.Match(pattern, channel) {
			continue
		}
		for _, sub := range subs {
			patTargets = append(patTargets, patTarget{sub: sub, pattern: pattern})
		}
	}
	b.patMu.RUnlock()
	for _, t := range patTargets {
		m := msg
		m.Pattern = t.pattern
		if t.sub.send(m) {
			delivered++
		} else {
			failed = append(failed, t.sub)
		}
	}

	for _, sub := range failed {
		b.logger.Warn("dropping slow subscriber", map[string]interface{}{
			"subscriber": sub.ID,
			"channel":    channel,
		})
		b.Unsubscribe(sub)
	}
	return delivered
}

// Channels returns the active channel names, optionally filtered by a glob
// pattern. Empty pattern lists everything.
func (b *Broker) Channels(pattern string) []string {
	b.chanMu.RLock()
	defer b.chanMu.RUnlock()
	out := []string{}
	for ch, subs := range b.channels {
		if len(subs) == 0 {
			continue
		}
		if pattern != "" && !glob.Match(pattern, ch) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// NumSub returns the exact-subscriber count per requested channel.
func (b *Broker) NumSub(channels ...string) map[string]int {
	b.chanMu.RLock()
	defer b.chanMu.RUnlock()
	out := make(map[string]int, len(channels))
	for _, ch := range channels {
		out[ch] = len(b.channels[ch])
	}
	return out
}

// NumPat returns the number of distinct active patterns.
func (b *Broker) NumPat() int {
	b.patMu.RLock()
	defer b.patMu.RUnlock()
	return len(b.patterns)
}

// Close drops every subscription.
func (b *Broker) Close() {
	b.chanMu.Lock()
	for ch, subs := range b.channels {
		for _, sub := range subs {
			sub.close()
		}
		delete(b.channels, ch)
	}
	b.chanMu.Unlock()

	b.patMu.Lock()
	for p, subs := range b.patterns {
		for _, sub := range subs {
			sub.close()
		}
		delete(b.patterns, p)
	}
	b.patMu.Unlock()
}
