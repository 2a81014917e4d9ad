package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := NewBus()
	var got []Event
	bus.Subscribe(EventKeySet, func(e Event) { got = append(got, e) })

	bus.Emit(Event{Type: EventKeySet, Namespace: "default", Key: "k"})
	bus.Emit(Event{Type: EventKeyDelete, Namespace: "default", Key: "k"})

	assert.Len(t, got, 1)
	assert.Equal(t, "k", got[0].Key)
	assert.False(t, got[0].Timestamp.IsZero(), "emit stamps the event")
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()
	count := 0
	bus.SubscribeAll(func(Event) { count++ })

	bus.Emit(Event{Type: EventKeySet})
	bus.Emit(Event{Type: EventNodeJoin})
	bus.Emit(Event{Type: EventAttestationRefresh})

	assert.Equal(t, 3, count)
}

func TestCloseDropsHandlers(t *testing.T) {
	bus := NewBus()
	count := 0
	bus.Subscribe(EventKeySet, func(Event) { count++ })
	bus.Close()
	bus.Emit(Event{Type: EventKeySet})
	assert.Equal(t, 0, count)
}
