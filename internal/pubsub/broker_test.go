package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, sub *Subscriber) Message {
	t.Helper()
	select {
	case msg := <-sub.C():
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestPublishFansOutToChannelSubscribers(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	s1 := b.Subscribe("news")
	s2 := b.Subscribe("news")
	other := b.Subscribe("sports")

	delivered := b.Publish("news", "hello", "pub-1")
	assert.Equal(t, 2, delivered)

	for _, sub := range []*Subscriber{s1, s2} {
		msg := recvOne(t, sub)
		assert.Equal(t, "news", msg.Channel)
		assert.Equal(t, "hello", msg.Payload)
		assert.Equal(t, "pub-1", msg.PublisherID)
		assert.Empty(t, msg.Pattern)
	}
	select {
	case <-other.C():
		t.Fatal("subscriber on another channel must not receive")
	default:
	}
}

func TestPatternSubscriptionMatchesGlob(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	sub := b.PSubscribe("user:*")

	assert.Equal(t, 1, b.Publish("user:42", "payload", ""))
	msg := recvOne(t, sub)
	assert.Equal(t, "user:42", msg.Channel)
	assert.Equal(t, "user:*", msg.Pattern)

	assert.Equal(t, 0, b.Publish("session:42", "payload", ""))
}

func TestPerSubscriberOrdering(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	sub := b.Subscribe("ch")
	for i := 0; i < 10; i++ {
		b.Publish("ch", string(rune('a'+i)), "")
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, string(rune('a'+i)), recvOne(t, sub).Payload)
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	sub := b.Subscribe("ch")
	// Fill the sink buffer without draining, then one more delivery must
	// time out and drop the subscription.
	for i := 0; i < sinkBuffer; i++ {
		require.Equal(t, 1, b.Publish("ch", "fill", ""))
	}
	assert.Equal(t, 0, b.Publish("ch", "overflow", ""))
	assert.Equal(t, 0, b.NumSub("ch")["ch"])

	// Further publishes do not reach the dropped subscriber.
	assert.Equal(t, 0, b.Publish("ch", "after", ""))
	_ = sub
}

func TestUnsubscribe(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	sub := b.Subscribe("a", "b")
	assert.Equal(t, 1, b.NumSub("a")["a"])

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.NumSub("a")["a"])
	assert.Equal(t, 0, b.Publish("a", "x", ""))
}

func TestChannelsListing(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	b.Subscribe("user:1")
	b.Subscribe("user:2")
	b.Subscribe("jobs")

	assert.Len(t, b.Channels(""), 3)
	assert.Len(t, b.Channels("user:*"), 2)
}

func TestNumPat(t *testing.T) {
	b := NewBroker(nil)
	defer b.Close()

	assert.Equal(t, 0, b.NumPat())
	b.PSubscribe("a:*")
	b.PSubscribe("b:*", "c:*")
	assert.Equal(t, 3, b.NumPat())
}
