package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *Subscription) *Event {
	t.Helper()
	select {
	case event := <-sub.C:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventEnvironmentCreated, "Added environment 'uat'.", map[string]string{MetaEnvironment: "uat"})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventEnvironmentCreated, event.Type)
	assert.Equal(t, "uat", event.Metadata[MetaEnvironment])
	assert.NotEqual(t, event.ID, NewEvent(EventEnvironmentCreated, "", nil).ID)
}

func TestBrokerDeliversToAllSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	first := b.Subscribe()
	second := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(NewEvent(EventConfigChanged, "changed", nil))

	for _, sub := range []*Subscription{first, second} {
		event := receive(t, sub)
		assert.Equal(t, EventConfigChanged, event.Type)
		assert.False(t, event.Timestamp.IsZero())
	}
}

func TestBrokerPreservesOrderWithoutDropping(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	const n = 500 // more than the broker and subscriber buffers combined

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			b.Publish(NewEvent(EventAgentHeartbeat, fmt.Sprintf("%d", i), nil))
		}
	}()

	for i := 0; i < n; i++ {
		event := receive(t, sub)
		require.Equal(t, fmt.Sprintf("%d", i), event.Message)
	}
	<-done
}

func TestUnsubscribeReleasesBlockedDelivery(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	slow := b.Subscribe()
	fast := b.Subscribe()

	// The slow subscriber never reads, so delivery stalls once its buffer is full
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(NewEvent(EventAgentHeartbeat, fmt.Sprintf("%d", i), nil))
		}
	}()

	for i := 0; i < 50; i++ {
		receive(t, fast)
	}
	b.Unsubscribe(slow)
	for i := 50; i < 100; i++ {
		event := receive(t, fast)
		assert.Equal(t, fmt.Sprintf("%d", i), event.Message)
	}
	assert.Equal(t, 1, b.SubscriberCount())
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()
	b.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(NewEvent(EventConfigChanged, "", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked after Stop")
	}
}
