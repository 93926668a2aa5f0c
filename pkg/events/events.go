package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventEnvironmentCreated EventType = "environment.created"
	EventEnvironmentUpdated EventType = "environment.updated"
	EventEnvironmentPatched EventType = "environment.patched"
	EventEnvironmentDeleted EventType = "environment.deleted"
	EventConfigChanged      EventType = "config.changed"
	EventConfigRepoRemoved  EventType = "configrepo.removed"
	EventAgentRegistered    EventType = "agent.registered"
	EventAgentHeartbeat     EventType = "agent.heartbeat"
	EventAgentDeleted       EventType = "agent.deleted"
	EventJobAssigned        EventType = "job.assigned"
)

// Metadata keys
const (
	MetaEnvironment = "environment"
	MetaConfigHash  = "config_hash"
	MetaConfigRepo  = "config_repo"
	MetaAgentID     = "agent_id"
	MetaJobID       = "job_id"
	MetaPipeline    = "pipeline"
)

// Event represents a state change notification
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// NewEvent creates an event with a fresh id
func NewEvent(t EventType, message string, metadata map[string]string) *Event {
	return &Event{
		ID:       uuid.New().String(),
		Type:     t,
		Message:  message,
		Metadata: metadata,
	}
}

// Subscription receives every event published after it was created, in
// publish order
type Subscription struct {
	C <-chan *Event

	ch   chan *Event
	done chan struct{}
	once sync.Once
}

// Broker manages event subscriptions and distribution. Delivery blocks until
// every subscriber has accepted the event, so a subscriber never misses an
// event while it is subscribed.
type Broker struct {
	subscribers map[*Subscription]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Subscription]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a new subscription
func (b *Broker) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Event, 50) // Buffer per subscriber
	sub := &Subscription{C: ch, ch: ch, done: make(chan struct{})}
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription. Pending deliveries to it are abandoned.
func (b *Broker) Unsubscribe(sub *Subscription) {
	sub.once.Do(func() { close(sub.done) })

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	// Set timestamp if not set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-b.stopCh:
			return
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
