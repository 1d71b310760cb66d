package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel names events into coarse streams clients subscribe to.
type Channel string

const (
	ChannelMetrics Channel = "metrics"
	ChannelAlerts  Channel = "alerts"
	ChannelLogs    Channel = "logs"
	ChannelJobs    Channel = "jobs"
	ChannelSystem  Channel = "system"
)

// EventType identifies what happened.
type EventType string

const (
	EventJobCreated         EventType = "job.created"
	EventJobUpdated         EventType = "job.updated"
	EventJobDeleted         EventType = "job.deleted"
	EventExecutionQueued    EventType = "execution.queued"
	EventExecutionStarted   EventType = "execution.started"
	EventExecutionCompleted EventType = "execution.completed"
	EventExecutionFailed    EventType = "execution.failed"
	EventExecutionCancelled EventType = "execution.cancelled"
	EventMappingUpdated     EventType = "mapping.updated"
	EventAlertFired         EventType = "alert.fired"
	EventMetricsSnapshot    EventType = "metrics.snapshot"
	EventSystemStatus       EventType = "system.status"
)

// Event is one message on the bus.
type Event struct {
	ID        string    `json:"id"`
	Channel   Channel   `json:"channel"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Subscriber receives events for its subscribed channels.
type Subscriber struct {
	C        chan *Event
	channels map[Channel]bool
}

// Wants reports whether the subscriber listens on ch.
func (s *Subscriber) Wants(ch Channel) bool {
	return len(s.channels) == 0 || s.channels[ch]
}

// Broker fans events out to subscribers. Delivery is best-effort: a
// subscriber whose buffer is full loses the event and its drop counter
// increments, so one slow websocket cannot stall the bus.
type Broker struct {
	mu             sync.RWMutex
	subscribers    map[*Subscriber]bool
	dropped        map[*Subscriber]uint64
	publishDropped uint64
	eventCh        chan *Event
	stopCh         chan struct{}
}

// NewBroker creates a broker. Call Start before publishing.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[*Subscriber]bool),
		dropped:     make(map[*Subscriber]uint64),
		eventCh:     make(chan *Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a subscriber for the given channels; no channels
// means all of them.
func (b *Broker) Subscribe(channels ...Channel) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		C:        make(chan *Event, 64),
		channels: make(map[Channel]bool, len(channels)),
	}
	for _, ch := range channels {
		sub.channels[ch] = true
	}
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sub] {
		delete(b.subscribers, sub)
		delete(b.dropped, sub)
		close(sub.C)
	}
}

// Publish enqueues an event for distribution. Missing identity fields
// are filled in. Like the per-subscriber fan-out, publication never
// blocks: when the distribution buffer is full the event is dropped
// and counted.
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case b.eventCh <- event:
	default:
		b.mu.Lock()
		b.publishDropped++
		b.mu.Unlock()
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
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if !sub.Wants(event.Channel) {
			continue
		}
		select {
		case sub.C <- event:
		default:
			b.dropped[sub]++
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many events a subscriber has lost to a full buffer.
func (b *Broker) Dropped(sub *Subscriber) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped[sub]
}

// PublishDropped returns how many events were lost to a full
// distribution buffer before reaching any subscriber.
func (b *Broker) PublishDropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.publishDropped
}
