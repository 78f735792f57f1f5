package audio

import (
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/chime/internal/pubsub"
)

// EventType categorizes load notifications.
type EventType string

const (
	EventAssetLoaded     EventType = "asset.loaded"
	EventAssetLoadFailed EventType = "asset.load_failed"
)

// Event is a load notification delivered to the engine.
type Event struct {
	ID        string
	Type      EventType
	URL       string
	Timestamp time.Time
}

// NewEvent creates an event with a fresh ID and the current timestamp.
func NewEvent(t EventType, url string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		URL:       url,
		Timestamp: time.Now(),
	}
}

// BrokerSink publishes load notifications onto a pubsub broker.
type BrokerSink struct {
	broker *pubsub.Broker[Event]
}

// NewBrokerSink returns a sink publishing to broker.
func NewBrokerSink(broker *pubsub.Broker[Event]) *BrokerSink {
	return &BrokerSink{broker: broker}
}

// AssetLoaded publishes EventAssetLoaded.
func (s *BrokerSink) AssetLoaded(url string) {
	s.broker.Publish(pubsub.CreatedEvent, NewEvent(EventAssetLoaded, url))
}

// AssetLoadFailed publishes EventAssetLoadFailed.
func (s *BrokerSink) AssetLoadFailed(url string) {
	s.broker.Publish(pubsub.CreatedEvent, NewEvent(EventAssetLoadFailed, url))
}

// EventQueue buffers notifications for consumers that poll once per frame.
type EventQueue struct {
	box *mailbox[Event]
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{box: newMailbox[Event]()}
}

// AssetLoaded queues EventAssetLoaded.
func (q *EventQueue) AssetLoaded(url string) {
	q.box.Push(NewEvent(EventAssetLoaded, url))
}

// AssetLoadFailed queues EventAssetLoadFailed.
func (q *EventQueue) AssetLoadFailed(url string) {
	q.box.Push(NewEvent(EventAssetLoadFailed, url))
}

// Poll returns all queued events in arrival order, leaving the queue empty.
func (q *EventQueue) Poll() []Event {
	var out []Event
	for {
		ev, ok := q.box.TryPop()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

// multiSink fans notifications out to several sinks.
type multiSink []EventSink

func (m multiSink) AssetLoaded(url string) {
	for _, s := range m {
		s.AssetLoaded(url)
	}
}

func (m multiSink) AssetLoadFailed(url string) {
	for _, s := range m {
		s.AssetLoadFailed(url)
	}
}

// MultiSink returns a sink forwarding every notification to each of sinks.
// Nil sinks are skipped.
func MultiSink(sinks ...EventSink) EventSink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// discardSink drops every notification.
type discardSink struct{}

func (discardSink) AssetLoaded(string)     {}
func (discardSink) AssetLoadFailed(string) {}
