package realtime

import (
	"context"
	"time"
)

type EventType string

const (
	EventConnected    EventType = "connected"
	EventNewOrder     EventType = "newOrder"
	EventOrderUpdated EventType = "orderUpdated"
	EventItemUpdated  EventType = "itemUpdated"
	EventOrderDeleted EventType = "orderDeleted"
)

// Event is a lifecycle notification. Only server code creates events;
// nothing read from a client socket is ever turned into one.
type Event struct {
	Type         EventType   `json:"event"`
	RestaurantID int64       `json:"restaurantId"`
	Payload      interface{} `json:"data"`
	OccurredAt   time.Time   `json:"occurredAt"`
}

func NewEvent(t EventType, restaurantID int64, payload interface{}) Event {
	return Event{
		Type:         t,
		RestaurantID: restaurantID,
		Payload:      payload,
		OccurredAt:   time.Now().UTC(),
	}
}

// Publisher delivers events best-effort. Publish never blocks on slow
// consumers and never reports delivery failures to the caller.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Fanout publishes every event to each of its publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
