// README: Booking lifecycle events published after each committed change.
package booking

import (
	"context"
	"time"

	"drivebook/internal/types"
)

type EventType string

const (
	EventCreated        EventType = "booking.created"
	EventTransitioned   EventType = "booking.transitioned"
	EventRated          EventType = "booking.rated"
	EventPaymentUpdated EventType = "booking.payment_updated"
)

type Event struct {
	Type       EventType     `json:"type"`
	BookingID  types.ID      `json:"booking_id"`
	CustomerID types.ID      `json:"customer_id"`
	DriverID   types.ID      `json:"driver_id"`
	From       Status        `json:"from,omitempty"`
	To         Status        `json:"to"`
	Payment    PaymentStatus `json:"payment_status"`
	ActorID    types.ID      `json:"actor_id"`
	At         time.Time     `json:"at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// JSONProducer is satisfied by infra.KafkaProducer.
type JSONProducer interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type producerPublisher struct {
	producer JSONProducer
}

// NewEventPublisher keys every event by booking id so one booking's events stay ordered.
func NewEventPublisher(p JSONProducer) EventPublisher {
	return &producerPublisher{producer: p}
}

func (p *producerPublisher) Publish(ctx context.Context, e Event) error {
	return p.producer.PublishJSON(ctx, string(e.BookingID), e)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func newEvent(t EventType, b *Booking, from Status, actor types.ID, at time.Time) Event {
	return Event{
		Type:       t,
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		DriverID:   b.DriverID,
		From:       from,
		To:         b.Status,
		Payment:    b.PaymentStatus,
		ActorID:    actor,
		At:         at,
	}
}
