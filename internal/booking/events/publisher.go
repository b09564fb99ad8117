// Package events publishes booking lifecycle notifications to Kafka. All
// publishes are fire-and-forget from the caller's perspective: the booking
// operation has already committed, so a publish failure is logged and the
// user-facing result is unchanged.
package events

import (
	"encoding/json"
	"fmt"

	"train-ticketing/internal/kafka"
	"train-ticketing/internal/models"
)

// Producer is the Kafka surface the publisher needs.
type Producer interface {
	Publish(topic, key string, value []byte) error
}

type Publisher struct {
	Producer Producer
}

func NewPublisher(p Producer) *Publisher {
	return &Publisher{Producer: p}
}

func (p *Publisher) BookingCreated(t models.Ticket) error {
	return p.publish(models.NewBookingEvent(models.EventBookingCreated, t))
}

func (p *Publisher) BookingConfirmed(t models.Ticket) error {
	return p.publish(models.NewBookingEvent(models.EventBookingConfirmed, t))
}

func (p *Publisher) BookingCancelled(t models.Ticket) error {
	return p.publish(models.NewBookingEvent(models.EventBookingCancelled, t))
}

// publish keys messages by ticket ID so all transitions of one ticket land
// on the same partition, in order.
func (p *Publisher) publish(ev models.BookingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event for ticket %s: %w", ev.EventType, ev.TicketID, err)
	}
	return p.Producer.Publish(kafka.TopicBookingEvents, ev.TicketID, data)
}
