package models

import "time"

// Booking event types published to the booking-events topic.
const (
	EventBookingCreated   = "BOOKING_CREATED"
	EventBookingConfirmed = "BOOKING_CONFIRMED"
	EventBookingCancelled = "BOOKING_CANCELLED"
)

// BookingEvent is the fire-and-forget notification emitted on every ticket
// state transition. Consumed at-least-once by notification and analytics.
type BookingEvent struct {
	EventType          string    `json:"eventType"`
	TicketID           string    `json:"ticketId"`
	UserID             string    `json:"userId"`
	TrainID            string    `json:"trainId"`
	DepartureDate      string    `json:"departureDate"`
	NumberOfSeats      int       `json:"numberOfSeats"`
	TotalPrice         float64   `json:"totalPrice"`
	Status             string    `json:"status"`
	CancellationReason string    `json:"cancellationReason,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// NewBookingEvent builds the event payload for a ticket transition.
func NewBookingEvent(eventType string, t Ticket) BookingEvent {
	return BookingEvent{
		EventType:          eventType,
		TicketID:           t.TicketID,
		UserID:             t.UserID,
		TrainID:            t.TrainID,
		DepartureDate:      t.DepartureDate,
		NumberOfSeats:      t.NumberOfSeats,
		TotalPrice:         t.TotalPrice,
		Status:             t.Status,
		CancellationReason: t.CancellationReason,
		Timestamp:          time.Now().UTC(),
	}
}
