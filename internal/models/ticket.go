package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket statuses. CANCELLED and COMPLETED are terminal.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
	StatusCompleted = "COMPLETED"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	TicketID           string    `bun:"ticket_id,pk" json:"ticketId"`
	UserID             string    `bun:"user_id" json:"userId"`
	TrainID            string    `bun:"train_id" json:"trainId"`
	DepartureDate      string    `bun:"departure_date" json:"departureDate"`
	NumberOfSeats      int       `bun:"number_of_seats" json:"numberOfSeats"`
	SeatClass          string    `bun:"seat_class" json:"seatClass,omitempty"`
	TotalPrice         float64   `bun:"total_price" json:"totalPrice"`
	Status             string    `bun:"status" json:"status"`
	CancellationReason string    `bun:"cancellation_reason" json:"cancellationReason,omitempty"`
	CreatedAt          time.Time `bun:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `bun:"updated_at" json:"updatedAt"`
	CancelledAt        time.Time `bun:"cancelled_at,nullzero" json:"cancelledAt,omitempty"`
}

// BookTicketRequest is the booking API payload.
type BookTicketRequest struct {
	TrainID       string  `json:"trainId"`
	DepartureDate string  `json:"departureDate"`
	NumberOfSeats int     `json:"numberOfSeats"`
	SeatClass     string  `json:"seatClass,omitempty"`
	TotalPrice    float64 `json:"totalPrice"`
}

// CancelTicketRequest carries the user-supplied cancellation reason.
type CancelTicketRequest struct {
	Reason string `json:"reason"`
}
