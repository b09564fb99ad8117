package models

import "time"

// Payment statuses reported by the payment service.
const (
	PaymentPending   = "PENDING"
	PaymentCompleted = "COMPLETED"
	PaymentFailed    = "FAILED"
	PaymentRefunded  = "REFUNDED"
)

// Payment is the payment service's view of a ticket payment. The booking
// service only reads it to decide whether a refund is due on cancellation.
type Payment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	UserID    string    `json:"userId"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Completed reports whether the payment went through and is refundable.
func (p *Payment) Completed() bool {
	return p.Status == PaymentCompleted
}
