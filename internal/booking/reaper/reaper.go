// Package reaper sweeps tickets stuck in PENDING past the payment window
// and auto-cancels them, returning their seats to inventory. Its guarded
// cancel makes it safe to race user cancellations and payment callbacks.
package reaper

import (
	"context"
	"fmt"
	"time"

	"train-ticketing/internal/booking"
	"train-ticketing/internal/logger"
	"train-ticketing/internal/models"
)

const expiredReason = "Auto-cancelled due to payment timeout"

// Store is the slice of the ticket store the reaper uses.
type Store interface {
	FindExpiredPending(cutoff time.Time) ([]models.Ticket, error)
	MarkCancelled(ticketID string, from []string, reason string, at time.Time) (bool, error)
}

type Reaper struct {
	Store     Store
	Inventory booking.InventoryAPI
	Events    booking.EventPublisher
	Logger    *logger.Logger
	Window    time.Duration
	Interval  time.Duration
	Now       func() time.Time
}

func New(store Store, inv booking.InventoryAPI, events booking.EventPublisher,
	log *logger.Logger, window, interval time.Duration) *Reaper {
	return &Reaper{
		Store:     store,
		Inventory: inv,
		Events:    events,
		Logger:    log,
		Window:    window,
		Interval:  interval,
		Now:       time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled. A failed sweep is
// logged and retried on the next tick.
func (r *Reaper) Start(ctx context.Context) {
	r.Logger.LogReaper(fmt.Sprintf("started: window %s, interval %s", r.Window, r.Interval))

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Logger.LogReaper("stopped")
			return
		case <-ticker.C:
			if err := r.SweepOnce(); err != nil {
				r.Logger.Error("REAPER", fmt.Sprintf("sweep failed: %v", err))
			}
		}
	}
}

// SweepOnce expires every PENDING ticket older than the payment window.
// Each ticket is handled independently; one failure never blocks the rest.
func (r *Reaper) SweepOnce() error {
	cutoff := r.Now().Add(-r.Window)
	expired, err := r.Store.FindExpiredPending(cutoff)
	if err != nil {
		return fmt.Errorf("find expired pending tickets: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	r.Logger.LogReaper(fmt.Sprintf("found %d expired pending tickets", len(expired)))
	for _, ticket := range expired {
		r.expire(ticket)
	}
	return nil
}

// expire releases the ticket's seats, then cancels it under a PENDING-only
// guard. Release happens first and is clamp-safe on the inventory side, so
// losing the guard to a concurrent confirm or cancel leaves counters
// consistent. A lost guard also suppresses the cancellation event: the
// winning writer already announced the ticket's real fate.
func (r *Reaper) expire(ticket models.Ticket) {
	releaseReq := models.ReserveSeatRequest{
		TrainID:       ticket.TrainID,
		DepartureDate: ticket.DepartureDate,
		NumberOfSeats: ticket.NumberOfSeats,
		SeatClass:     ticket.SeatClass,
	}
	if err := r.Inventory.ReleaseSeats(releaseReq); err != nil {
		r.Logger.Error("REAPER", fmt.Sprintf("seat release failed for %s: %v", ticket.TicketID, err))
	}

	now := r.Now()
	won, err := r.Store.MarkCancelled(ticket.TicketID, []string{models.StatusPending}, expiredReason, now)
	if err != nil {
		r.Logger.Error("REAPER", fmt.Sprintf("failed to cancel %s: %v", ticket.TicketID, err))
		return
	}
	if !won {
		r.Logger.LogReaper(fmt.Sprintf("ticket %s changed status before expiry, skipping", ticket.TicketID))
		return
	}

	ticket.Status = models.StatusCancelled
	ticket.CancellationReason = expiredReason
	ticket.CancelledAt = now
	if err := r.Events.BookingCancelled(ticket); err != nil {
		r.Logger.Warn("KAFKA", fmt.Sprintf("failed to publish BOOKING_CANCELLED for %s: %v", ticket.TicketID, err))
	}

	r.Logger.LogReaper(fmt.Sprintf("ticket %s auto-cancelled after payment timeout", ticket.TicketID))
}
