// Package booking orchestrates the ticket lifecycle: seat reservation,
// ticket persistence, payment-driven confirmation, cancellation with
// compensating release, and journey completion. Inventory is the source of
// truth for seats; this package never mutates counters directly, only
// through the inventory service's API.
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"train-ticketing/internal/errs"
	"train-ticketing/internal/logger"
	"train-ticketing/internal/models"
)

const defaultCancelReason = "User requested cancellation"

type TicketStore interface {
	Create(t *models.Ticket) error
	GetByID(ticketID string) (*models.Ticket, error)
	ListByUser(userID string) ([]models.Ticket, error)
	ListByUserAndStatus(userID, status string) ([]models.Ticket, error)
	Transition(ticketID string, from []string, to string) (bool, error)
	MarkCancelled(ticketID string, from []string, reason string, at time.Time) (bool, error)
}

type InventoryAPI interface {
	CheckAvailability(trainID, date string) (*models.AvailabilitySnapshot, error)
	ReserveSeats(req models.ReserveSeatRequest) error
	ReleaseSeats(req models.ReserveSeatRequest) error
}

type PaymentAPI interface {
	GetPaymentByTicket(ticketID string) (*models.Payment, error)
	Refund(ticketID string) error
}

type EventPublisher interface {
	BookingCreated(t models.Ticket) error
	BookingConfirmed(t models.Ticket) error
	BookingCancelled(t models.Ticket) error
}

type Service struct {
	Store      TicketStore
	Inventory  InventoryAPI
	Payments   PaymentAPI
	Events     EventPublisher
	Logger     *logger.Logger
	MaxRetries int
	RetryDelay time.Duration
}

func NewService(store TicketStore, inv InventoryAPI, pay PaymentAPI, events EventPublisher,
	log *logger.Logger, maxRetries int, retryDelay time.Duration) *Service {
	return &Service{
		Store:      store,
		Inventory:  inv,
		Payments:   pay,
		Events:     events,
		Logger:     log,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
	}
}

// Book runs the booking saga: availability pre-check, seat reservation
// with bounded retry, PENDING ticket persistence, event publish. A persist
// failure after a successful reservation triggers a compensating release
// so no seats leak.
func (s *Service) Book(userID string, req models.BookTicketRequest) (*models.Ticket, error) {
	if err := validateBooking(userID, req); err != nil {
		return nil, err
	}

	snap, err := s.Inventory.CheckAvailability(req.TrainID, req.DepartureDate)
	if err != nil {
		return nil, err
	}
	if snap.ClassAvailable(req.SeatClass) < req.NumberOfSeats {
		return nil, fmt.Errorf("train %s on %s has %d seats, requested %d: %w",
			req.TrainID, req.DepartureDate, snap.ClassAvailable(req.SeatClass), req.NumberOfSeats,
			errs.ErrInsufficientSeats)
	}

	reserveReq := models.ReserveSeatRequest{
		TrainID:       req.TrainID,
		DepartureDate: req.DepartureDate,
		NumberOfSeats: req.NumberOfSeats,
		SeatClass:     req.SeatClass,
	}
	if err := s.reserveWithRetry(reserveReq); err != nil {
		return nil, err
	}

	ticket := &models.Ticket{
		TicketID:      uuid.NewString(),
		UserID:        userID,
		TrainID:       req.TrainID,
		DepartureDate: req.DepartureDate,
		NumberOfSeats: req.NumberOfSeats,
		SeatClass:     req.SeatClass,
		TotalPrice:    req.TotalPrice,
		Status:        models.StatusPending,
	}
	if err := s.Store.Create(ticket); err != nil {
		// Compensate: seats are reserved but the ticket never existed.
		s.Logger.Error("BOOKING", fmt.Sprintf("ticket persist failed, releasing %d seats for %s:%s: %v",
			req.NumberOfSeats, req.TrainID, req.DepartureDate, err))
		if relErr := s.Inventory.ReleaseSeats(reserveReq); relErr != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("compensating release failed for %s:%s: %v",
				req.TrainID, req.DepartureDate, relErr))
		}
		return nil, fmt.Errorf("persist ticket: %w", err)
	}

	if err := s.Events.BookingCreated(*ticket); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("failed to publish BOOKING_CREATED for %s: %v", ticket.TicketID, err))
	}

	s.Logger.LogBooking("BOOK", ticket.TicketID, fmt.Sprintf("booked %d seats on %s for %s, awaiting payment",
		req.NumberOfSeats, req.TrainID, req.DepartureDate))
	return ticket, nil
}

// reserveWithRetry calls the inventory reservation endpoint, retrying only
// transient unavailability with a doubling backoff. Business failures
// (insufficient seats, unknown schedule) fail immediately.
func (s *Service) reserveWithRetry(req models.ReserveSeatRequest) error {
	delay := s.RetryDelay
	var err error
	for attempt := 1; attempt <= s.MaxRetries; attempt++ {
		err = s.Inventory.ReserveSeats(req)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errs.ErrUnavailable) {
			return err
		}
		if attempt < s.MaxRetries {
			s.Logger.Warn("BOOKING", fmt.Sprintf("reserve attempt %d/%d for %s:%s failed, retrying in %s: %v",
				attempt, s.MaxRetries, req.TrainID, req.DepartureDate, delay, err))
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

// Confirm moves the ticket to CONFIRMED after payment succeeds. Only
// PENDING tickets confirm; anything else is an invalid transition, which
// also makes a duplicate payment callback harmless.
func (s *Service) Confirm(userID, ticketID string) (*models.Ticket, error) {
	ticket, err := s.getOwned(userID, ticketID)
	if err != nil {
		return nil, err
	}

	won, err := s.Store.Transition(ticketID, []string{models.StatusPending}, models.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("ticket %s is %s, not PENDING: %w", ticketID, ticket.Status, errs.ErrInvalidTransition)
	}

	ticket.Status = models.StatusConfirmed
	if err := s.Events.BookingConfirmed(*ticket); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("failed to publish BOOKING_CONFIRMED for %s: %v", ticketID, err))
	}

	s.Logger.LogBooking("CONFIRM", ticketID, "payment received, ticket confirmed")
	return ticket, nil
}

// Cancel cancels a PENDING or CONFIRMED ticket: seats are released first,
// a completed payment is refunded, then the status flips under a guard.
// Release and refund are best-effort; their failure never blocks the
// cancellation the user asked for.
func (s *Service) Cancel(userID, ticketID, reason string) (*models.Ticket, error) {
	ticket, err := s.getOwned(userID, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != models.StatusPending && ticket.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("ticket %s is %s and cannot be cancelled: %w", ticketID, ticket.Status, errs.ErrInvalidTransition)
	}
	if reason == "" {
		reason = defaultCancelReason
	}

	releaseReq := models.ReserveSeatRequest{
		TrainID:       ticket.TrainID,
		DepartureDate: ticket.DepartureDate,
		NumberOfSeats: ticket.NumberOfSeats,
		SeatClass:     ticket.SeatClass,
	}
	if err := s.Inventory.ReleaseSeats(releaseReq); err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("seat release failed for %s: %v", ticketID, err))
	}

	if ticket.Status == models.StatusConfirmed {
		s.refundIfPaid(ticketID)
	}

	now := time.Now()
	won, err := s.Store.MarkCancelled(ticketID, []string{models.StatusPending, models.StatusConfirmed}, reason, now)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent writer (payment callback, expiry reaper) changed the
		// status between our read and the guarded update.
		current, gerr := s.Store.GetByID(ticketID)
		if gerr == nil && current.Status == models.StatusCancelled {
			return current, nil
		}
		return nil, fmt.Errorf("ticket %s changed status concurrently: %w", ticketID, errs.ErrInvalidTransition)
	}

	ticket.Status = models.StatusCancelled
	ticket.CancellationReason = reason
	ticket.CancelledAt = now
	if err := s.Events.BookingCancelled(*ticket); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("failed to publish BOOKING_CANCELLED for %s: %v", ticketID, err))
	}

	s.Logger.LogBooking("CANCEL", ticketID, reason)
	return ticket, nil
}

// Complete marks a CONFIRMED ticket COMPLETED once the journey has taken
// place. Completed seats are not released back: the departure happened.
func (s *Service) Complete(userID, ticketID string) (*models.Ticket, error) {
	ticket, err := s.getOwned(userID, ticketID)
	if err != nil {
		return nil, err
	}

	won, err := s.Store.Transition(ticketID, []string{models.StatusConfirmed}, models.StatusCompleted)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("ticket %s is %s, not CONFIRMED: %w", ticketID, ticket.Status, errs.ErrInvalidTransition)
	}

	ticket.Status = models.StatusCompleted
	s.Logger.LogBooking("COMPLETE", ticketID, "journey completed")
	return ticket, nil
}

// Get returns a ticket to its owner.
func (s *Service) Get(userID, ticketID string) (*models.Ticket, error) {
	return s.getOwned(userID, ticketID)
}

// ListByUser returns the user's tickets, optionally filtered by status.
func (s *Service) ListByUser(userID, status string) ([]models.Ticket, error) {
	if status == "" {
		return s.Store.ListByUser(userID)
	}
	return s.Store.ListByUserAndStatus(userID, status)
}

func (s *Service) getOwned(userID, ticketID string) (*models.Ticket, error) {
	ticket, err := s.Store.GetByID(ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != userID {
		return nil, fmt.Errorf("ticket %s does not belong to user %s: %w", ticketID, userID, errs.ErrUnauthorized)
	}
	return ticket, nil
}

// refundIfPaid issues a refund when a completed payment exists. Failures
// are logged; refunds are reconciled out of band.
func (s *Service) refundIfPaid(ticketID string) {
	payment, err := s.Payments.GetPaymentByTicket(ticketID)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("payment lookup failed for %s: %v", ticketID, err))
		}
		return
	}
	if !payment.Completed() {
		return
	}
	if err := s.Payments.Refund(ticketID); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("refund failed for %s: %v", ticketID, err))
		return
	}
	s.Logger.LogBooking("REFUND", ticketID, fmt.Sprintf("refunded %.2f", payment.Amount))
}

func validateBooking(userID string, req models.BookTicketRequest) error {
	if userID == "" {
		return fmt.Errorf("user ID is required: %w", errs.ErrUnauthorized)
	}
	if req.TrainID == "" || req.DepartureDate == "" {
		return fmt.Errorf("trainId and departureDate are required: %w", errs.ErrInvalidRequest)
	}
	if req.NumberOfSeats <= 0 {
		return fmt.Errorf("numberOfSeats must be positive, got %d: %w", req.NumberOfSeats, errs.ErrInvalidRequest)
	}
	if req.TotalPrice < 0 {
		return fmt.Errorf("totalPrice must be non-negative: %w", errs.ErrInvalidRequest)
	}
	if !models.ValidSeatClass(req.SeatClass) {
		return fmt.Errorf("unknown seat class %q: %w", req.SeatClass, errs.ErrInvalidRequest)
	}
	return nil
}
