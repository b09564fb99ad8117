package booking

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"train-ticketing/internal/errs"
	"train-ticketing/internal/logger"
	"train-ticketing/internal/models"
)

// Mock implementations for testing

type mockTicketStore struct {
	mu           sync.Mutex
	tickets      map[string]*models.Ticket
	failOnCreate error
}

func newMockTicketStore() *mockTicketStore {
	return &mockTicketStore{tickets: make(map[string]*models.Ticket)}
}

func (m *mockTicketStore) Create(t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOnCreate != nil {
		return m.failOnCreate
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tickets[t.TicketID] = &cp
	return nil
}

func (m *mockTicketStore) GetByID(ticketID string) (*models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, errs.ErrNotFound)
	}
	cp := *ticket
	return &cp, nil
}

func (m *mockTicketStore) ListByUser(userID string) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTicketStore) ListByUserAndStatus(userID, status string) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Ticket
	for _, t := range m.tickets {
		if t.UserID == userID && t.Status == status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTicketStore) Transition(ticketID string, from []string, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[ticketID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if ticket.Status == s {
			ticket.Status = to
			ticket.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTicketStore) MarkCancelled(ticketID string, from []string, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[ticketID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if ticket.Status == s {
			ticket.Status = models.StatusCancelled
			ticket.CancellationReason = reason
			ticket.CancelledAt = at
			ticket.UpdatedAt = at
			return true, nil
		}
	}
	return false, nil
}

// force pins a ticket to a status regardless of guards, simulating a
// concurrent writer.
func (m *mockTicketStore) force(ticketID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[ticketID].Status = status
}

type mockInventory struct {
	mu            sync.Mutex
	snapshot      *models.AvailabilitySnapshot
	reserveErrs   []error // consumed per call; nil entry means success
	reserveCalls  []models.ReserveSeatRequest
	releaseCalls  []models.ReserveSeatRequest
	failOnRelease error
}

func newMockInventory(available int) *mockInventory {
	return &mockInventory{
		snapshot: &models.AvailabilitySnapshot{
			TrainID:          "train-1",
			DepartureDate:    "2026-09-01",
			TotalSeats:       available,
			AvailableSeats:   available,
			EconomyAvailable: available,
		},
	}
}

func (m *mockInventory) CheckAvailability(trainID, date string) (*models.AvailabilitySnapshot, error) {
	return m.snapshot, nil
}

func (m *mockInventory) ReserveSeats(req models.ReserveSeatRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveCalls = append(m.reserveCalls, req)
	if len(m.reserveErrs) > 0 {
		err := m.reserveErrs[0]
		m.reserveErrs = m.reserveErrs[1:]
		return err
	}
	return nil
}

func (m *mockInventory) ReleaseSeats(req models.ReserveSeatRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls = append(m.releaseCalls, req)
	return m.failOnRelease
}

type mockPayments struct {
	payment     *models.Payment
	lookupErr   error
	refundErr   error
	refundCalls []string
}

func (m *mockPayments) GetPaymentByTicket(ticketID string) (*models.Payment, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	if m.payment == nil {
		return nil, fmt.Errorf("payment for ticket %s: %w", ticketID, errs.ErrNotFound)
	}
	return m.payment, nil
}

func (m *mockPayments) Refund(ticketID string) error {
	m.refundCalls = append(m.refundCalls, ticketID)
	return m.refundErr
}

type mockEvents struct {
	mu        sync.Mutex
	created   []models.Ticket
	confirmed []models.Ticket
	cancelled []models.Ticket
}

func (m *mockEvents) BookingCreated(t models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, t)
	return nil
}

func (m *mockEvents) BookingConfirmed(t models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed = append(m.confirmed, t)
	return nil
}

func (m *mockEvents) BookingCancelled(t models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, t)
	return nil
}

type fixture struct {
	svc       *Service
	store     *mockTicketStore
	inventory *mockInventory
	payments  *mockPayments
	events    *mockEvents
}

func setupService(available int) *fixture {
	store := newMockTicketStore()
	inv := newMockInventory(available)
	pay := &mockPayments{}
	ev := &mockEvents{}
	svc := NewService(store, inv, pay, ev, logger.NewWithWriter(os.Stderr), 3, time.Millisecond)
	return &fixture{svc: svc, store: store, inventory: inv, payments: pay, events: ev}
}

func bookRequest() models.BookTicketRequest {
	return models.BookTicketRequest{
		TrainID:       "train-1",
		DepartureDate: "2026-09-01",
		NumberOfSeats: 2,
		SeatClass:     models.SeatClassEconomy,
		TotalPrice:    120.0,
	}
}

func TestBook_Success(t *testing.T) {
	f := setupService(100)

	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, ticket.Status)
	assert.NotEmpty(t, ticket.TicketID)
	assert.Equal(t, "user-1", ticket.UserID)

	require.Len(t, f.inventory.reserveCalls, 1)
	assert.Equal(t, 2, f.inventory.reserveCalls[0].NumberOfSeats)
	assert.Empty(t, f.inventory.releaseCalls)

	require.Len(t, f.events.created, 1)
	assert.Equal(t, ticket.TicketID, f.events.created[0].TicketID)

	stored, err := f.store.GetByID(ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestBook_InsufficientAtPreCheck(t *testing.T) {
	f := setupService(1)

	_, err := f.svc.Book("user-1", bookRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInsufficientSeats))
	assert.Empty(t, f.inventory.reserveCalls, "pre-check failure must not attempt a reservation")
	assert.Empty(t, f.events.created)
}

func TestBook_ReserveInsufficientNotRetried(t *testing.T) {
	f := setupService(100)
	f.inventory.reserveErrs = []error{fmt.Errorf("gone: %w", errs.ErrInsufficientSeats)}

	_, err := f.svc.Book("user-1", bookRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInsufficientSeats))
	assert.Len(t, f.inventory.reserveCalls, 1, "business failures are terminal, never retried")
}

func TestBook_RetriesUnavailableThenSucceeds(t *testing.T) {
	f := setupService(100)
	f.inventory.reserveErrs = []error{
		fmt.Errorf("lock contention: %w", errs.ErrUnavailable),
		fmt.Errorf("lock contention: %w", errs.ErrUnavailable),
		nil,
	}

	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, ticket.Status)
	assert.Len(t, f.inventory.reserveCalls, 3)
}

func TestBook_RetriesExhausted(t *testing.T) {
	f := setupService(100)
	f.inventory.reserveErrs = []error{
		fmt.Errorf("down: %w", errs.ErrUnavailable),
		fmt.Errorf("down: %w", errs.ErrUnavailable),
		fmt.Errorf("down: %w", errs.ErrUnavailable),
	}

	_, err := f.svc.Book("user-1", bookRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnavailable))
	assert.Len(t, f.inventory.reserveCalls, 3, "bounded at max retries")
	assert.Empty(t, f.events.created)
}

func TestBook_PersistFailureReleasesSeats(t *testing.T) {
	f := setupService(100)
	f.store.failOnCreate = errors.New("db down")

	_, err := f.svc.Book("user-1", bookRequest())
	require.Error(t, err)

	require.Len(t, f.inventory.releaseCalls, 1, "reserved seats must be compensated")
	assert.Equal(t, 2, f.inventory.releaseCalls[0].NumberOfSeats)
	assert.Empty(t, f.events.created)
}

func TestBook_Validation(t *testing.T) {
	f := setupService(100)

	cases := []struct {
		name string
		mod  func(*models.BookTicketRequest)
		want error
	}{
		{"missing train", func(r *models.BookTicketRequest) { r.TrainID = "" }, errs.ErrInvalidRequest},
		{"missing date", func(r *models.BookTicketRequest) { r.DepartureDate = "" }, errs.ErrInvalidRequest},
		{"zero seats", func(r *models.BookTicketRequest) { r.NumberOfSeats = 0 }, errs.ErrInvalidRequest},
		{"negative seats", func(r *models.BookTicketRequest) { r.NumberOfSeats = -1 }, errs.ErrInvalidRequest},
		{"negative price", func(r *models.BookTicketRequest) { r.TotalPrice = -1 }, errs.ErrInvalidRequest},
		{"bad class", func(r *models.BookTicketRequest) { r.SeatClass = "LUXURY" }, errs.ErrInvalidRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := bookRequest()
			tc.mod(&req)
			_, err := f.svc.Book("user-1", req)
			assert.True(t, errors.Is(err, tc.want))
		})
	}

	assert.Empty(t, f.inventory.reserveCalls, "invalid input must not reach inventory")
}

func TestConfirm_Success(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)

	confirmed, err := f.svc.Confirm("user-1", ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	require.Len(t, f.events.confirmed, 1)
}

func TestConfirm_DuplicateCallbackLoses(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)

	_, err = f.svc.Confirm("user-1", ticket.TicketID)
	require.NoError(t, err)

	_, err = f.svc.Confirm("user-1", ticket.TicketID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
	assert.Len(t, f.events.confirmed, 1, "duplicate confirm must not re-publish")
}

func TestConfirm_WrongUser(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)

	_, err = f.svc.Confirm("user-2", ticket.TicketID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
}

func TestCancel_PendingReleasesWithoutRefund(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel("user-1", ticket.TicketID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, "User requested cancellation", cancelled.CancellationReason)

	require.Len(t, f.inventory.releaseCalls, 1)
	assert.Empty(t, f.payments.refundCalls, "pending tickets have no payment to refund")
	require.Len(t, f.events.cancelled, 1)
}

func TestCancel_ConfirmedRefundsCompletedPayment(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm("user-1", ticket.TicketID)
	require.NoError(t, err)

	f.payments.payment = &models.Payment{
		TicketID: ticket.TicketID,
		Amount:   120.0,
		Status:   models.PaymentCompleted,
	}

	cancelled, err := f.svc.Cancel("user-1", ticket.TicketID, "Change of plans")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Change of plans", cancelled.CancellationReason)

	require.Len(t, f.payments.refundCalls, 1)
	assert.Equal(t, ticket.TicketID, f.payments.refundCalls[0])
	require.Len(t, f.inventory.releaseCalls, 1)
}

func TestCancel_ConfirmedSkipsIncompletePayment(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm("user-1", ticket.TicketID)
	require.NoError(t, err)

	f.payments.payment = &models.Payment{
		TicketID: ticket.TicketID,
		Status:   models.PaymentFailed,
	}

	_, err = f.svc.Cancel("user-1", ticket.TicketID, "")
	require.NoError(t, err)
	assert.Empty(t, f.payments.refundCalls, "failed payments are not refunded")
}

func TestCancel_ReleaseFailureStillCancels(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)

	f.inventory.failOnRelease = errors.New("inventory down")

	cancelled, err := f.svc.Cancel("user-1", ticket.TicketID, "")
	require.NoError(t, err, "release failure must not block the user's cancellation")
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}

func TestCancel_TerminalStatusesRejected(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)

	f.store.force(ticket.TicketID, models.StatusCompleted)
	_, err = f.svc.Cancel("user-1", ticket.TicketID, "")
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))

	f.store.force(ticket.TicketID, models.StatusCancelled)
	_, err = f.svc.Cancel("user-1", ticket.TicketID, "")
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
}

func TestComplete_Success(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm("user-1", ticket.TicketID)
	require.NoError(t, err)

	completed, err := f.svc.Complete("user-1", ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.Empty(t, f.inventory.releaseCalls, "completion never returns seats")
}

func TestComplete_RequiresConfirmed(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)

	_, err = f.svc.Complete("user-1", ticket.TicketID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition), "pending tickets cannot complete")
}

func TestGet_Ownership(t *testing.T) {
	f := setupService(100)
	ticket, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)

	got, err := f.svc.Get("user-1", ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketID, got.TicketID)

	_, err = f.svc.Get("user-2", ticket.TicketID)
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))

	_, err = f.svc.Get("user-1", "missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestListByUser_StatusFilter(t *testing.T) {
	f := setupService(100)
	t1, err := f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Book("user-1", bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm("user-1", t1.TicketID)
	require.NoError(t, err)

	all, err := f.svc.ListByUser("user-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := f.svc.ListByUser("user-1", models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
