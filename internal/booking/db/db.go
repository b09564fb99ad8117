// Package db is the booking service's ticket store. Status transitions go
// through guarded conditional updates so that concurrent writers (user
// actions, payment callbacks, the expiry reaper) race safely: exactly one
// wins, the losers observe a guard miss.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"train-ticketing/internal/errs"
	"train-ticketing/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) Create(t *models.Ticket) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := d.Bun.NewInsert().Model(t).Exec(context.Background())
	return err
}

func (d *DB) GetByID(ticketID string) (*models.Ticket, error) {
	var t models.Ticket
	err := d.Bun.NewSelect().
		Model(&t).
		Where("ticket_id = ?", ticketID).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %s: %w", ticketID, errs.ErrNotFound)
		}
		return nil, err
	}
	return &t, nil
}

func (d *DB) ListByUser(userID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (d *DB) ListByUserAndStatus(userID, status string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		Where("status = ?", status).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// Transition moves the ticket to status `to` only if its current status is
// one of `from`. It reports whether this caller won the transition; false
// with a nil error means a concurrent writer changed the status first.
func (d *DB) Transition(ticketID string, from []string, to string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", time.Now()).
		Where("ticket_id = ?", ticketID).
		Where("status IN (?)", bun.In(from)).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCancelled is Transition specialized for cancellation: it also stamps
// the reason and cancellation time in the same guarded update.
func (d *DB) MarkCancelled(ticketID string, from []string, reason string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.StatusCancelled).
		Set("cancellation_reason = ?", reason).
		Set("cancelled_at = ?", at).
		Set("updated_at = ?", at).
		Where("ticket_id = ?", ticketID).
		Where("status IN (?)", bun.In(from)).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindExpiredPending returns tickets still PENDING whose creation time is
// at or before cutoff. Results are a snapshot; the reaper re-checks status
// via the guarded cancel before acting on each one.
func (d *DB) FindExpiredPending(cutoff time.Time) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("status = ?", models.StatusPending).
		Where("created_at <= ?", cutoff).
		Order("created_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return tickets, nil
}
