package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"train-ticketing/internal/errs"
	"train-ticketing/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// Get fetches the inventory record for one train and departure date.
func (d *DB) Get(trainID, date string) (*models.SeatInventory, error) {
	var inv models.SeatInventory
	err := d.Bun.NewSelect().
		Model(&inv).
		Where("train_id = ?", trainID).
		Where("departure_date = ?", date).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inventory %s:%s: %w", trainID, date, errs.ErrNotFound)
		}
		return nil, err
	}
	return &inv, nil
}

// Create inserts a new inventory record. The (train_id, departure_date)
// pair is unique; publishing the same schedule twice fails.
func (d *DB) Create(inv *models.SeatInventory) error {
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	_, err := d.Bun.NewInsert().Model(inv).Exec(context.Background())
	return err
}

// Mutate runs fn against the current row inside one transaction and writes
// the result back with a version guard. On Postgres the row is also taken
// FOR UPDATE, defense-in-depth against any writer that bypasses the
// distributed mutex. A guard miss means a concurrent writer won; callers
// treat it as retryable.
func (d *DB) Mutate(trainID, date string, fn func(inv *models.SeatInventory) error) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var inv models.SeatInventory
		q := tx.NewSelect().
			Model(&inv).
			Where("train_id = ?", trainID).
			Where("departure_date = ?", date).
			Limit(1)
		if d.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("inventory %s:%s: %w", trainID, date, errs.ErrNotFound)
			}
			return err
		}

		prev := inv.Version
		if err := fn(&inv); err != nil {
			return err
		}

		inv.Version = prev + 1
		inv.UpdatedAt = time.Now()

		res, err := tx.NewUpdate().
			Model(&inv).
			Column("total_seats", "available_seats", "reserved_seats",
				"economy_available", "business_available", "first_available",
				"active", "version", "updated_at").
			Where("id = ?", inv.ID).
			Where("version = ?", prev).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("inventory %s:%s: concurrent modification: %w", trainID, date, errs.ErrUnavailable)
		}
		return nil
	})
}
