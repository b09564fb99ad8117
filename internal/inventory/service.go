// Package inventory owns the authoritative seat counters. Every mutation
// runs under a per-key distributed mutex plus a row-level guard; queries
// are lock-free and may be served from a short-TTL cache.
package inventory

import (
	"errors"
	"fmt"

	"train-ticketing/internal/errs"
	"train-ticketing/internal/logger"
	"train-ticketing/internal/models"
)

type LedgerStore interface {
	Get(trainID, date string) (*models.SeatInventory, error)
	Create(inv *models.SeatInventory) error
	Mutate(trainID, date string, fn func(inv *models.SeatInventory) error) error
}

type Mutex interface {
	Acquire(key string) (string, error)
	Release(key, token string) error
}

type SnapshotCache interface {
	Get(trainID, date string) (*models.AvailabilitySnapshot, bool)
	Set(snap *models.AvailabilitySnapshot) error
	Invalidate(trainID, date string) error
}

type Service struct {
	Store  LedgerStore
	Lock   Mutex
	Cache  SnapshotCache
	Logger *logger.Logger
}

func NewService(store LedgerStore, lock Mutex, cache SnapshotCache, log *logger.Logger) *Service {
	return &Service{Store: store, Lock: lock, Cache: cache, Logger: log}
}

func ledgerKey(trainID, date string) string {
	return trainID + ":" + date
}

// Reserve atomically takes count seats of the given class (or from the
// aggregate when class is empty). It fails with ErrInsufficientSeats when
// the class has fewer than count seats, and with ErrUnavailable when the
// mutex cannot be acquired within its bounded wait.
func (s *Service) Reserve(trainID, date string, count int, class string) error {
	if err := validateMutation(trainID, date, count, class); err != nil {
		return err
	}

	key := ledgerKey(trainID, date)
	token, err := s.Lock.Acquire(key)
	if err != nil {
		return err
	}
	defer s.release(key, token)

	err = s.Store.Mutate(trainID, date, func(inv *models.SeatInventory) error {
		if !inv.Active {
			return fmt.Errorf("schedule %s is no longer active: %w", key, errs.ErrNotFound)
		}
		avail := inv.ClassAvailable(class)
		if avail < count {
			return fmt.Errorf("train %s on %s: requested %d, available %d: %w",
				trainID, date, count, avail, errs.ErrInsufficientSeats)
		}
		takeSeats(inv, class, count)
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(trainID, date)
	s.Logger.LogInventory("RESERVE", key, fmt.Sprintf("reserved %d %s seats", count, classLabel(class)))
	return nil
}

// Release credits count seats back. The increments are clamped so the
// reserved counter never goes below zero: a duplicate release after a
// single reserve is idempotent-safe, not idempotent-exact, because
// releases carry no reservation identifier.
func (s *Service) Release(trainID, date string, count int, class string) error {
	if err := validateMutation(trainID, date, count, class); err != nil {
		return err
	}

	key := ledgerKey(trainID, date)
	token, err := s.Lock.Acquire(key)
	if err != nil {
		return err
	}
	defer s.release(key, token)

	err = s.Store.Mutate(trainID, date, func(inv *models.SeatInventory) error {
		creditSeats(inv, class, count)
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(trainID, date)
	s.Logger.LogInventory("RELEASE", key, fmt.Sprintf("released %d %s seats", count, classLabel(class)))
	return nil
}

// Query returns the availability snapshot, cache-first. It never takes the
// mutex. A missing or inactive schedule reports zero availability rather
// than an error, so callers deny rather than oversell.
func (s *Service) Query(trainID, date string) (*models.AvailabilitySnapshot, error) {
	if snap, ok := s.Cache.Get(trainID, date); ok {
		return snap, nil
	}

	inv, err := s.Store.Get(trainID, date)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return &models.AvailabilitySnapshot{TrainID: trainID, DepartureDate: date}, nil
		}
		return nil, err
	}

	snap := snapshotOf(inv)
	if err := s.Cache.Set(snap); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("failed to cache snapshot for %s: %v", ledgerKey(trainID, date), err))
	}
	return snap, nil
}

// PublishSchedule creates the inventory record when a schedule goes live.
func (s *Service) PublishSchedule(req models.CreateScheduleRequest) (*models.SeatInventory, error) {
	if req.TrainID == "" || req.DepartureDate == "" {
		return nil, fmt.Errorf("trainId and departureDate are required: %w", errs.ErrInvalidRequest)
	}
	if req.EconomySeats < 0 || req.BusinessSeats < 0 || req.FirstSeats < 0 {
		return nil, fmt.Errorf("seat counts must be non-negative: %w", errs.ErrInvalidRequest)
	}
	total := req.EconomySeats + req.BusinessSeats + req.FirstSeats
	if total == 0 {
		return nil, fmt.Errorf("schedule must have at least one seat: %w", errs.ErrInvalidRequest)
	}

	inv := &models.SeatInventory{
		TrainID:           req.TrainID,
		DepartureDate:     req.DepartureDate,
		TotalSeats:        total,
		AvailableSeats:    total,
		EconomyAvailable:  req.EconomySeats,
		BusinessAvailable: req.BusinessSeats,
		FirstAvailable:    req.FirstSeats,
		Active:            true,
	}
	if err := s.Store.Create(inv); err != nil {
		return nil, fmt.Errorf("publish schedule %s:%s: %w", req.TrainID, req.DepartureDate, err)
	}

	s.Logger.LogInventory("PUBLISH", ledgerKey(req.TrainID, req.DepartureDate),
		fmt.Sprintf("schedule published with %d seats", total))
	return inv, nil
}

// DeactivateSchedule marks the record inactive when the schedule is
// cancelled. Records are never deleted.
func (s *Service) DeactivateSchedule(trainID, date string) error {
	key := ledgerKey(trainID, date)
	token, err := s.Lock.Acquire(key)
	if err != nil {
		return err
	}
	defer s.release(key, token)

	err = s.Store.Mutate(trainID, date, func(inv *models.SeatInventory) error {
		inv.Active = false
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(trainID, date)
	s.Logger.LogInventory("DEACTIVATE", key, "schedule deactivated")
	return nil
}

func (s *Service) release(key, token string) {
	if err := s.Lock.Release(key, token); err != nil {
		s.Logger.Error("LOCK", fmt.Sprintf("failed to release lock %s: %v", key, err))
	}
}

func (s *Service) invalidate(trainID, date string) {
	if err := s.Cache.Invalidate(trainID, date); err != nil {
		// The cache is not authoritative and entries expire within the TTL,
		// so a failed invalidation degrades to briefly stale reads.
		s.Logger.Warn("CACHE", fmt.Sprintf("failed to invalidate snapshot for %s: %v", ledgerKey(trainID, date), err))
	}
}

func validateMutation(trainID, date string, count int, class string) error {
	if trainID == "" || date == "" {
		return fmt.Errorf("trainId and departureDate are required: %w", errs.ErrInvalidRequest)
	}
	if count <= 0 {
		return fmt.Errorf("seat count must be positive, got %d: %w", count, errs.ErrInvalidRequest)
	}
	if !models.ValidSeatClass(class) {
		return fmt.Errorf("unknown seat class %q: %w", class, errs.ErrInvalidRequest)
	}
	return nil
}

// takeSeats decrements the class counter (or drains classes in economy,
// business, first order when no class is given) together with the
// aggregate. The caller has already validated availability.
func takeSeats(inv *models.SeatInventory, class string, count int) {
	switch class {
	case models.SeatClassEconomy:
		inv.EconomyAvailable -= count
	case models.SeatClassBusiness:
		inv.BusinessAvailable -= count
	case models.SeatClassFirst:
		inv.FirstAvailable -= count
	default:
		remaining := count
		fromEconomy := min(remaining, inv.EconomyAvailable)
		inv.EconomyAvailable -= fromEconomy
		remaining -= fromEconomy

		fromBusiness := min(remaining, inv.BusinessAvailable)
		inv.BusinessAvailable -= fromBusiness
		remaining -= fromBusiness

		inv.FirstAvailable -= remaining
	}
	inv.AvailableSeats -= count
	inv.ReservedSeats += count
}

// creditSeats increments counters back, clamped so reservedSeats never
// drops below zero. The credited amount goes to the named class, or to
// economy when the original reservation was classless.
func creditSeats(inv *models.SeatInventory, class string, count int) {
	credit := min(count, inv.ReservedSeats)
	if credit == 0 {
		return
	}

	inv.ReservedSeats -= credit
	inv.AvailableSeats += credit
	switch class {
	case models.SeatClassBusiness:
		inv.BusinessAvailable += credit
	case models.SeatClassFirst:
		inv.FirstAvailable += credit
	default:
		inv.EconomyAvailable += credit
	}
}

func snapshotOf(inv *models.SeatInventory) *models.AvailabilitySnapshot {
	snap := &models.AvailabilitySnapshot{
		TrainID:       inv.TrainID,
		DepartureDate: inv.DepartureDate,
		TotalSeats:    inv.TotalSeats,
	}
	if !inv.Active {
		return snap
	}
	snap.AvailableSeats = inv.AvailableSeats
	snap.ReservedSeats = inv.ReservedSeats
	snap.EconomyAvailable = inv.EconomyAvailable
	snap.BusinessAvailable = inv.BusinessAvailable
	snap.FirstAvailable = inv.FirstAvailable
	return snap
}

func classLabel(class string) string {
	if class == "" {
		return "any-class"
	}
	return class
}
