package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Seat classes carried on tickets and per-class inventory counters.
const (
	SeatClassEconomy  = "ECONOMY"
	SeatClassBusiness = "BUSINESS"
	SeatClassFirst    = "FIRST"
)

// ValidSeatClass reports whether class names a known seat class. The empty
// string is also accepted and means "any class" (aggregate availability).
func ValidSeatClass(class string) bool {
	switch class {
	case "", SeatClassEconomy, SeatClassBusiness, SeatClassFirst:
		return true
	}
	return false
}

// SeatInventory is the authoritative seat-counter record for one train on
// one departure date. It is mutated only inside the inventory service's
// locked critical section; the version column backs an optimistic guard on
// every write.
type SeatInventory struct {
	bun.BaseModel `bun:"table:seat_inventory"`

	ID                int64     `bun:"id,pk,autoincrement"`
	TrainID           string    `bun:"train_id"`
	DepartureDate     string    `bun:"departure_date"`
	TotalSeats        int       `bun:"total_seats"`
	AvailableSeats    int       `bun:"available_seats"`
	ReservedSeats     int       `bun:"reserved_seats"`
	EconomyAvailable  int       `bun:"economy_available"`
	BusinessAvailable int       `bun:"business_available"`
	FirstAvailable    int       `bun:"first_available"`
	Active            bool      `bun:"active"`
	Version           int64     `bun:"version"`
	CreatedAt         time.Time `bun:"created_at"`
	UpdatedAt         time.Time `bun:"updated_at"`
}

// ClassAvailable returns the available count for the given class, or the
// aggregate when class is empty.
func (inv *SeatInventory) ClassAvailable(class string) int {
	switch class {
	case SeatClassEconomy:
		return inv.EconomyAvailable
	case SeatClassBusiness:
		return inv.BusinessAvailable
	case SeatClassFirst:
		return inv.FirstAvailable
	default:
		return inv.AvailableSeats
	}
}

// AvailabilitySnapshot is the read-only view served by the availability
// query and cached with a short TTL. It is never used for write decisions.
type AvailabilitySnapshot struct {
	TrainID           string `json:"trainId"`
	DepartureDate     string `json:"departureDate"`
	TotalSeats        int    `json:"totalSeats"`
	AvailableSeats    int    `json:"availableSeats"`
	ReservedSeats     int    `json:"reservedSeats"`
	EconomyAvailable  int    `json:"economyAvailable"`
	BusinessAvailable int    `json:"businessAvailable"`
	FirstAvailable    int    `json:"firstAvailable"`
}

// ClassAvailable mirrors SeatInventory.ClassAvailable for snapshots.
func (s *AvailabilitySnapshot) ClassAvailable(class string) int {
	switch class {
	case SeatClassEconomy:
		return s.EconomyAvailable
	case SeatClassBusiness:
		return s.BusinessAvailable
	case SeatClassFirst:
		return s.FirstAvailable
	default:
		return s.AvailableSeats
	}
}

// ReserveSeatRequest is the payload for inventory reserve/release calls.
type ReserveSeatRequest struct {
	TrainID       string `json:"trainId"`
	DepartureDate string `json:"departureDate"`
	NumberOfSeats int    `json:"numberOfSeats"`
	SeatClass     string `json:"seatClass,omitempty"`
}

// CreateScheduleRequest creates the inventory record when a schedule is
// published for a train and date.
type CreateScheduleRequest struct {
	TrainID       string `json:"trainId"`
	DepartureDate string `json:"departureDate"`
	EconomySeats  int    `json:"economySeats"`
	BusinessSeats int    `json:"businessSeats"`
	FirstSeats    int    `json:"firstSeats"`
}
