package model

import "time"

// Seat is a sellable unit within a schedule. LockOwner and LockExpiresAt are
// populated only while the seat is LOCKED; they mirror the authoritative
// redis lock so that operators can inspect holds and the sweep can reconcile
// rows whose lock key has already expired.
//
// Fields:
//  ID            – primary key identifier.
//  ScheduleID    – schedule that owns this seat.
//  RowLabel      – letter or string designating the row.
//  SeatNumber    – number of the seat within the row.
//  PriceCents    – price of this seat in cents.
//  Status        – AVAILABLE, LOCKED, RESERVED or SOLD.
//  LockOwner     – reservation-session holder id while LOCKED (nullable).
//  LockExpiresAt – lock deadline while LOCKED (nullable).
type Seat struct {
	ID            uint64     // seats.id
	ScheduleID    uint64     // seats.schedule_id
	RowLabel      string     // seats.row_label
	SeatNumber    uint32     // seats.seat_number
	PriceCents    uint32     // seats.price_cents
	Status        SeatStatus // seats.status
	LockOwner     *string    // seats.lock_owner (nullable)
	LockExpiresAt *time.Time // seats.lock_expires_at (nullable)
	CreatedAt     time.Time  // seats.created_at
	UpdatedAt     time.Time  // seats.updated_at
}

// Held reports whether the seat is in any non-AVAILABLE state.
func (s *Seat) Held() bool {
	return s.Status != SeatAvailable
}
