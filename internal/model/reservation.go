package model

import "time"

// Reservation is a buyer's claim on a single seat. At most one non-CANCELLED
// reservation exists per seat at any time; the engine enforces this through
// the guarded seat transition LOCKED -> RESERVED.
//
// Fields:
//  ID          – primary key identifier.
//  Number      – opaque unique booking reference shown to the buyer.
//  UserID      – buyer who created the reservation.
//  ScheduleID  – schedule of the reserved seat.
//  SeatID      – seat being claimed (non-owning back-reference).
//  Status      – PENDING, CONFIRMED or CANCELLED.
//  AmountCents – price charged for the seat.
//  TicketToken – queue ticket that admitted the buyer (nullable); resolving
//                the reservation frees that ticket's admission slot.
//  ExpiresAt   – payment deadline; a PENDING reservation past it is swept.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
//  CancelledAt – cancellation timestamp (nullable).
type Reservation struct {
	ID          uint64            // reservations.id
	Number      string            // reservations.reservation_number
	UserID      uint64            // reservations.user_id
	ScheduleID  uint64            // reservations.schedule_id
	SeatID      uint64            // reservations.seat_id
	Status      ReservationStatus // reservations.status
	AmountCents uint32            // reservations.amount_cents
	TicketToken *string           // reservations.ticket_token (nullable)
	ExpiresAt   time.Time         // reservations.expires_at
	CreatedAt   time.Time         // reservations.created_at
	UpdatedAt   time.Time         // reservations.updated_at
	CancelledAt *time.Time        // reservations.cancelled_at (nullable)
}

// Resolved reports whether the reservation has reached a terminal state.
func (r *Reservation) Resolved() bool {
	return r.Status == ReservationConfirmed || r.Status == ReservationCancelled
}
