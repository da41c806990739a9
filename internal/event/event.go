// Package event defines the reservation lifecycle messages exchanged over
// the broker, the publisher that emits them, and the background consumer
// that turns confirmations into booking-log entries and entry QR codes.
package event

// ReservationConfirmedEvent is published when a reservation reaches
// CONFIRMED. It carries enough for downstream consumers to log, notify or
// render a ticket without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	Number        string `json:"reservation_number"`
	UserID        uint64 `json:"user_id"`
	ScheduleID    uint64 `json:"schedule_id"`
	SeatID        uint64 `json:"seat_id"`
	AmountCents   uint32 `json:"amount_cents"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// ReservationCancelledEvent is published when a reservation reaches
// CANCELLED, whether by the buyer, a payment failure, the expiry sweep or
// an admin override.
type ReservationCancelledEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	Number        string `json:"reservation_number"`
	UserID        uint64 `json:"user_id"`
	ScheduleID    uint64 `json:"schedule_id"`
	SeatID        uint64 `json:"seat_id"`
	Cause         string `json:"cause"`
	CancelledAt   string `json:"cancelled_at"`
}

const (
	// QueueConfirmed is the broker queue confirmations are published to.
	QueueConfirmed = "reservation.confirmed"
	// QueueCancelled is the broker queue cancellations are published to.
	QueueCancelled = "reservation.cancelled"
)
