package model

import "time"

// QueueTicket is a buyer's position in the virtual queue for a schedule.
// Sequence is assigned atomically per schedule and defines the FIFO order;
// promotion from WAITING to READY always honors strictly increasing
// sequence. Tickets live in redis only, keyed by their opaque token.
type QueueTicket struct {
	Token      string            `json:"token"`
	ScheduleID uint64            `json:"schedule_id"`
	UserID     uint64            `json:"user_id"`
	Status     QueueTicketStatus `json:"status"`
	Sequence   int64             `json:"sequence"`
	IssuedAt   time.Time         `json:"issued_at"`
	ReadyAt    *time.Time        `json:"ready_at,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
}

// ReadyExpired reports whether a READY ticket has outlived its consumption
// deadline at the given instant. Tickets in other states never expire here;
// WAITING tickets wait indefinitely and COMPLETED tickets are resolved by
// their reservation.
func (t *QueueTicket) ReadyExpired(now time.Time) bool {
	return t.Status == TicketReady && t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// Active reports whether the ticket occupies one unit of the admission
// capacity: READY tickets hold a slot until consumed or expired, and
// COMPLETED tickets hold it until their reservation resolves.
func (t *QueueTicket) Active() bool {
	return t.Status == TicketReady || t.Status == TicketCompleted
}
