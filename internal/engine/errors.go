// Package engine implements the admission and reservation core: the sale
// gate, the virtual-queue admission controller, the seat lock manager, the
// reservation state machine, the payment coordinator and the admin override
// service. Services are stateless; all mutable state lives in MySQL and
// redis. Conflicts and expiries are expected, frequent outcomes under
// contention and are reported as ordinary sentinel errors, not failures.
package engine

import (
	"errors"
	"fmt"
)

// BlockReason says why the sale gate rejected a request.
type BlockReason string

const (
	ReasonShowNotOnSale     BlockReason = "ShowNotOnSale"
	ReasonSaleSuspended     BlockReason = "SaleSuspended"
	ReasonScheduleNotOpen   BlockReason = "ScheduleNotOpen"
	ReasonScheduleCancelled BlockReason = "ScheduleCancelled"
)

// BlockedError is returned by the sale gate when a schedule is not
// admissible. Handlers translate it into an HTTP 403 with the reason.
type BlockedError struct {
	Reason BlockReason
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("sale blocked: %s", e.Reason)
}

// AsBlocked unwraps err into a *BlockedError when possible.
func AsBlocked(err error) (*BlockedError, bool) {
	var be *BlockedError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// ErrTicketNotFound indicates an unknown or already purged queue token.
var ErrTicketNotFound = errors.New("queue ticket not found")

// ErrTicketExpired indicates the ticket's READY window has elapsed.
var ErrTicketExpired = errors.New("queue ticket expired")

// ErrTicketNotReady indicates an operation that requires a READY ticket was
// attempted with a ticket in another state.
var ErrTicketNotReady = errors.New("queue ticket not ready")

// ErrSeatConflict indicates the seat is already LOCKED, RESERVED or SOLD.
// Under contention this is the common case; callers pick another seat.
var ErrSeatConflict = errors.New("seat already held")

// ErrNotLockOwner indicates the caller does not hold the seat's lock.
var ErrNotLockOwner = errors.New("caller is not the lock owner")

// ErrLockExpired indicates the seat lock lapsed before the operation ran.
var ErrLockExpired = errors.New("seat lock expired")

// ErrReservationResolved indicates the reservation already reached a
// terminal state incompatible with the requested transition.
var ErrReservationResolved = errors.New("reservation already resolved")

// ErrPaymentInFlight indicates the reservation already has a PENDING
// payment; the buyer must wait for its outcome or let it resolve.
var ErrPaymentInFlight = errors.New("payment already in flight")

// ErrPaymentFailed indicates the gateway rejected the payment or retries
// were exhausted.
var ErrPaymentFailed = errors.New("payment failed")
