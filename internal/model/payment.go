package model

import "time"

// Payment is one attempt to pay for a reservation. A reservation has at most
// one live (PENDING) payment at a time but keeps every historical attempt, so
// a retried checkout produces multiple rows.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation being paid for.
//  OrderID       – unique order reference sent to the gateway.
//  PaymentKey    – gateway-side key, set on approval (nullable).
//  Method        – payment method chosen by the buyer.
//  Status        – PENDING, COMPLETED, FAILED or CANCELLED.
//  AmountCents   – charged amount.
//  FailureReason – gateway failure or cancellation reason (nullable).
//  RequestedAt   – when the payment was initiated.
//  ApprovedAt    – when the gateway approved it (nullable).
type Payment struct {
	ID            uint64        // payments.id
	ReservationID uint64        // payments.reservation_id
	OrderID       string        // payments.order_id
	PaymentKey    *string       // payments.payment_key (nullable)
	Method        PaymentMethod // payments.method
	Status        PaymentStatus // payments.status
	AmountCents   uint32        // payments.amount_cents
	FailureReason *string       // payments.failure_reason (nullable)
	RequestedAt   time.Time     // payments.requested_at
	ApprovedAt    *time.Time    // payments.approved_at (nullable)
}

// Final reports whether the payment can no longer change state.
func (p *Payment) Final() bool {
	return p.Status != PaymentPending
}
