package repository

import (
	"context"
	"database/sql"

	"ticketwave/internal/model"
)

// PaymentRepo manages persistence for payments. Rows are append-per-attempt:
// a retried checkout creates a fresh PENDING row while earlier attempts keep
// their terminal state, giving each reservation a full payment history.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, reservation_id, order_id, payment_key, method, status, amount_cents, failure_reason, requested_at, approved_at`

func scanPayment(sc interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	var key, reason sql.NullString
	var approved sql.NullTime
	err := sc.Scan(&p.ID, &p.ReservationID, &p.OrderID, &key, &p.Method, &p.Status,
		&p.AmountCents, &reason, &p.RequestedAt, &approved)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if key.Valid {
		p.PaymentKey = &key.String
	}
	if reason.Valid {
		p.FailureReason = &reason.String
	}
	if approved.Valid {
		t := approved.Time
		p.ApprovedAt = &t
	}
	return &p, nil
}

// Create inserts a PENDING payment attempt and populates the generated ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `
	INSERT INTO payments (reservation_id, order_id, method, status, amount_cents)
	VALUES (?, ?, ?, 'PENDING', ?)`
	res, err := r.db.ExecContext(ctx, q, p.ReservationID, p.OrderID, p.Method, p.AmountCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Status = model.PaymentPending
	return nil
}

// GetByOrderID fetches a payment by its gateway order reference.
func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = ?`
	return scanPayment(r.db.QueryRowContext(ctx, q, orderID))
}

// LiveByReservation returns the reservation's current PENDING payment, or
// (nil, nil) when none is in flight.
func (r *PaymentRepo) LiveByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
	WHERE reservation_id = ? AND status = 'PENDING' ORDER BY id DESC LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, reservationID))
	if err == ErrPaymentNotFound {
		return nil, nil
	}
	return p, err
}

// ListByReservation returns the full payment history of a reservation,
// newest first.
func (r *PaymentRepo) ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// MarkCompleted moves a PENDING payment to COMPLETED and records the gateway
// payment key. Returns false when the payment was already resolved, which
// makes duplicate gateway callbacks no-ops.
func (r *PaymentRepo) MarkCompleted(ctx context.Context, orderID, paymentKey string) (bool, error) {
	const q = `
	UPDATE payments SET status = 'COMPLETED', payment_key = ?, approved_at = UTC_TIMESTAMP()
	WHERE order_id = ? AND status = 'PENDING'`
	return r.resolve(ctx, q, paymentKey, orderID)
}

// MarkFailed moves a PENDING payment to FAILED with the gateway's reason.
func (r *PaymentRepo) MarkFailed(ctx context.Context, orderID, reason string) (bool, error) {
	const q = `
	UPDATE payments SET status = 'FAILED', failure_reason = ?
	WHERE order_id = ? AND status = 'PENDING'`
	return r.resolve(ctx, q, reason, orderID)
}

// MarkCancelled moves a PENDING payment to CANCELLED, recording why (buyer
// cancel, reservation timeout, admin withdrawal).
func (r *PaymentRepo) MarkCancelled(ctx context.Context, orderID, reason string) (bool, error) {
	const q = `
	UPDATE payments SET status = 'CANCELLED', failure_reason = ?
	WHERE order_id = ? AND status = 'PENDING'`
	return r.resolve(ctx, q, reason, orderID)
}

func (r *PaymentRepo) resolve(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
