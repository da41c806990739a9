package repository

import (
	"context"
	"database/sql"
	"time"

	"ticketwave/internal/model"
)

// ReservationRepo manages persistence for reservations. Every state
// transition that also moves a seat (create, confirm, cancel) runs inside a
// repository-owned transaction so the pair is atomic: either both rows move
// or neither does.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the provided database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, reservation_number, user_id, schedule_id, seat_id, status, amount_cents, ticket_token, expires_at, created_at, updated_at, cancelled_at`

func scanReservation(sc interface{ Scan(...any) error }) (*model.Reservation, error) {
	var r model.Reservation
	var token sql.NullString
	var cancelled sql.NullTime
	err := sc.Scan(&r.ID, &r.Number, &r.UserID, &r.ScheduleID, &r.SeatID, &r.Status,
		&r.AmountCents, &token, &r.ExpiresAt, &r.CreatedAt, &r.UpdatedAt, &cancelled)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	if token.Valid {
		r.TicketToken = &token.String
	}
	if cancelled.Valid {
		t := cancelled.Time
		r.CancelledAt = &t
	}
	return &r, nil
}

// GetByID fetches a reservation by primary key.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	return scanReservation(r.db.QueryRowContext(ctx, q, id))
}

// ListByUser returns all reservations of a user, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// CreateWithSeat atomically moves the seat LOCKED -> RESERVED for the given
// lock holder and inserts the PENDING reservation. The seat must belong to
// the reservation's schedule; a seat ID from another schedule is
// ErrSeatNotFound. The seat's price is read inside the transaction and
// becomes the reservation amount. Returns ErrStateChanged when the seat is
// no longer LOCKED by that holder, which happens when the lock expired or
// another transition won the race.
func (r *ReservationRepo) CreateWithSeat(ctx context.Context, res *model.Reservation, holder string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const move = `
	UPDATE seats SET status = 'RESERVED', updated_at = UTC_TIMESTAMP()
	WHERE id = ? AND schedule_id = ? AND status = 'LOCKED' AND lock_owner = ?`
	moved, err := tx.ExecContext(ctx, move, res.SeatID, res.ScheduleID, holder)
	if err != nil {
		return err
	}
	n, err := moved.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		const exists = `SELECT 1 FROM seats WHERE id = ? AND schedule_id = ?`
		var one int
		if err := tx.QueryRowContext(ctx, exists, res.SeatID, res.ScheduleID).Scan(&one); err != nil {
			if err == sql.ErrNoRows {
				return ErrSeatNotFound
			}
			return err
		}
		return ErrStateChanged
	}

	const price = `SELECT price_cents FROM seats WHERE id = ?`
	if err := tx.QueryRowContext(ctx, price, res.SeatID).Scan(&res.AmountCents); err != nil {
		return err
	}

	const ins = `
	INSERT INTO reservations (reservation_number, user_id, schedule_id, seat_id, status, amount_cents, ticket_token, expires_at)
	VALUES (?, ?, ?, ?, 'PENDING', ?, ?, ?)`
	var token any
	if res.TicketToken != nil {
		token = *res.TicketToken
	}
	inserted, err := tx.ExecContext(ctx, ins, res.Number, res.UserID, res.ScheduleID, res.SeatID,
		res.AmountCents, token, res.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := inserted.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.Status = model.ReservationPending

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ConfirmWithSeat moves a PENDING reservation to CONFIRMED and its seat
// RESERVED -> SOLD in one transaction. The call is idempotent: confirming an
// already-CONFIRMED reservation returns (reservation, false, nil) without
// touching anything. Confirming a CANCELLED reservation returns
// ErrStateChanged because the seat has already been released.
func (r *ReservationRepo) ConfirmWithSeat(ctx context.Context, id uint64) (*model.Reservation, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	res, err := scanReservation(tx.QueryRowContext(ctx, sel, id))
	if err != nil {
		return nil, false, err
	}
	switch res.Status {
	case model.ReservationConfirmed:
		return res, false, nil
	case model.ReservationCancelled:
		return res, false, ErrStateChanged
	}

	const upd = `UPDATE reservations SET status = 'CONFIRMED', updated_at = UTC_TIMESTAMP() WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, id); err != nil {
		return nil, false, err
	}

	const seat = `
	UPDATE seats SET status = 'SOLD', lock_owner = NULL, lock_expires_at = NULL, updated_at = UTC_TIMESTAMP()
	WHERE id = ? AND status = 'RESERVED'`
	moved, err := tx.ExecContext(ctx, seat, res.SeatID)
	if err != nil {
		return nil, false, err
	}
	n, err := moved.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, ErrStateChanged
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	res.Status = model.ReservationConfirmed
	return res, true, nil
}

// CancelWithSeat moves a reservation to CANCELLED and returns its seat to
// AVAILABLE in one transaction. PENDING reservations can always be
// cancelled; CONFIRMED ones only when allowConfirmed is set (admin
// overrides). Cancelling an already-CANCELLED reservation returns
// (reservation, false, nil) so retries and duplicate callbacks stay
// harmless.
func (r *ReservationRepo) CancelWithSeat(ctx context.Context, id uint64, allowConfirmed bool) (*model.Reservation, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ? FOR UPDATE`
	res, err := scanReservation(tx.QueryRowContext(ctx, sel, id))
	if err != nil {
		return nil, false, err
	}
	switch res.Status {
	case model.ReservationCancelled:
		return res, false, nil
	case model.ReservationConfirmed:
		if !allowConfirmed {
			return res, false, ErrStateChanged
		}
	}

	now := time.Now().UTC()
	const upd = `
	UPDATE reservations SET status = 'CANCELLED', cancelled_at = ?, updated_at = UTC_TIMESTAMP()
	WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, now, id); err != nil {
		return nil, false, err
	}

	// A RESERVED or SOLD seat goes back on sale; nothing to do when the
	// sweep released it already.
	const seat = `
	UPDATE seats SET status = 'AVAILABLE', lock_owner = NULL, lock_expires_at = NULL, updated_at = UTC_TIMESTAMP()
	WHERE id = ? AND status IN ('RESERVED', 'SOLD')`
	if _, err := tx.ExecContext(ctx, seat, res.SeatID); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	res.Status = model.ReservationCancelled
	res.CancelledAt = &now
	return res, true, nil
}

// ListExpiredPending returns PENDING reservations whose payment deadline has
// passed, capped so a single sweep pass stays bounded.
func (r *ReservationRepo) ListExpiredPending(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	WHERE status = 'PENDING' AND expires_at < ? LIMIT 100`
	rows, err := r.db.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// ListPendingBySchedule returns PENDING reservations on a schedule; the
// admin schedule-cancel cascade cancels each of them.
func (r *ReservationRepo) ListPendingBySchedule(ctx context.Context, scheduleID uint64) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
	WHERE schedule_id = ? AND status = 'PENDING'`
	rows, err := r.db.QueryContext(ctx, q, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
