package repository

import (
	"context"
	"database/sql"
	"time"

	"ticketwave/internal/model"
)

// SeatRepo manages persistence for seats. Status transitions are guarded
// UPDATEs: the WHERE clause names the expected source state (and lock owner
// where relevant) so a lost race surfaces as zero affected rows instead of a
// silent overwrite.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatColumns = `id, schedule_id, row_label, seat_number, price_cents, status, lock_owner, lock_expires_at, created_at, updated_at`

func scanSeat(sc interface{ Scan(...any) error }) (*model.Seat, error) {
	var s model.Seat
	var owner sql.NullString
	var expires sql.NullTime
	err := sc.Scan(&s.ID, &s.ScheduleID, &s.RowLabel, &s.SeatNumber, &s.PriceCents,
		&s.Status, &owner, &expires, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, err
	}
	if owner.Valid {
		s.LockOwner = &owner.String
	}
	if expires.Valid {
		t := expires.Time
		s.LockExpiresAt = &t
	}
	return &s, nil
}

// GetByID fetches a seat by primary key.
func (r *SeatRepo) GetByID(ctx context.Context, id uint64) (*model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE id = ?`
	return scanSeat(r.db.QueryRowContext(ctx, q, id))
}

// ListBySchedule returns every seat of a schedule ordered by row and number,
// for the public seat-map endpoint.
func (r *SeatRepo) ListBySchedule(ctx context.Context, scheduleID uint64) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE schedule_id = ? ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	return seats, rows.Err()
}

// MarkLocked transitions an AVAILABLE seat to LOCKED for the given holder.
// The seat must belong to the given schedule; a seat ID from another
// schedule is ErrSeatNotFound, so an admitted buyer cannot reach across
// sales. Returns ErrStateChanged when the seat was not AVAILABLE anymore,
// which the lock manager reports as a seat conflict.
func (r *SeatRepo) MarkLocked(ctx context.Context, scheduleID, seatID uint64, holder string, expiresAt time.Time) error {
	const q = `
	UPDATE seats
	SET status = 'LOCKED', lock_owner = ?, lock_expires_at = ?, updated_at = UTC_TIMESTAMP()
	WHERE id = ? AND schedule_id = ? AND status = 'AVAILABLE'`
	res, err := r.db.ExecContext(ctx, q, holder, expiresAt.UTC(), seatID, scheduleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if err := r.mustBelong(ctx, scheduleID, seatID); err != nil {
			return err
		}
		return ErrStateChanged
	}
	return nil
}

// mustBelong returns ErrSeatNotFound unless the seat exists within the
// schedule.
func (r *SeatRepo) mustBelong(ctx context.Context, scheduleID, seatID uint64) error {
	const q = `SELECT 1 FROM seats WHERE id = ? AND schedule_id = ?`
	var one int
	if err := r.db.QueryRowContext(ctx, q, seatID, scheduleID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return ErrSeatNotFound
		}
		return err
	}
	return nil
}

// Unlock returns a LOCKED seat held by the given owner to AVAILABLE.
func (r *SeatRepo) Unlock(ctx context.Context, seatID uint64, holder string) error {
	const q = `
	UPDATE seats
	SET status = 'AVAILABLE', lock_owner = NULL, lock_expires_at = NULL, updated_at = UTC_TIMESTAMP()
	WHERE id = ? AND status = 'LOCKED' AND lock_owner = ?`
	res, err := r.db.ExecContext(ctx, q, seatID, holder)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := r.GetByID(ctx, seatID); getErr != nil {
			return getErr
		}
		return ErrStateChanged
	}
	return nil
}

// ExtendLock pushes the lock deadline of a LOCKED seat held by the given
// owner. The redis key is the authority on expiry; this keeps the row's
// mirror in step for the sweep.
func (r *SeatRepo) ExtendLock(ctx context.Context, seatID uint64, holder string, expiresAt time.Time) error {
	const q = `
	UPDATE seats SET lock_expires_at = ?, updated_at = UTC_TIMESTAMP()
	WHERE id = ? AND status = 'LOCKED' AND lock_owner = ?`
	res, err := r.db.ExecContext(ctx, q, expiresAt.UTC(), seatID, holder)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateChanged
	}
	return nil
}

// ForceRelease returns a seat to AVAILABLE from any non-AVAILABLE state.
// Used by the expiry sweep and by admin cascades where the normal owner
// guard does not apply.
func (r *SeatRepo) ForceRelease(ctx context.Context, seatID uint64) error {
	const q = `
	UPDATE seats
	SET status = 'AVAILABLE', lock_owner = NULL, lock_expires_at = NULL, updated_at = UTC_TIMESTAMP()
	WHERE id = ? AND status IN ('LOCKED', 'RESERVED', 'SOLD')`
	_, err := r.db.ExecContext(ctx, q, seatID)
	return err
}

// ListExpiredLocks returns seats of a schedule still marked LOCKED whose
// mirrored deadline has passed. The sweep double-checks the redis key before
// releasing each row.
func (r *SeatRepo) ListExpiredLocks(ctx context.Context, scheduleID uint64, now time.Time) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats
	WHERE schedule_id = ? AND status = 'LOCKED' AND lock_expires_at < ? LIMIT 100`
	rows, err := r.db.QueryContext(ctx, q, scheduleID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	return seats, rows.Err()
}

// ListHeldBySchedule returns all seats of a schedule in a non-AVAILABLE
// state. The admin schedule-cancel cascade releases each of them.
func (r *SeatRepo) ListHeldBySchedule(ctx context.Context, scheduleID uint64) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats
	WHERE schedule_id = ? AND status IN ('LOCKED', 'RESERVED', 'SOLD')`
	rows, err := r.db.QueryContext(ctx, q, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	return seats, rows.Err()
}

// CountAvailable returns how many seats of a schedule are still AVAILABLE.
func (r *SeatRepo) CountAvailable(ctx context.Context, scheduleID uint64) (int64, error) {
	const q = `SELECT COUNT(*) FROM seats WHERE schedule_id = ? AND status = 'AVAILABLE'`
	var n int64
	if err := r.db.QueryRowContext(ctx, q, scheduleID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
