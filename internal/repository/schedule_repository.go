package repository

import (
	"context"
	"database/sql"

	"ticketwave/internal/model"
)

// ScheduleRepo manages persistence for schedules. A schedule's seats are
// created together with it inside one transaction; capacity is derived from
// the generated seat count and never changes afterwards.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo returns a ScheduleRepo bound to the provided database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

const scheduleColumns = `id, show_id, starts_at, status, capacity, created_at, updated_at`

func scanSchedule(sc interface{ Scan(...any) error }) (*model.Schedule, error) {
	var s model.Schedule
	err := sc.Scan(&s.ID, &s.ShowID, &s.StartsAt, &s.Status, &s.Capacity, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID fetches a schedule by primary key.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	const q = `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ?`
	return scanSchedule(r.db.QueryRowContext(ctx, q, id))
}

// GetWithShow fetches a schedule joined with its show in one round trip.
// The sale gate runs this on every admission-path request.
func (r *ScheduleRepo) GetWithShow(ctx context.Context, id uint64) (*model.Schedule, *model.Show, error) {
	const q = `
	SELECT sc.id, sc.show_id, sc.starts_at, sc.status, sc.capacity, sc.created_at, sc.updated_at,
	       sh.id, sh.title, sh.status, sh.sale_status, sh.created_at, sh.updated_at
	FROM schedules sc
	JOIN shows sh ON sh.id = sc.show_id
	WHERE sc.id = ?`

	var sc model.Schedule
	var sh model.Show
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&sc.ID, &sc.ShowID, &sc.StartsAt, &sc.Status, &sc.Capacity, &sc.CreatedAt, &sc.UpdatedAt,
		&sh.ID, &sh.Title, &sh.Status, &sh.SaleStatus, &sh.CreatedAt, &sh.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &sc, &sh, nil
}

// ListByShow returns all schedules of a show ordered by start time.
func (r *ScheduleRepo) ListByShow(ctx context.Context, showID uint64) ([]model.Schedule, error) {
	const q = `SELECT ` + scheduleColumns + ` FROM schedules WHERE show_id = ? ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Schedule
	for rows.Next() {
		var s model.Schedule
		if err := rows.Scan(&s.ID, &s.ShowID, &s.StartsAt, &s.Status, &s.Capacity, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListOpenIDs returns the ids of all schedules currently OPEN. The sweep
// iterates this set on every pass.
func (r *ScheduleRepo) ListOpenIDs(ctx context.Context) ([]uint64, error) {
	const q = `SELECT id FROM schedules WHERE status = 'OPEN'`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateWithSeats inserts a schedule and generates its seat grid (rows x
// seatsPerRow, all priced at priceCents) inside one transaction. Row labels
// are A, B, C... following the venue convention. Capacity is set to the
// number of generated seats.
func (r *ScheduleRepo) CreateWithSeats(ctx context.Context, s *model.Schedule, rowCount, seatsPerRow uint32, priceCents uint32) error {
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

	s.Capacity = rowCount * seatsPerRow
	if s.Status == "" {
		s.Status = model.ScheduleBeforeOpen
	}
	const ins = `INSERT INTO schedules (show_id, starts_at, status, capacity) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins, s.ShowID, s.StartsAt.UTC(), s.Status, s.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)

	const seatIns = `INSERT INTO seats (schedule_id, row_label, seat_number, price_cents, status) VALUES (?, ?, ?, ?, 'AVAILABLE')`
	stmt, err := tx.PrepareContext(ctx, seatIns)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for row := uint32(0); row < rowCount; row++ {
		label := rowLabel(row)
		for n := uint32(1); n <= seatsPerRow; n++ {
			if _, err := stmt.ExecContext(ctx, s.ID, label, n, priceCents); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// rowLabel converts a zero-based row index to a spreadsheet-style label
// (A..Z, AA, AB, ...).
func rowLabel(i uint32) string {
	label := ""
	n := i
	for {
		label = string(rune('A'+n%26)) + label
		if n < 26 {
			break
		}
		n = n/26 - 1
	}
	return label
}

// SetStatus moves a schedule to the given status when it is currently in one
// of the allowed source states. Returns ErrStateChanged when the guard
// matched no row, so callers can distinguish a lost race from a missing row.
func (r *ScheduleRepo) SetStatus(ctx context.Context, id uint64, to model.ScheduleStatus, from ...model.ScheduleStatus) error {
	q := `UPDATE schedules SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	args := []any{to, id}
	if len(from) > 0 {
		q += ` AND status IN (?` + repeat(",?", len(from)-1) + `)`
		for _, f := range from {
			args = append(args, f)
		}
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrStateChanged
	}
	return nil
}

// MarkSoldOutIfFull flips an OPEN schedule to SOLD_OUT when no seat remains
// AVAILABLE. Returns true when the schedule was flipped by this call.
func (r *ScheduleRepo) MarkSoldOutIfFull(ctx context.Context, id uint64) (bool, error) {
	const q = `
	UPDATE schedules SET status = 'SOLD_OUT', updated_at = UTC_TIMESTAMP()
	WHERE id = ? AND status = 'OPEN'
	  AND NOT EXISTS (
	      SELECT 1 FROM seats WHERE seats.schedule_id = schedules.id AND seats.status = 'AVAILABLE'
	  )`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// repeat returns s repeated n times; used to build IN (...) placeholders.
func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
