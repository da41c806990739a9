package repository

import (
	"context"
	"database/sql"

	"ticketwave/internal/model"
)

// ShowRepo manages persistence for shows.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo returns a ShowRepo bound to the provided database.
func NewShowRepo(db *sql.DB) *ShowRepo { return &ShowRepo{db: db} }

const showColumns = `id, title, status, sale_status, created_at, updated_at`

func scanShow(row *sql.Row) (*model.Show, error) {
	var s model.Show
	err := row.Scan(&s.ID, &s.Title, &s.Status, &s.SaleStatus, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new show in WAITING state with sales ALLOWED and
// populates the generated ID and timestamps on the given model.
func (r *ShowRepo) Create(ctx context.Context, s *model.Show) error {
	const q = `INSERT INTO shows (title, status, sale_status) VALUES (?, ?, ?)`
	if s.Status == "" {
		s.Status = model.ShowWaiting
	}
	if s.SaleStatus == "" {
		s.SaleStatus = model.SaleAllowed
	}
	res, err := r.db.ExecContext(ctx, q, s.Title, s.Status, s.SaleStatus)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	created, err := r.GetByID(ctx, s.ID)
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

// GetByID fetches a show by primary key.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	const q = `SELECT ` + showColumns + ` FROM shows WHERE id = ?`
	return scanShow(r.db.QueryRowContext(ctx, q, id))
}

// List returns all shows ordered by id. Intended for the public browse
// endpoint; admin detail lives on GetByID.
func (r *ShowRepo) List(ctx context.Context) ([]model.Show, error) {
	const q = `SELECT ` + showColumns + ` FROM shows ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shows []model.Show
	for rows.Next() {
		var s model.Show
		if err := rows.Scan(&s.ID, &s.Title, &s.Status, &s.SaleStatus, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		shows = append(shows, s)
	}
	return shows, rows.Err()
}

// SetStatus moves a show to the given lifecycle status.
func (r *ShowRepo) SetStatus(ctx context.Context, id uint64, status model.ShowStatus) error {
	const q = `UPDATE shows SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrShowNotFound
	}
	return nil
}

// SetSaleStatus flips the admin sale switch for a show.
func (r *ShowRepo) SetSaleStatus(ctx context.Context, id uint64, status model.SaleStatus) error {
	const q = `UPDATE shows SET sale_status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrShowNotFound
	}
	return nil
}

// MarkSoldOutIfComplete flips the show to SOLD_OUT when it is ON_SALE and no
// schedule of it remains in a sellable state. Returns true when the show was
// flipped by this call.
func (r *ShowRepo) MarkSoldOutIfComplete(ctx context.Context, id uint64) (bool, error) {
	const q = `
	UPDATE shows SET status = 'SOLD_OUT', updated_at = UTC_TIMESTAMP()
	WHERE id = ? AND status = 'ON_SALE'
	  AND NOT EXISTS (
	      SELECT 1 FROM schedules
	      WHERE schedules.show_id = shows.id
	        AND schedules.status IN ('BEFORE_OPEN', 'OPEN')
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
