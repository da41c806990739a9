package repository

import (
	"context"
	"database/sql"

	"ticketwave/internal/model"
)

// AdminLogRepo appends audit records for privileged overrides. The table is
// append-only; there is deliberately no update or delete method.
type AdminLogRepo struct {
	db *sql.DB
}

// NewAdminLogRepo returns an AdminLogRepo bound to the provided database.
func NewAdminLogRepo(db *sql.DB) *AdminLogRepo { return &AdminLogRepo{db: db} }

// Create appends an audit record and populates its generated ID.
func (r *AdminLogRepo) Create(ctx context.Context, l *model.AdminLog) error {
	const q = `
	INSERT INTO admin_logs (admin_id, action, target_type, target_id, detail)
	VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, l.AdminID, l.Action, l.TargetType, l.TargetID, l.Detail)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// ListRecent returns the newest audit records up to the given limit.
func (r *AdminLogRepo) ListRecent(ctx context.Context, limit int) ([]model.AdminLog, error) {
	const q = `
	SELECT id, admin_id, action, target_type, target_id, detail, created_at
	FROM admin_logs ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AdminLog
	for rows.Next() {
		var l model.AdminLog
		if err := rows.Scan(&l.ID, &l.AdminID, &l.Action, &l.TargetType, &l.TargetID, &l.Detail, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
