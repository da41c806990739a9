package model

import "time"

// AdminLog is an audit record of a privileged override applied to a
// reservation, seat, schedule or show. Rows are append-only.
type AdminLog struct {
	ID         uint64          // admin_logs.id
	AdminID    uint64          // admin_logs.admin_id
	Action     AdminActionType // admin_logs.action
	TargetType string          // admin_logs.target_type (RESERVATION, SCHEDULE, SHOW, SEAT)
	TargetID   uint64          // admin_logs.target_id
	Detail     string          // admin_logs.detail (free-form context)
	CreatedAt  time.Time       // admin_logs.created_at
}
