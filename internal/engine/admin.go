package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ticketwave/internal/model"
)

// ShowStore is the show repository surface the admin service uses.
type ShowStore interface {
	Create(ctx context.Context, s *model.Show) error
	GetByID(ctx context.Context, id uint64) (*model.Show, error)
	SetStatus(ctx context.Context, id uint64, status model.ShowStatus) error
	SetSaleStatus(ctx context.Context, id uint64, status model.SaleStatus) error
}

// ScheduleAdminStore is the schedule repository surface the admin service
// uses.
type ScheduleAdminStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Schedule, error)
	CreateWithSeats(ctx context.Context, s *model.Schedule, rowCount, seatsPerRow uint32, priceCents uint32) error
	SetStatus(ctx context.Context, id uint64, to model.ScheduleStatus, from ...model.ScheduleStatus) error
}

// HeldSeatLister enumerates the seat and reservation state an admin cascade
// must unwind.
type HeldSeatLister interface {
	ListHeldBySchedule(ctx context.Context, scheduleID uint64) ([]model.Seat, error)
}

// PendingLister enumerates PENDING reservations of a schedule.
type PendingLister interface {
	ListPendingBySchedule(ctx context.Context, scheduleID uint64) ([]model.Reservation, error)
}

// AuditLog records privileged actions. *repository.AdminLogRepo satisfies it.
type AuditLog interface {
	Create(ctx context.Context, l *model.AdminLog) error
	ListRecent(ctx context.Context, limit int) ([]model.AdminLog, error)
}

// Admin implements the privileged overrides: catalog management, sale
// suspension, and force-cancellation of reservations and whole schedules.
// Every override writes an audit entry naming the admin, the target and the
// action taken.
type Admin struct {
	shows        ShowStore
	schedules    ScheduleAdminStore
	seats        HeldSeatLister
	reservations *Reservations
	pending      PendingLister
	payments     *Payments
	admission    *Admission
	locks        *LockManager
	audit        AuditLog
}

// NewAdmin wires the admin service.
func NewAdmin(shows ShowStore, schedules ScheduleAdminStore, seats HeldSeatLister,
	reservations *Reservations, pending PendingLister, payments *Payments,
	admission *Admission, locks *LockManager, audit AuditLog) *Admin {
	return &Admin{
		shows:        shows,
		schedules:    schedules,
		seats:        seats,
		reservations: reservations,
		pending:      pending,
		payments:     payments,
		admission:    admission,
		locks:        locks,
		audit:        audit,
	}
}

// CreateShow registers a new show in WAITING state.
func (a *Admin) CreateShow(ctx context.Context, adminID uint64, title string) (*model.Show, error) {
	s := &model.Show{Title: title}
	if err := a.shows.Create(ctx, s); err != nil {
		return nil, err
	}
	a.record(ctx, adminID, model.ActionCreate, "show", s.ID, fmt.Sprintf("title=%q", title))
	return s, nil
}

// OpenShowSales moves a show to ON_SALE.
func (a *Admin) OpenShowSales(ctx context.Context, adminID, showID uint64) error {
	if err := a.shows.SetStatus(ctx, showID, model.ShowOnSale); err != nil {
		return err
	}
	a.record(ctx, adminID, model.ActionUpdate, "show", showID, "status=ON_SALE")
	return nil
}

// SetShowSaleStatus suspends or resumes sales for a show. Suspension closes
// the gate for new entrants without disturbing buyers already past it.
func (a *Admin) SetShowSaleStatus(ctx context.Context, adminID, showID uint64, status model.SaleStatus) error {
	if err := a.shows.SetSaleStatus(ctx, showID, status); err != nil {
		return err
	}
	a.record(ctx, adminID, model.ActionUpdate, "show", showID, fmt.Sprintf("sale_status=%s", status))
	return nil
}

// AddSchedule creates a BEFORE_OPEN schedule for a show with a fresh seat
// grid of rowCount x seatsPerRow at the given price.
func (a *Admin) AddSchedule(ctx context.Context, adminID, showID uint64, startsAt time.Time,
	rowCount, seatsPerRow, priceCents uint32) (*model.Schedule, error) {
	s := &model.Schedule{ShowID: showID, StartsAt: startsAt.UTC()}
	if err := a.schedules.CreateWithSeats(ctx, s, rowCount, seatsPerRow, priceCents); err != nil {
		return nil, err
	}
	a.record(ctx, adminID, model.ActionCreate, "schedule", s.ID,
		fmt.Sprintf("show_id=%d seats=%dx%d", showID, rowCount, seatsPerRow))
	return s, nil
}

// OpenSchedule moves a BEFORE_OPEN schedule to OPEN, letting the gate admit
// buyers to it.
func (a *Admin) OpenSchedule(ctx context.Context, adminID, scheduleID uint64) error {
	if err := a.schedules.SetStatus(ctx, scheduleID, model.ScheduleOpen, model.ScheduleBeforeOpen); err != nil {
		return err
	}
	a.record(ctx, adminID, model.ActionUpdate, "schedule", scheduleID, "status=OPEN")
	return nil
}

// ForceCancelReservation cancels a reservation regardless of state. A
// reservation whose payment already COMPLETED is recorded as a forced
// withdrawal (refund owed); an unpaid one as a forced cancel. The live or
// completed payment is marked CANCELLED either way.
func (a *Admin) ForceCancelReservation(ctx context.Context, adminID, reservationID uint64, reason string) (*model.Reservation, error) {
	wasConfirmed := false
	if res, err := a.reservations.Get(ctx, reservationID); err == nil {
		wasConfirmed = res.Status == model.ReservationConfirmed
	}

	res, err := a.reservations.ForceCancel(ctx, reservationID, reason)
	if err != nil {
		return nil, err
	}
	if err := a.payments.CancelLive(ctx, reservationID, reason); err != nil {
		slog.Warn("live payment not cancelled on admin override",
			"reservation_id", reservationID, "error", err)
	}

	action := model.ActionForceCancel
	if wasConfirmed {
		action = model.ActionForceWithdrawal
	}
	a.record(ctx, adminID, action, "reservation", reservationID, reason)
	return res, nil
}

// ForceCancelSchedule cancels a schedule and unwinds everything attached to
// it: the queue is purged, PENDING reservations are cancelled, and held
// seats are released. CONFIRMED reservations are left standing; withdrawing
// paid buyers is a per-reservation decision, not a side effect.
func (a *Admin) ForceCancelSchedule(ctx context.Context, adminID, scheduleID uint64, reason string) error {
	if err := a.schedules.SetStatus(ctx, scheduleID, model.ScheduleCancelled); err != nil {
		return err
	}

	if err := a.admission.PurgeSchedule(ctx, scheduleID); err != nil {
		slog.Warn("queue not purged on schedule cancel", "schedule_id", scheduleID, "error", err)
	}

	pending, err := a.pending.ListPendingBySchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	for _, res := range pending {
		if _, err := a.reservations.ForceCancel(ctx, res.ID, reason); err != nil && err != ErrReservationResolved {
			return err
		}
		if err := a.payments.CancelLive(ctx, res.ID, reason); err != nil {
			slog.Warn("live payment not cancelled on schedule cancel",
				"reservation_id", res.ID, "error", err)
		}
	}

	held, err := a.seats.ListHeldBySchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	for _, seat := range held {
		if seat.Status == model.SeatSold {
			continue
		}
		if err := a.locks.ForceRelease(ctx, scheduleID, seat.ID); err != nil {
			return err
		}
	}

	a.record(ctx, adminID, model.ActionForceCancel, "schedule", scheduleID, reason)
	return nil
}

// AuditTrail returns the most recent audit entries.
func (a *Admin) AuditTrail(ctx context.Context, limit int) ([]model.AdminLog, error) {
	return a.audit.ListRecent(ctx, limit)
}

// record writes an audit entry. Audit failures are logged, not propagated;
// the override itself already took effect.
func (a *Admin) record(ctx context.Context, adminID uint64, action model.AdminActionType,
	targetType string, targetID uint64, detail string) {
	entry := &model.AdminLog{
		AdminID:    adminID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	}
	if err := a.audit.Create(ctx, entry); err != nil {
		slog.Error("audit entry not recorded",
			"admin_id", adminID, "action", action, "target", targetType, "error", err)
	}
}
