package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ticketwave/internal/model"
	"ticketwave/internal/repository"
)

// ReservationStore is the subset of the reservation repository the service
// uses.
type ReservationStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error)
	CreateWithSeat(ctx context.Context, res *model.Reservation, holder string) error
	ConfirmWithSeat(ctx context.Context, id uint64) (*model.Reservation, bool, error)
	CancelWithSeat(ctx context.Context, id uint64, allowConfirmed bool) (*model.Reservation, bool, error)
	ListExpiredPending(ctx context.Context, now time.Time) ([]model.Reservation, error)
}

// ScheduleFlagger flips schedule sale state as inventory moves.
// *repository.ScheduleRepo satisfies it.
type ScheduleFlagger interface {
	GetWithShow(ctx context.Context, id uint64) (*model.Schedule, *model.Show, error)
	MarkSoldOutIfFull(ctx context.Context, id uint64) (bool, error)
	SetStatus(ctx context.Context, id uint64, to model.ScheduleStatus, from ...model.ScheduleStatus) error
}

// ShowFlagger flips show-level sale state. *repository.ShowRepo satisfies it.
type ShowFlagger interface {
	MarkSoldOutIfComplete(ctx context.Context, id uint64) (bool, error)
	SetStatus(ctx context.Context, id uint64, status model.ShowStatus) error
}

// TicketResolver is the admission-controller surface the reservation flow
// touches. *Admission satisfies it.
type TicketResolver interface {
	RequireReady(ctx context.Context, token string) (*model.QueueTicket, error)
	Complete(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) error
}

// Notifier publishes reservation lifecycle events. Publishing is
// best-effort: a broker outage must not fail the transition that already
// committed.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, res *model.Reservation)
	ReservationCancelled(ctx context.Context, res *model.Reservation, cause string)
}

// SweepTrigger asks the worker to run an admission sweep for a schedule
// soon, so a freed slot is handed to the next waiting buyer without waiting
// for the periodic pass.
type SweepTrigger func(ctx context.Context, scheduleID uint64) error

// Reservations drives the reservation state machine. Transitions are
// settled in the database by guarded transactional updates; this service
// layers the admission checks, slot accounting, lock lifecycle, sale-state
// flips and event publication around them.
type Reservations struct {
	gate       *Gate
	tickets    TicketResolver
	locks      *LockManager
	store      ReservationStore
	schedules  ScheduleFlagger
	shows      ShowFlagger
	notifier   Notifier
	sweep      SweepTrigger
	paymentTTL time.Duration
	now        func() time.Time
}

// NewReservations wires the reservation service. notifier and sweep may be
// nil; both are optional side channels.
func NewReservations(gate *Gate, tickets TicketResolver, locks *LockManager,
	store ReservationStore, schedules ScheduleFlagger, shows ShowFlagger,
	notifier Notifier, sweep SweepTrigger, paymentTTL time.Duration) *Reservations {
	return &Reservations{
		gate:       gate,
		tickets:    tickets,
		locks:      locks,
		store:      store,
		schedules:  schedules,
		shows:      shows,
		notifier:   notifier,
		sweep:      sweep,
		paymentTTL: paymentTTL,
		now:        time.Now,
	}
}

// newReservationNumber builds the customer-facing reservation number:
// date-scoped with a random suffix, unique for practical purposes.
func newReservationNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return fmt.Sprintf("TW%s-%s", now.UTC().Format("20060102"), suffix)
}

// Create turns a held seat into a PENDING reservation. The caller must pass
// the sale gate, hold a READY queue ticket for the schedule, and own the
// seat's lock (the guarded seat flip enforces ownership). On success the
// ticket is marked COMPLETED, keeping its admission slot until the
// reservation resolves, and the seat lock is stretched to the payment
// deadline so it cannot lapse mid-payment.
func (s *Reservations) Create(ctx context.Context, userID, scheduleID, seatID uint64, token string) (*model.Reservation, error) {
	if _, _, err := s.gate.CheckAdmissible(ctx, scheduleID); err != nil {
		return nil, err
	}
	t, err := s.tickets.RequireReady(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.ScheduleID != scheduleID || t.UserID != userID {
		return nil, ErrTicketNotFound
	}

	now := s.now().UTC()
	deadline := now.Add(s.paymentTTL)
	res := &model.Reservation{
		Number:      newReservationNumber(now),
		UserID:      userID,
		ScheduleID:  scheduleID,
		SeatID:      seatID,
		TicketToken: &token,
		ExpiresAt:   deadline,
	}
	if err := s.store.CreateWithSeat(ctx, res, token); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, ErrLockExpired
		}
		return nil, err
	}

	if err := s.tickets.Complete(ctx, token); err != nil {
		slog.Warn("queue ticket not completed after reservation create",
			"reservation_id", res.ID, "token", token, "error", err)
	}
	if err := s.locks.Extend(ctx, scheduleID, seatID, token, s.paymentTTL); err != nil {
		// The seat row is RESERVED now, so a lapsed key cannot lose the
		// seat; the guarded updates carry the hold from here.
		slog.Warn("seat lock not extended to payment deadline",
			"reservation_id", res.ID, "error", err)
	}
	return res, nil
}

// Get fetches a reservation by ID.
func (s *Reservations) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.store.GetByID(ctx, id)
}

// ListByUser returns a user's reservations, newest first.
func (s *Reservations) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.store.ListByUser(ctx, userID)
}

// Confirm settles a PENDING reservation after successful payment: the seat
// is SOLD, the admission slot is freed, and sold-out state propagates up to
// the schedule and show. Confirming an already-CONFIRMED reservation is a
// no-op; confirming a CANCELLED one fails with ErrReservationResolved.
func (s *Reservations) Confirm(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, changed, err := s.store.ConfirmWithSeat(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return res, ErrReservationResolved
		}
		return nil, err
	}
	if !changed {
		return res, nil
	}

	s.resolveSlot(ctx, res)
	s.propagateSoldOut(ctx, res.ScheduleID)
	if s.notifier != nil {
		s.notifier.ReservationConfirmed(ctx, res)
	}
	return res, nil
}

// Cancel withdraws a PENDING reservation, releasing its seat and admission
// slot. Cancelling an already-CANCELLED reservation is a no-op; a CONFIRMED
// one cannot be cancelled here (admin overrides go through ForceCancel).
func (s *Reservations) Cancel(ctx context.Context, id uint64, cause string) (*model.Reservation, error) {
	return s.cancel(ctx, id, false, cause)
}

// ForceCancel withdraws a reservation in any unresolved-or-CONFIRMED state.
// Admin overrides and payment-failure cascades use it.
func (s *Reservations) ForceCancel(ctx context.Context, id uint64, cause string) (*model.Reservation, error) {
	return s.cancel(ctx, id, true, cause)
}

func (s *Reservations) cancel(ctx context.Context, id uint64, allowConfirmed bool, cause string) (*model.Reservation, error) {
	res, changed, err := s.store.CancelWithSeat(ctx, id, allowConfirmed)
	if err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return res, ErrReservationResolved
		}
		return nil, err
	}
	if !changed {
		return res, nil
	}

	s.resolveSlot(ctx, res)
	s.reopenSale(ctx, res.ScheduleID)
	if s.notifier != nil {
		s.notifier.ReservationCancelled(ctx, res, cause)
	}
	return res, nil
}

// ExpireOverdue cancels PENDING reservations whose payment deadline has
// passed and returns the ones it cancelled. The sweep worker runs it and
// follows up on each cancelled reservation's live payment.
func (s *Reservations) ExpireOverdue(ctx context.Context) ([]model.Reservation, error) {
	overdue, err := s.store.ListExpiredPending(ctx, s.now())
	if err != nil {
		return nil, err
	}
	var cancelled []model.Reservation
	for _, res := range overdue {
		out, err := s.Cancel(ctx, res.ID, "payment window elapsed")
		if err != nil {
			if errors.Is(err, ErrReservationResolved) {
				continue
			}
			return cancelled, err
		}
		cancelled = append(cancelled, *out)
	}
	return cancelled, nil
}

// resolveSlot tears down the per-reservation admission state once the
// reservation reached a final status: the seat-lock key is dropped, the
// queue ticket's slot is freed, and a sweep is requested so the slot is
// re-handed promptly.
func (s *Reservations) resolveSlot(ctx context.Context, res *model.Reservation) {
	if res.TicketToken == nil {
		return
	}
	token := *res.TicketToken
	if err := s.locks.Forget(ctx, res.ScheduleID, res.SeatID, token); err != nil {
		slog.Warn("seat lock key not dropped on resolution",
			"reservation_id", res.ID, "error", err)
	}
	if err := s.tickets.Resolve(ctx, token); err != nil {
		slog.Warn("admission slot not freed on resolution",
			"reservation_id", res.ID, "token", token, "error", err)
	}
	if s.sweep != nil {
		if err := s.sweep(ctx, res.ScheduleID); err != nil {
			slog.Warn("sweep not triggered on resolution",
				"schedule_id", res.ScheduleID, "error", err)
		}
	}
}

// propagateSoldOut flips the schedule to SOLD_OUT when its last seat went,
// and the show when its last schedule did.
func (s *Reservations) propagateSoldOut(ctx context.Context, scheduleID uint64) {
	full, err := s.schedules.MarkSoldOutIfFull(ctx, scheduleID)
	if err != nil {
		slog.Warn("sold-out check failed", "schedule_id", scheduleID, "error", err)
		return
	}
	if !full {
		return
	}
	_, show, err := s.schedules.GetWithShow(ctx, scheduleID)
	if err != nil {
		slog.Warn("sold-out propagation failed", "schedule_id", scheduleID, "error", err)
		return
	}
	if _, err := s.shows.MarkSoldOutIfComplete(ctx, show.ID); err != nil {
		slog.Warn("sold-out propagation failed", "show_id", show.ID, "error", err)
	}
}

// reopenSale puts a SOLD_OUT schedule (and show) back on sale after a seat
// was returned to inventory.
func (s *Reservations) reopenSale(ctx context.Context, scheduleID uint64) {
	err := s.schedules.SetStatus(ctx, scheduleID, model.ScheduleOpen, model.ScheduleSoldOut)
	if errors.Is(err, repository.ErrStateChanged) {
		return
	}
	if err != nil {
		slog.Warn("schedule not reopened", "schedule_id", scheduleID, "error", err)
		return
	}
	_, show, err := s.schedules.GetWithShow(ctx, scheduleID)
	if err != nil {
		slog.Warn("show not reopened", "schedule_id", scheduleID, "error", err)
		return
	}
	if show.Status == model.ShowSoldOut {
		if err := s.shows.SetStatus(ctx, show.ID, model.ShowOnSale); err != nil {
			slog.Warn("show not reopened", "show_id", show.ID, "error", err)
		}
	}
}
