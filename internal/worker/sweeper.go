package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"ticketwave/internal/engine"
)

// OpenScheduleLister enumerates the schedules the full sweep covers.
// *repository.ScheduleRepo satisfies it.
type OpenScheduleLister interface {
	ListOpenIDs(ctx context.Context) ([]uint64, error)
}

// Sweeper executes sweep tasks against the engine.
type Sweeper struct {
	admission    *engine.Admission
	locks        *engine.LockManager
	reservations *engine.Reservations
	payments     *engine.Payments
	schedules    OpenScheduleLister
}

// NewSweeper wires a sweeper over the engine services.
func NewSweeper(admission *engine.Admission, locks *engine.LockManager,
	reservations *engine.Reservations, payments *engine.Payments,
	schedules OpenScheduleLister) *Sweeper {
	return &Sweeper{
		admission:    admission,
		locks:        locks,
		reservations: reservations,
		payments:     payments,
		schedules:    schedules,
	}
}

// HandleScheduleSweep runs one sweep pass over a single schedule.
func (s *Sweeper) HandleScheduleSweep(ctx context.Context, t *asynq.Task) error {
	var payload ScheduleSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	return s.sweepSchedule(ctx, payload.ScheduleID)
}

// HandleFullSweep expires overdue reservations globally, then sweeps every
// OPEN schedule.
func (s *Sweeper) HandleFullSweep(ctx context.Context, t *asynq.Task) error {
	if err := s.expireReservations(ctx); err != nil {
		return err
	}
	ids, err := s.schedules.ListOpenIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.sweepSchedule(ctx, id); err != nil {
			slog.Error("schedule sweep failed", "schedule_id", id, "error", err)
		}
	}
	return nil
}

// sweepSchedule releases the schedule's expired seat locks, then promotes
// waiting buyers into whatever slots are free. Release runs first so a
// just-freed seat is visible to the buyer promoted in the same pass.
func (s *Sweeper) sweepSchedule(ctx context.Context, scheduleID uint64) error {
	released, err := s.locks.ReleaseExpired(ctx, scheduleID)
	if err != nil {
		return err
	}
	promoted, err := s.admission.Promote(ctx, scheduleID)
	if err != nil {
		return err
	}
	if released > 0 || promoted > 0 {
		slog.Info("schedule swept",
			"schedule_id", scheduleID, "locks_released", released, "tickets_promoted", promoted)
	}
	return nil
}

// expireReservations cancels PENDING reservations past their payment
// deadline and settles their live payments as CANCELLED.
func (s *Sweeper) expireReservations(ctx context.Context) error {
	cancelled, err := s.reservations.ExpireOverdue(ctx)
	if err != nil {
		return err
	}
	for _, res := range cancelled {
		if err := s.payments.CancelLive(ctx, res.ID, "payment window elapsed"); err != nil {
			slog.Warn("live payment not cancelled after expiry",
				"reservation_id", res.ID, "error", err)
		}
	}
	if len(cancelled) > 0 {
		slog.Info("overdue reservations expired", "count", len(cancelled))
	}
	return nil
}
