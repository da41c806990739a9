// Package worker runs the background sweeps that keep the engine honest:
// promoting waiting buyers into freed admission slots, releasing expired
// seat locks, and cancelling reservations whose payment window lapsed. The
// sweeps run as asynq tasks, both on a periodic schedule and on demand when
// a slot frees up.
package worker

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// TypeScheduleSweep sweeps a single schedule.
	TypeScheduleSweep = "sweep:schedule"
	// TypeFullSweep sweeps every OPEN schedule.
	TypeFullSweep = "sweep:all"
)

// ScheduleSweepPayload names the schedule a targeted sweep covers.
type ScheduleSweepPayload struct {
	ScheduleID uint64 `json:"schedule_id"`
}

// NewScheduleSweepTask builds a one-off sweep task for a schedule.
func NewScheduleSweepTask(scheduleID uint64) (*asynq.Task, error) {
	payload, err := json.Marshal(ScheduleSweepPayload{ScheduleID: scheduleID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeScheduleSweep, payload), nil
}

// NewFullSweepTask builds the periodic all-schedules sweep task.
func NewFullSweepTask() *asynq.Task {
	return asynq.NewTask(TypeFullSweep, nil)
}

// Enqueuer submits tasks for asynchronous execution. *asynq.Client
// satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TriggerSweep returns an engine.SweepTrigger backed by the asynq client:
// resolving a reservation enqueues a targeted sweep so the freed slot is
// handed on without waiting for the next periodic pass.
func TriggerSweep(client Enqueuer) func(ctx context.Context, scheduleID uint64) error {
	return func(ctx context.Context, scheduleID uint64) error {
		task, err := NewScheduleSweepTask(scheduleID)
		if err != nil {
			return err
		}
		_, err = client.EnqueueContext(ctx, task, asynq.Queue("critical"))
		return err
	}
}
