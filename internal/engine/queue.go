package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ticketwave/internal/model"
)

// QueueStore is the redis-backed queue state the admission controller runs
// on. *store.Queue satisfies it; tests substitute an in-memory fake.
type QueueStore interface {
	NextSequence(ctx context.Context, scheduleID uint64) (int64, error)
	SaveTicket(ctx context.Context, t *model.QueueTicket) error
	Ticket(ctx context.Context, token string) (*model.QueueTicket, error)
	PushWaiting(ctx context.Context, scheduleID uint64, token string, sequence int64) error
	PopMinWaiting(ctx context.Context, scheduleID uint64) (string, error)
	RemoveWaiting(ctx context.Context, scheduleID uint64, token string) error
	WaitingRank(ctx context.Context, scheduleID uint64, token string) (int64, error)
	AddActive(ctx context.Context, scheduleID uint64, token string) error
	RemoveActive(ctx context.Context, scheduleID uint64, token string) error
	ActiveTokens(ctx context.Context, scheduleID uint64) ([]string, error)
	Purge(ctx context.Context, scheduleID uint64) ([]string, error)
}

// Admission issues and promotes virtual-queue tickets, bounding the number
// of concurrently active buyers per schedule to the configured capacity. A
// ticket is "active" (holds a slot) from promotion to READY until it either
// expires unconsumed or its reservation resolves.
//
// Promotion is strictly FIFO by sequence. Promote is the only place tickets
// move WAITING -> READY; it runs from the sweep worker so concurrent
// request handlers never race on slot accounting.
type Admission struct {
	store    QueueStore
	capacity int
	readyTTL time.Duration
	now      func() time.Time
}

// NewAdmission returns an admission controller with the given per-schedule
// capacity and READY consumption window.
func NewAdmission(store QueueStore, capacity int, readyTTL time.Duration) *Admission {
	return &Admission{
		store:    store,
		capacity: capacity,
		readyTTL: readyTTL,
		now:      time.Now,
	}
}

// Enqueue appends the buyer to the schedule's queue and returns the WAITING
// ticket. The sequence is assigned atomically, so arrival order is total
// even under concurrent entry.
func (a *Admission) Enqueue(ctx context.Context, scheduleID, userID uint64) (*model.QueueTicket, error) {
	seq, err := a.store.NextSequence(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	t := &model.QueueTicket{
		Token:      uuid.New().String(),
		ScheduleID: scheduleID,
		UserID:     userID,
		Status:     model.TicketWaiting,
		Sequence:   seq,
		IssuedAt:   a.now().UTC(),
	}
	if err := a.store.SaveTicket(ctx, t); err != nil {
		return nil, err
	}
	if err := a.store.PushWaiting(ctx, scheduleID, t.Token, seq); err != nil {
		return nil, err
	}
	return t, nil
}

// Poll returns the ticket's current state and, while WAITING, its zero-based
// position in the queue (-1 otherwise). It never blocks: clients poll. A
// READY ticket past its deadline is expired lazily here as well, so an
// unlucky poll between sweeps still sees the truth.
func (a *Admission) Poll(ctx context.Context, token string) (*model.QueueTicket, int64, error) {
	t, err := a.load(ctx, token)
	if err != nil {
		return nil, 0, err
	}
	if t.ReadyExpired(a.now()) {
		if err := a.expire(ctx, t); err != nil {
			return nil, 0, err
		}
	}
	position := int64(-1)
	if t.Status == model.TicketWaiting {
		if position, err = a.store.WaitingRank(ctx, t.ScheduleID, token); err != nil {
			return nil, 0, err
		}
	}
	return t, position, nil
}

// RequireReady loads the ticket and verifies it is READY and within its
// consumption window. The seat-lock phase calls this on every acquire so a
// WAITING or lapsed ticket cannot hold seats.
func (a *Admission) RequireReady(ctx context.Context, token string) (*model.QueueTicket, error) {
	t, err := a.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.ReadyExpired(a.now()) {
		if err := a.expire(ctx, t); err != nil {
			return nil, err
		}
		return nil, ErrTicketExpired
	}
	switch t.Status {
	case model.TicketReady:
		return t, nil
	case model.TicketExpired:
		return nil, ErrTicketExpired
	default:
		return nil, ErrTicketNotReady
	}
}

// Complete marks a READY ticket COMPLETED once its holder created a PENDING
// reservation. The ticket keeps its admission slot until the reservation
// resolves, so the lock phase cannot be oversubscribed.
func (a *Admission) Complete(ctx context.Context, token string) error {
	t, err := a.load(ctx, token)
	if err != nil {
		return err
	}
	if t.Status != model.TicketReady {
		return ErrTicketNotReady
	}
	t.Status = model.TicketCompleted
	return a.store.SaveTicket(ctx, t)
}

// Resolve frees the admission slot of a COMPLETED ticket after its
// reservation reached CONFIRMED or CANCELLED. Unknown tokens are ignored:
// the record may have aged out after a long dispute window.
func (a *Admission) Resolve(ctx context.Context, token string) error {
	t, err := a.store.Ticket(ctx, token)
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	return a.store.RemoveActive(ctx, t.ScheduleID, token)
}

// Expire transitions a READY ticket that was never consumed to EXPIRED and
// frees its slot.
func (a *Admission) Expire(ctx context.Context, token string) error {
	t, err := a.load(ctx, token)
	if err != nil {
		return err
	}
	if t.Status != model.TicketReady {
		return ErrTicketNotReady
	}
	return a.expire(ctx, t)
}

// Abandon lets a buyer leave the queue voluntarily. A WAITING ticket is
// removed from the waiting queue and marked EXPIRED so it never takes a
// slot; a READY one gives up the slot it holds. COMPLETED and EXPIRED
// tickets are left alone.
func (a *Admission) Abandon(ctx context.Context, token string) error {
	t, err := a.load(ctx, token)
	if err != nil {
		return err
	}
	switch t.Status {
	case model.TicketWaiting:
		if err := a.store.RemoveWaiting(ctx, t.ScheduleID, t.Token); err != nil {
			return err
		}
		t.Status = model.TicketExpired
		return a.store.SaveTicket(ctx, t)
	case model.TicketReady:
		return a.expire(ctx, t)
	default:
		return nil
	}
}

// Promote runs one sweep pass for a schedule: first expired READY tickets
// are pruned from the active set, then WAITING tickets are promoted in
// strict sequence order until the active set reaches capacity. It returns
// how many tickets were promoted.
func (a *Admission) Promote(ctx context.Context, scheduleID uint64) (int, error) {
	active, err := a.pruneActive(ctx, scheduleID)
	if err != nil {
		return 0, err
	}

	promoted := 0
	for active < a.capacity {
		token, err := a.store.PopMinWaiting(ctx, scheduleID)
		if err != nil {
			return promoted, err
		}
		if token == "" {
			break
		}
		t, err := a.store.Ticket(ctx, token)
		if err != nil {
			return promoted, err
		}
		if t == nil || t.Status != model.TicketWaiting {
			// Record aged out or the ticket was expired by an admin
			// cascade while still queued; it no longer takes a slot.
			continue
		}
		now := a.now().UTC()
		deadline := now.Add(a.readyTTL)
		t.Status = model.TicketReady
		t.ReadyAt = &now
		t.ExpiresAt = &deadline
		if err := a.store.SaveTicket(ctx, t); err != nil {
			return promoted, err
		}
		if err := a.store.AddActive(ctx, scheduleID, token); err != nil {
			return promoted, err
		}
		active++
		promoted++
	}
	return promoted, nil
}

// PurgeSchedule expires every outstanding ticket of a schedule and drops
// its queue state. Used by the admin force-cancel cascade.
func (a *Admission) PurgeSchedule(ctx context.Context, scheduleID uint64) error {
	tokens, err := a.store.Purge(ctx, scheduleID)
	if err != nil {
		return err
	}
	for _, token := range tokens {
		t, err := a.store.Ticket(ctx, token)
		if err != nil {
			return err
		}
		if t == nil || t.Status == model.TicketExpired {
			continue
		}
		t.Status = model.TicketExpired
		if err := a.store.SaveTicket(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// pruneActive drops stale members from the active set and returns the
// number of slots still held.
func (a *Admission) pruneActive(ctx context.Context, scheduleID uint64) (int, error) {
	tokens, err := a.store.ActiveTokens(ctx, scheduleID)
	if err != nil {
		return 0, err
	}
	held := 0
	for _, token := range tokens {
		t, err := a.store.Ticket(ctx, token)
		if err != nil {
			return 0, err
		}
		if t == nil {
			if err := a.store.RemoveActive(ctx, scheduleID, token); err != nil {
				return 0, err
			}
			continue
		}
		if t.ReadyExpired(a.now()) {
			if err := a.expire(ctx, t); err != nil {
				return 0, err
			}
			continue
		}
		if !t.Active() {
			if err := a.store.RemoveActive(ctx, scheduleID, token); err != nil {
				return 0, err
			}
			continue
		}
		held++
	}
	return held, nil
}

func (a *Admission) expire(ctx context.Context, t *model.QueueTicket) error {
	t.Status = model.TicketExpired
	if err := a.store.SaveTicket(ctx, t); err != nil {
		return err
	}
	return a.store.RemoveActive(ctx, t.ScheduleID, t.Token)
}

func (a *Admission) load(ctx context.Context, token string) (*model.QueueTicket, error) {
	t, err := a.store.Ticket(ctx, token)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTicketNotFound
	}
	return t, nil
}
