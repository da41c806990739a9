package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ticketwave/internal/model"
)

// Ticket records are kept around for a day so buyers can poll the outcome of
// an EXPIRED or COMPLETED ticket before the key disappears.
const ticketRetention = 24 * time.Hour

// Queue holds the virtual-queue state for all schedules. Per schedule it
// maintains:
//
//	queue:{sid}:seq      – monotonically increasing sequence counter (INCR)
//	queue:{sid}:waiting  – zset of waiting tokens scored by sequence
//	queue:{sid}:active   – set of tokens currently holding an admission slot
//	queue:ticket:{token} – JSON ticket record
//
// The zset score is the assigned sequence, so ZPOPMIN always yields the
// earliest arrival and ZRANK gives a buyer's live position.
type Queue struct {
	rdb *redis.Client
}

// NewQueue returns a Queue store bound to the given redis client.
func NewQueue(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

func seqKey(scheduleID uint64) string     { return fmt.Sprintf("queue:%d:seq", scheduleID) }
func waitingKey(scheduleID uint64) string { return fmt.Sprintf("queue:%d:waiting", scheduleID) }
func activeKey(scheduleID uint64) string  { return fmt.Sprintf("queue:%d:active", scheduleID) }
func ticketKey(token string) string       { return fmt.Sprintf("queue:ticket:%s", token) }

// NextSequence atomically assigns the next FIFO sequence for a schedule.
func (q *Queue) NextSequence(ctx context.Context, scheduleID uint64) (int64, error) {
	return q.rdb.Incr(ctx, seqKey(scheduleID)).Result()
}

// SaveTicket persists the ticket record, overwriting any previous state.
func (q *Queue) SaveTicket(ctx context.Context, t *model.QueueTicket) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return q.rdb.Set(ctx, ticketKey(t.Token), raw, ticketRetention).Err()
}

// Ticket loads a ticket by token. It returns (nil, nil) when no record
// exists, leaving not-found classification to the caller.
func (q *Queue) Ticket(ctx context.Context, token string) (*model.QueueTicket, error) {
	raw, err := q.rdb.Get(ctx, ticketKey(token)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t model.QueueTicket
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// PushWaiting appends the token to the schedule's waiting zset at its
// sequence position.
func (q *Queue) PushWaiting(ctx context.Context, scheduleID uint64, token string, sequence int64) error {
	return q.rdb.ZAdd(ctx, waitingKey(scheduleID), redis.Z{Score: float64(sequence), Member: token}).Err()
}

// PopMinWaiting removes and returns the waiting token with the smallest
// sequence, or "" when no ticket is waiting.
func (q *Queue) PopMinWaiting(ctx context.Context, scheduleID uint64) (string, error) {
	zs, err := q.rdb.ZPopMin(ctx, waitingKey(scheduleID), 1).Result()
	if err != nil {
		return "", err
	}
	if len(zs) == 0 {
		return "", nil
	}
	token, _ := zs[0].Member.(string)
	return token, nil
}

// RemoveWaiting drops a token from the waiting zset (used when a WAITING
// ticket is expired by an admin cascade).
func (q *Queue) RemoveWaiting(ctx context.Context, scheduleID uint64, token string) error {
	return q.rdb.ZRem(ctx, waitingKey(scheduleID), token).Err()
}

// WaitingRank returns the zero-based position of the token among waiting
// tickets, or -1 when the token is not waiting.
func (q *Queue) WaitingRank(ctx context.Context, scheduleID uint64, token string) (int64, error) {
	rank, err := q.rdb.ZRank(ctx, waitingKey(scheduleID), token).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return rank, nil
}

// AddActive marks the token as holding one admission slot.
func (q *Queue) AddActive(ctx context.Context, scheduleID uint64, token string) error {
	return q.rdb.SAdd(ctx, activeKey(scheduleID), token).Err()
}

// RemoveActive frees the token's admission slot.
func (q *Queue) RemoveActive(ctx context.Context, scheduleID uint64, token string) error {
	return q.rdb.SRem(ctx, activeKey(scheduleID), token).Err()
}

// ActiveTokens lists every token currently counted against the schedule's
// admission capacity.
func (q *Queue) ActiveTokens(ctx context.Context, scheduleID uint64) ([]string, error) {
	return q.rdb.SMembers(ctx, activeKey(scheduleID)).Result()
}

// Purge drops all queue state for a schedule. Used by the admin cascade when
// a schedule is force-cancelled. It returns the tokens that were still
// waiting or active so the caller can expire their ticket records.
func (q *Queue) Purge(ctx context.Context, scheduleID uint64) ([]string, error) {
	waiting, err := q.rdb.ZRange(ctx, waitingKey(scheduleID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	active, err := q.rdb.SMembers(ctx, activeKey(scheduleID)).Result()
	if err != nil {
		return nil, err
	}

	pipe := q.rdb.TxPipeline()
	pipe.Del(ctx, waitingKey(scheduleID))
	pipe.Del(ctx, activeKey(scheduleID))
	pipe.Del(ctx, seqKey(scheduleID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return append(waiting, active...), nil
}
