package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketwave/internal/model"
)

func newTestAdmission(capacity int) (*Admission, *fakeQueueStore, *time.Time) {
	store := newFakeQueueStore()
	adm := NewAdmission(store, capacity, 5*time.Minute)
	clock := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	adm.now = func() time.Time { return clock }
	return adm, store, &clock
}

func TestEnqueue_AssignsFIFOPositions(t *testing.T) {
	adm, _, _ := newTestAdmission(10)
	ctx := context.Background()

	t1, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	t2, err := adm.Enqueue(ctx, 1, 101)
	require.NoError(t, err)
	t3, err := adm.Enqueue(ctx, 1, 102)
	require.NoError(t, err)

	assert.Less(t, t1.Sequence, t2.Sequence)
	assert.Less(t, t2.Sequence, t3.Sequence)

	_, pos, err := adm.Poll(ctx, t3.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)
}

func TestPromote_HonorsCapacityAndOrder(t *testing.T) {
	adm, _, _ := newTestAdmission(2)
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 5; i++ {
		tk, err := adm.Enqueue(ctx, 1, uint64(100+i))
		require.NoError(t, err)
		tokens = append(tokens, tk.Token)
	}

	promoted, err := adm.Promote(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)

	first, _, err := adm.Poll(ctx, tokens[0])
	require.NoError(t, err)
	assert.Equal(t, model.TicketReady, first.Status)
	require.NotNil(t, first.ExpiresAt)

	second, _, err := adm.Poll(ctx, tokens[1])
	require.NoError(t, err)
	assert.Equal(t, model.TicketReady, second.Status)

	third, pos, err := adm.Poll(ctx, tokens[2])
	require.NoError(t, err)
	assert.Equal(t, model.TicketWaiting, third.Status)
	assert.Equal(t, int64(0), pos)

	// Capacity already full: another pass promotes nobody.
	promoted, err = adm.Promote(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, promoted)
}

func TestPoll_ExpiresLapsedReadyTicket(t *testing.T) {
	adm, _, clock := newTestAdmission(1)
	ctx := context.Background()

	tk, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	_, err = adm.Promote(ctx, 1)
	require.NoError(t, err)

	*clock = clock.Add(6 * time.Minute)

	got, pos, err := adm.Poll(ctx, tk.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketExpired, got.Status)
	assert.Equal(t, int64(-1), pos)
}

func TestRequireReady_RejectsWaitingAndLapsed(t *testing.T) {
	adm, _, clock := newTestAdmission(1)
	ctx := context.Background()

	waiting, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	_, err = adm.RequireReady(ctx, waiting.Token)
	assert.ErrorIs(t, err, ErrTicketNotReady)

	_, err = adm.Promote(ctx, 1)
	require.NoError(t, err)
	got, err := adm.RequireReady(ctx, waiting.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketReady, got.Status)

	*clock = clock.Add(time.Hour)
	_, err = adm.RequireReady(ctx, waiting.Token)
	assert.ErrorIs(t, err, ErrTicketExpired)

	_, err = adm.RequireReady(ctx, "no-such-token")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestRequireReady_DeadlineBoundary(t *testing.T) {
	adm, _, clock := newTestAdmission(1)
	ctx := context.Background()

	tk, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	_, err = adm.Promote(ctx, 1)
	require.NoError(t, err)

	ready, err := adm.RequireReady(ctx, tk.Token)
	require.NoError(t, err)
	require.NotNil(t, ready.ExpiresAt)

	// The deadline itself is still inside the consumption window.
	*clock = *ready.ExpiresAt
	got, err := adm.RequireReady(ctx, tk.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketReady, got.Status)

	// One nanosecond past and the ticket is gone for good.
	*clock = clock.Add(time.Nanosecond)
	_, err = adm.RequireReady(ctx, tk.Token)
	assert.ErrorIs(t, err, ErrTicketExpired)

	got, _, err = adm.Poll(ctx, tk.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketExpired, got.Status)
}

func TestComplete_HoldsSlotUntilResolve(t *testing.T) {
	adm, _, _ := newTestAdmission(1)
	ctx := context.Background()

	first, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	second, err := adm.Enqueue(ctx, 1, 101)
	require.NoError(t, err)

	_, err = adm.Promote(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, adm.Complete(ctx, first.Token))

	// COMPLETED still occupies the slot: the second buyer stays WAITING.
	promoted, err := adm.Promote(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, promoted)

	require.NoError(t, adm.Resolve(ctx, first.Token))

	promoted, err = adm.Promote(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	got, _, err := adm.Poll(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketReady, got.Status)
}

func TestResolve_UnknownTokenIsNoOp(t *testing.T) {
	adm, _, _ := newTestAdmission(1)
	assert.NoError(t, adm.Resolve(context.Background(), "aged-out"))
}

func TestExpire_FreesSlotForNextBuyer(t *testing.T) {
	adm, _, _ := newTestAdmission(1)
	ctx := context.Background()

	first, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	second, err := adm.Enqueue(ctx, 1, 101)
	require.NoError(t, err)

	_, err = adm.Promote(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, adm.Expire(ctx, first.Token))

	promoted, err := adm.Promote(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	got, _, err := adm.Poll(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketReady, got.Status)
}

func TestAbandon_WaitingTicketLeavesQueue(t *testing.T) {
	adm, _, _ := newTestAdmission(1)
	ctx := context.Background()

	first, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	second, err := adm.Enqueue(ctx, 1, 101)
	require.NoError(t, err)

	require.NoError(t, adm.Abandon(ctx, first.Token))

	got, _, err := adm.Poll(ctx, first.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketExpired, got.Status)

	// The buyer behind moves to the front of the queue.
	_, pos, err := adm.Poll(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}

func TestAbandon_ReadyTicketFreesSlot(t *testing.T) {
	adm, _, _ := newTestAdmission(1)
	ctx := context.Background()

	first, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	second, err := adm.Enqueue(ctx, 1, 101)
	require.NoError(t, err)
	_, err = adm.Promote(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, adm.Abandon(ctx, first.Token))

	promoted, err := adm.Promote(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	got, _, err := adm.Poll(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketReady, got.Status)
}

func TestAbandon_ResolvedTicketIsNoOp(t *testing.T) {
	adm, _, _ := newTestAdmission(1)
	ctx := context.Background()

	tk, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	_, err = adm.Promote(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, adm.Complete(ctx, tk.Token))

	// A ticket already carrying a reservation is settled by the
	// reservation outcome, not by leaving the queue.
	require.NoError(t, adm.Abandon(ctx, tk.Token))

	got, _, err := adm.Poll(ctx, tk.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketCompleted, got.Status)

	err = adm.Abandon(ctx, "no-such-token")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestPurgeSchedule_ExpiresEveryTicket(t *testing.T) {
	adm, store, _ := newTestAdmission(1)
	ctx := context.Background()

	ready, err := adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err)
	waiting, err := adm.Enqueue(ctx, 1, 101)
	require.NoError(t, err)
	_, err = adm.Promote(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, adm.PurgeSchedule(ctx, 1))

	for _, token := range []string{ready.Token, waiting.Token} {
		got, _, err := adm.Poll(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, model.TicketExpired, got.Status)
	}

	active, err := store.ActiveTokens(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)
}
