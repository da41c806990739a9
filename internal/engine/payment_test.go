package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketwave/internal/model"
)

type paymentHarness struct {
	*reservationHarness
	payStore *fakePaymentStore
	gateway  *fakeGateway
	svc      *Payments
}

func newPaymentHarness(t *testing.T) *paymentHarness {
	t.Helper()
	h := &paymentHarness{
		reservationHarness: newReservationHarness(t, testSeat(7, 1)),
		payStore:           newFakePaymentStore(),
		gateway:            &fakeGateway{},
	}
	h.svc = NewPayments(h.payStore, h.reservationHarness.svc, h.gateway, nil, 3, time.Millisecond)
	return h
}

func (h *paymentHarness) pendingReservation(t *testing.T) *model.Reservation {
	t.Helper()
	token := h.admit(t, 100, 7)
	res, err := h.reservationHarness.svc.Create(context.Background(), 100, 1, 7, token)
	require.NoError(t, err)
	return res
}

func TestInitiatePayment_Success(t *testing.T) {
	h := newPaymentHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)

	pay, err := h.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, pay.Status)
	assert.Equal(t, res.AmountCents, pay.AmountCents)
	assert.NotEmpty(t, pay.OrderID)
	assert.Len(t, h.gateway.requests, 1)
}

func TestInitiatePayment_Fail_InvalidMethod(t *testing.T) {
	h := newPaymentHarness(t)
	res := h.pendingReservation(t)

	_, err := h.svc.Initiate(context.Background(), res.ID, model.PaymentMethod("WAMPUM"))
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Empty(t, h.gateway.requests)
}

func TestInitiatePayment_Fail_SecondLiveAttempt(t *testing.T) {
	h := newPaymentHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)

	_, err := h.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)

	_, err = h.svc.Initiate(ctx, res.ID, model.MethodCard)
	assert.ErrorIs(t, err, ErrPaymentInFlight)
}

func TestInitiatePayment_Fail_ReservationResolved(t *testing.T) {
	h := newPaymentHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)
	_, err := h.reservationHarness.svc.Cancel(ctx, res.ID, "cancelled by customer")
	require.NoError(t, err)

	_, err = h.svc.Initiate(ctx, res.ID, model.MethodCard)
	assert.ErrorIs(t, err, ErrReservationResolved)
}

func TestInitiatePayment_GatewayExhaustionCancelsReservation(t *testing.T) {
	h := newPaymentHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)
	h.gateway.err = errors.New("gateway unreachable")

	_, err := h.svc.Initiate(ctx, res.ID, model.MethodCard)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Len(t, h.gateway.requests, 3)

	history, err := h.svc.History(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.PaymentFailed, history[0].Status)

	got, err := h.reservationHarness.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)

	seat, err := h.seats.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, seat.Status)
}

func TestHandleCallback_ApprovedConfirmsReservation(t *testing.T) {
	h := newPaymentHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)
	pay, err := h.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)

	err = h.svc.HandleCallback(ctx, CallbackResult{
		OrderID: pay.OrderID, Approved: true, PaymentKey: "key-123",
	})
	require.NoError(t, err)

	settled, err := h.payStore.GetByOrderID(ctx, pay.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, settled.Status)
	require.NotNil(t, settled.PaymentKey)
	assert.Equal(t, "key-123", *settled.PaymentKey)

	got, err := h.reservationHarness.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, got.Status)
}

func TestHandleCallback_DuplicateIsNoOp(t *testing.T) {
	h := newPaymentHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)
	pay, err := h.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)

	cb := CallbackResult{OrderID: pay.OrderID, Approved: true, PaymentKey: "key-123"}
	require.NoError(t, h.svc.HandleCallback(ctx, cb))
	require.NoError(t, h.svc.HandleCallback(ctx, cb))

	assert.Len(t, h.notifier.confirmed, 1)
}

func TestHandleCallback_DeclinedCancelsReservation(t *testing.T) {
	h := newPaymentHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)
	pay, err := h.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)

	err = h.svc.HandleCallback(ctx, CallbackResult{
		OrderID: pay.OrderID, Approved: false, Reason: "insufficient funds",
	})
	require.NoError(t, err)

	settled, err := h.payStore.GetByOrderID(ctx, pay.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, settled.Status)
	require.NotNil(t, settled.FailureReason)
	assert.Equal(t, "insufficient funds", *settled.FailureReason)

	got, err := h.reservationHarness.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)
}

func TestHandleCallback_ApprovedAfterSweepNeedsRefund(t *testing.T) {
	h := newPaymentHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)
	pay, err := h.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)

	// The sweep expired the reservation before the verdict arrived.
	*h.clock = h.clock.Add(time.Hour)
	_, err = h.reservationHarness.svc.ExpireOverdue(ctx)
	require.NoError(t, err)

	err = h.svc.HandleCallback(ctx, CallbackResult{
		OrderID: pay.OrderID, Approved: true, PaymentKey: "key-123",
	})
	require.NoError(t, err)

	// The charge settled but the seat is gone: the payment stays
	// COMPLETED for the refund queue, the reservation stays cancelled.
	settled, err := h.payStore.GetByOrderID(ctx, pay.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, settled.Status)

	got, err := h.reservationHarness.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)
}

func TestCancelLive(t *testing.T) {
	h := newPaymentHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)

	// Nothing live yet: no-op.
	require.NoError(t, h.svc.CancelLive(ctx, res.ID, "reservation expired"))

	pay, err := h.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)
	require.NoError(t, h.svc.CancelLive(ctx, res.ID, "reservation expired"))

	settled, err := h.payStore.GetByOrderID(ctx, pay.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCancelled, settled.Status)
}
