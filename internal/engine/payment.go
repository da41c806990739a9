package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ticketwave/internal/model"
)

// PaymentStore is the subset of the payment repository the coordinator uses.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	LiveByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error)
	ListByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error)
	MarkCompleted(ctx context.Context, orderID, paymentKey string) (bool, error)
	MarkFailed(ctx context.Context, orderID, reason string) (bool, error)
	MarkCancelled(ctx context.Context, orderID, reason string) (bool, error)
}

// Gateway is the external payment provider. Request submits a charge; the
// provider settles asynchronously through the callback endpoint, so a nil
// error only means the request was accepted.
type Gateway interface {
	Request(ctx context.Context, orderID string, amountCents uint32, method model.PaymentMethod) error
}

// CallbackResult is the provider's settlement verdict delivered to the
// callback endpoint.
type CallbackResult struct {
	OrderID    string
	Approved   bool
	PaymentKey string
	Reason     string
}

// Payments coordinates the payment leg of a reservation: one live payment
// attempt per reservation, bounded retries against the gateway, and
// idempotent settlement of provider callbacks. Settlement outcomes are
// applied through the reservation service so seats and admission slots
// follow the money.
type Payments struct {
	store        PaymentStore
	reservations *Reservations
	gateway      Gateway
	limiter      *rate.Limiter
	maxAttempts  int
	backoff      time.Duration
	now          func() time.Time
}

// NewPayments wires the payment coordinator. limiter caps the outbound rate
// to the gateway across all requests; maxAttempts bounds retries for one
// Initiate call.
func NewPayments(store PaymentStore, reservations *Reservations, gateway Gateway,
	limiter *rate.Limiter, maxAttempts int, backoff time.Duration) *Payments {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Payments{
		store:        store,
		reservations: reservations,
		gateway:      gateway,
		limiter:      limiter,
		maxAttempts:  maxAttempts,
		backoff:      backoff,
		now:          time.Now,
	}
}

// Initiate opens a payment attempt for a PENDING reservation and submits it
// to the gateway. Only one live (PENDING) payment may exist per reservation;
// a second Initiate while the first is unsettled returns ErrPaymentInFlight.
// When every gateway attempt fails the payment is marked FAILED and the
// reservation is cancelled, releasing its seat.
func (p *Payments) Initiate(ctx context.Context, reservationID uint64, method model.PaymentMethod) (*model.Payment, error) {
	if !model.ValidPaymentMethod(method) {
		return nil, ErrPaymentFailed
	}
	res, err := p.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.Resolved() {
		return nil, ErrReservationResolved
	}
	if live, err := p.store.LiveByReservation(ctx, reservationID); err != nil {
		return nil, err
	} else if live != nil {
		return nil, ErrPaymentInFlight
	}

	pay := &model.Payment{
		ReservationID: reservationID,
		OrderID:       uuid.New().String(),
		Method:        method,
		Status:        model.PaymentPending,
		AmountCents:   res.AmountCents,
	}
	if err := p.store.Create(ctx, pay); err != nil {
		return nil, err
	}

	if err := p.submit(ctx, pay); err != nil {
		p.failAndCascade(ctx, pay, err.Error())
		return nil, ErrPaymentFailed
	}
	return pay, nil
}

// submit pushes the charge to the gateway with bounded retries. Each
// attempt waits on the shared limiter first so a burst of buyers cannot
// stampede the provider.
func (p *Payments) submit(ctx context.Context, pay *model.Payment) error {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if p.limiter != nil {
			if err = p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err = p.gateway.Request(ctx, pay.OrderID, pay.AmountCents, pay.Method); err == nil {
			return nil
		}
		slog.Warn("payment gateway request failed",
			"order_id", pay.OrderID, "attempt", attempt, "error", err)
		if attempt < p.maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff * time.Duration(attempt)):
			}
		}
	}
	return err
}

// HandleCallback applies the provider's settlement verdict. It is
// idempotent: a duplicate callback for an already-settled order is a logged
// no-op, as is a callback for an order whose reservation was cancelled by
// the sweep before the verdict arrived (an approved charge in that case is
// surfaced for manual refund).
func (p *Payments) HandleCallback(ctx context.Context, cb CallbackResult) error {
	pay, err := p.store.GetByOrderID(ctx, cb.OrderID)
	if err != nil {
		return err
	}
	if pay.Final() {
		slog.Info("duplicate payment callback ignored",
			"order_id", cb.OrderID, "status", pay.Status)
		return nil
	}

	if cb.Approved {
		changed, err := p.store.MarkCompleted(ctx, cb.OrderID, cb.PaymentKey)
		if err != nil {
			return err
		}
		if !changed {
			slog.Info("stale payment callback ignored", "order_id", cb.OrderID)
			return nil
		}
		if _, err := p.reservations.Confirm(ctx, pay.ReservationID); err != nil {
			if err == ErrReservationResolved {
				// The charge settled but the sweep already withdrew the
				// reservation. The payment stays COMPLETED; the refund is
				// an operator action.
				slog.Error("approved payment for a cancelled reservation, refund required",
					"order_id", cb.OrderID, "reservation_id", pay.ReservationID)
				return nil
			}
			return err
		}
		return nil
	}

	changed, err := p.store.MarkFailed(ctx, cb.OrderID, cb.Reason)
	if err != nil {
		return err
	}
	if !changed {
		slog.Info("stale payment callback ignored", "order_id", cb.OrderID)
		return nil
	}
	if _, err := p.reservations.Cancel(ctx, pay.ReservationID, "payment failed"); err != nil && err != ErrReservationResolved {
		return err
	}
	return nil
}

// CancelLive marks a reservation's live payment CANCELLED, if any. The
// sweep calls it after expiring the reservation so a late verdict lands on
// a settled row instead of a PENDING one.
func (p *Payments) CancelLive(ctx context.Context, reservationID uint64, reason string) error {
	live, err := p.store.LiveByReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if live == nil {
		return nil
	}
	_, err = p.store.MarkCancelled(ctx, live.OrderID, reason)
	return err
}

// History returns every payment attempt of a reservation, newest first.
func (p *Payments) History(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	return p.store.ListByReservation(ctx, reservationID)
}

// failAndCascade settles a payment as FAILED and withdraws its reservation.
func (p *Payments) failAndCascade(ctx context.Context, pay *model.Payment, reason string) {
	if _, err := p.store.MarkFailed(ctx, pay.OrderID, reason); err != nil {
		slog.Error("payment not marked failed", "order_id", pay.OrderID, "error", err)
	}
	if _, err := p.reservations.Cancel(ctx, pay.ReservationID, "payment failed"); err != nil && err != ErrReservationResolved {
		slog.Error("reservation not cancelled after payment failure",
			"reservation_id", pay.ReservationID, "error", err)
	}
}
