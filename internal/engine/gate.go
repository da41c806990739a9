package engine

import (
	"context"

	"ticketwave/internal/model"
)

// GateStore is the read side the sale gate needs: a schedule joined with its
// show. *repository.ScheduleRepo satisfies it.
type GateStore interface {
	GetWithShow(ctx context.Context, scheduleID uint64) (*model.Schedule, *model.Show, error)
}

// Gate is the read-only guard evaluated before every queue-entry,
// lock-acquire and reservation-create request. It has no side effects;
// cancellation cascades are driven by the admin service.
type Gate struct {
	store GateStore
}

// NewGate returns a sale gate over the given store.
func NewGate(store GateStore) *Gate {
	return &Gate{store: store}
}

// CheckAdmissible returns the schedule and show when the sale is open to the
// public: show ON_SALE, sales ALLOWED, schedule OPEN. Otherwise it returns a
// *BlockedError with the most specific reason.
func (g *Gate) CheckAdmissible(ctx context.Context, scheduleID uint64) (*model.Schedule, *model.Show, error) {
	sc, sh, err := g.store.GetWithShow(ctx, scheduleID)
	if err != nil {
		return nil, nil, err
	}
	if sc.Status == model.ScheduleCancelled {
		return nil, nil, &BlockedError{Reason: ReasonScheduleCancelled}
	}
	if sh.Status != model.ShowOnSale {
		return nil, nil, &BlockedError{Reason: ReasonShowNotOnSale}
	}
	if sh.SaleStatus != model.SaleAllowed {
		return nil, nil, &BlockedError{Reason: ReasonSaleSuspended}
	}
	if sc.Status != model.ScheduleOpen {
		return nil, nil, &BlockedError{Reason: ReasonScheduleNotOpen}
	}
	return sc, sh, nil
}
