package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketwave/internal/model"
	"ticketwave/internal/repository"
)

// ListHeldBySchedule makes fakeSeatStore satisfy HeldSeatLister.
func (f *fakeSeatStore) ListHeldBySchedule(_ context.Context, scheduleID uint64) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Seat
	for _, s := range f.seats {
		if s.ScheduleID == scheduleID && s.Status != model.SeatAvailable {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeShowStore struct{ cat *fakeCatalog }

func (f fakeShowStore) Create(_ context.Context, s *model.Show) error {
	f.cat.mu.Lock()
	defer f.cat.mu.Unlock()
	if s.Status == "" {
		s.Status = model.ShowWaiting
	}
	if s.SaleStatus == "" {
		s.SaleStatus = model.SaleAllowed
	}
	s.ID = uint64(len(f.cat.shows) + 1)
	row := *s
	f.cat.shows[s.ID] = &row
	return nil
}

func (f fakeShowStore) GetByID(_ context.Context, id uint64) (*model.Show, error) {
	f.cat.mu.Lock()
	defer f.cat.mu.Unlock()
	s, ok := f.cat.shows[id]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	out := *s
	return &out, nil
}

func (f fakeShowStore) SetStatus(ctx context.Context, id uint64, status model.ShowStatus) error {
	return f.cat.ShowSetStatus(ctx, id, status)
}

func (f fakeShowStore) SetSaleStatus(_ context.Context, id uint64, status model.SaleStatus) error {
	f.cat.mu.Lock()
	defer f.cat.mu.Unlock()
	s, ok := f.cat.shows[id]
	if !ok {
		return repository.ErrShowNotFound
	}
	s.SaleStatus = status
	return nil
}

type fakeScheduleAdminStore struct {
	cat   *fakeCatalog
	seats *fakeSeatStore
}

func (f fakeScheduleAdminStore) GetByID(_ context.Context, id uint64) (*model.Schedule, error) {
	f.cat.mu.Lock()
	defer f.cat.mu.Unlock()
	s, ok := f.cat.schedules[id]
	if !ok {
		return nil, repository.ErrScheduleNotFound
	}
	out := *s
	return &out, nil
}

func (f fakeScheduleAdminStore) CreateWithSeats(_ context.Context, s *model.Schedule,
	rowCount, seatsPerRow, priceCents uint32) error {
	f.cat.mu.Lock()
	defer f.cat.mu.Unlock()
	s.ID = uint64(len(f.cat.schedules) + 1)
	s.Status = model.ScheduleBeforeOpen
	s.Capacity = rowCount * seatsPerRow
	row := *s
	f.cat.schedules[s.ID] = &row
	f.seats.mu.Lock()
	defer f.seats.mu.Unlock()
	for i := uint32(0); i < s.Capacity; i++ {
		id := uint64(len(f.seats.seats) + 1)
		f.seats.seats[id] = &model.Seat{
			ID:         id,
			ScheduleID: s.ID,
			RowLabel:   string(rune('A' + i/seatsPerRow)),
			SeatNumber: i%seatsPerRow + 1,
			PriceCents: priceCents,
			Status:     model.SeatAvailable,
		}
	}
	return nil
}

func (f fakeScheduleAdminStore) SetStatus(ctx context.Context, id uint64, to model.ScheduleStatus, from ...model.ScheduleStatus) error {
	return f.cat.SetStatus(ctx, id, to, from...)
}

type fakeAuditLog struct {
	entries []model.AdminLog
}

func (f *fakeAuditLog) Create(_ context.Context, l *model.AdminLog) error {
	l.ID = uint64(len(f.entries) + 1)
	l.CreatedAt = time.Now().UTC()
	f.entries = append(f.entries, *l)
	return nil
}

func (f *fakeAuditLog) ListRecent(_ context.Context, limit int) ([]model.AdminLog, error) {
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	out := make([]model.AdminLog, 0, limit)
	for i := len(f.entries) - 1; i >= len(f.entries)-limit; i-- {
		out = append(out, f.entries[i])
	}
	return out, nil
}

type adminHarness struct {
	*paymentHarness
	audit *fakeAuditLog
	svc   *Admin
}

func newAdminHarness(t *testing.T) *adminHarness {
	t.Helper()
	h := &adminHarness{
		paymentHarness: newPaymentHarness(t),
		audit:          &fakeAuditLog{},
	}
	h.svc = NewAdmin(
		fakeShowStore{h.cat},
		fakeScheduleAdminStore{h.cat, h.seats},
		h.seats,
		h.reservationHarness.svc,
		h.resStore,
		h.paymentHarness.svc,
		h.adm,
		h.locks,
		h.audit,
	)
	return h
}

func TestCreateShowAndSchedule(t *testing.T) {
	h := newAdminHarness(t)
	ctx := context.Background()

	show, err := h.svc.CreateShow(ctx, 1, "The Tempest")
	require.NoError(t, err)
	assert.Equal(t, model.ShowWaiting, show.Status)
	assert.Equal(t, model.SaleAllowed, show.SaleStatus)

	require.NoError(t, h.svc.OpenShowSales(ctx, 1, show.ID))
	assert.Equal(t, model.ShowOnSale, h.cat.shows[show.ID].Status)

	startsAt := time.Date(2026, 4, 1, 19, 30, 0, 0, time.UTC)
	sched, err := h.svc.AddSchedule(ctx, 1, show.ID, startsAt, 2, 3, 12000)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleBeforeOpen, sched.Status)
	assert.Equal(t, uint32(6), sched.Capacity)

	require.NoError(t, h.svc.OpenSchedule(ctx, 1, sched.ID))
	assert.Equal(t, model.ScheduleOpen, h.cat.schedules[sched.ID].Status)

	// Reopening an already-OPEN schedule fails the guarded transition.
	err = h.svc.OpenSchedule(ctx, 1, sched.ID)
	assert.ErrorIs(t, err, repository.ErrStateChanged)

	trail, err := h.svc.AuditTrail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trail, 4)
	assert.Equal(t, "schedule", trail[0].TargetType)
	assert.Equal(t, model.ActionUpdate, trail[0].Action)
}

func TestSetShowSaleStatus_ClosesGate(t *testing.T) {
	h := newAdminHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.SetShowSaleStatus(ctx, 1, 10, model.SaleSuspended))

	_, err := h.adm.Enqueue(ctx, 1, 100)
	require.NoError(t, err) // queue entry is gated in the handler, not here

	_, _, err = NewGate(h.cat).CheckAdmissible(ctx, 1)
	blocked, ok := AsBlocked(err)
	require.True(t, ok)
	assert.Equal(t, ReasonSaleSuspended, blocked.Reason)
}

func TestForceCancelReservation_Pending(t *testing.T) {
	h := newAdminHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)
	_, err := h.paymentHarness.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)

	got, err := h.svc.ForceCancelReservation(ctx, 1, res.ID, "fraud suspected")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)

	// The live payment is settled so a late gateway verdict lands dead.
	history, err := h.paymentHarness.svc.History(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.PaymentCancelled, history[0].Status)

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, model.ActionForceCancel, h.audit.entries[0].Action)
	assert.Equal(t, res.ID, h.audit.entries[0].TargetID)
	assert.Equal(t, "fraud suspected", h.audit.entries[0].Detail)
}

func TestForceCancelReservation_ConfirmedIsWithdrawal(t *testing.T) {
	h := newAdminHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)
	pay, err := h.paymentHarness.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)
	require.NoError(t, h.paymentHarness.svc.HandleCallback(ctx, CallbackResult{
		OrderID: pay.OrderID, Approved: true, PaymentKey: "key-123",
	}))

	got, err := h.svc.ForceCancelReservation(ctx, 1, res.ID, "venue closure")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)

	seat, err := h.seats.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.SeatAvailable, seat.Status)

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, model.ActionForceWithdrawal, h.audit.entries[0].Action)
}

func TestForceCancelSchedule_CascadesEverything(t *testing.T) {
	h := newAdminHarness(t)
	ctx := context.Background()

	// Buyer A holds a PENDING reservation, buyer B holds a bare lock,
	// buyer C is still WAITING in the queue.
	h.seats.seats[8] = testSeat(8, 1)
	res := h.pendingReservation(t)
	_, err := h.paymentHarness.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)
	h.admit(t, 101, 8)
	waiting, err := h.adm.Enqueue(ctx, 1, 102)
	require.NoError(t, err)

	require.NoError(t, h.svc.ForceCancelSchedule(ctx, 1, 1, "performer illness"))

	assert.Equal(t, model.ScheduleCancelled, h.cat.schedules[1].Status)

	got, err := h.reservationHarness.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, got.Status)

	history, err := h.paymentHarness.svc.History(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.PaymentCancelled, history[0].Status)

	for _, seatID := range []uint64{7, 8} {
		seat, err := h.seats.GetByID(ctx, seatID)
		require.NoError(t, err)
		assert.Equal(t, model.SeatAvailable, seat.Status)
	}

	tk, _, err := h.adm.Poll(ctx, waiting.Token)
	require.NoError(t, err)
	assert.Equal(t, model.TicketExpired, tk.Status)
}

func TestForceCancelSchedule_LeavesConfirmedStanding(t *testing.T) {
	h := newAdminHarness(t)
	ctx := context.Background()
	res := h.pendingReservation(t)
	pay, err := h.paymentHarness.svc.Initiate(ctx, res.ID, model.MethodCard)
	require.NoError(t, err)
	require.NoError(t, h.paymentHarness.svc.HandleCallback(ctx, CallbackResult{
		OrderID: pay.OrderID, Approved: true, PaymentKey: "key-123",
	}))

	require.NoError(t, h.svc.ForceCancelSchedule(ctx, 1, 1, "performer illness"))

	got, err := h.reservationHarness.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, got.Status)

	seat, err := h.seats.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, model.SeatSold, seat.Status)
}
