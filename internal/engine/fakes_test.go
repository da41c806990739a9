package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"ticketwave/internal/model"
	"ticketwave/internal/repository"
)

// In-memory doubles for the redis stores and repositories. They implement
// the same guarded-transition semantics as the real backends so the
// services under test see honest state changes.

type fakeQueueStore struct {
	mu      sync.Mutex
	seq     map[uint64]int64
	tickets map[string]model.QueueTicket
	waiting map[uint64]map[string]int64
	active  map[uint64]map[string]bool
}

func newFakeQueueStore() *fakeQueueStore {
	return &fakeQueueStore{
		seq:     make(map[uint64]int64),
		tickets: make(map[string]model.QueueTicket),
		waiting: make(map[uint64]map[string]int64),
		active:  make(map[uint64]map[string]bool),
	}
}

func (f *fakeQueueStore) NextSequence(_ context.Context, scheduleID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq[scheduleID]++
	return f.seq[scheduleID], nil
}

func (f *fakeQueueStore) SaveTicket(_ context.Context, t *model.QueueTicket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets[t.Token] = *t
	return nil
}

func (f *fakeQueueStore) Ticket(_ context.Context, token string) (*model.QueueTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[token]
	if !ok {
		return nil, nil
	}
	out := t
	return &out, nil
}

func (f *fakeQueueStore) PushWaiting(_ context.Context, scheduleID uint64, token string, sequence int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waiting[scheduleID] == nil {
		f.waiting[scheduleID] = make(map[string]int64)
	}
	f.waiting[scheduleID][token] = sequence
	return nil
}

func (f *fakeQueueStore) sortedWaiting(scheduleID uint64) []string {
	type entry struct {
		token string
		seq   int64
	}
	var entries []entry
	for token, seq := range f.waiting[scheduleID] {
		entries = append(entries, entry{token, seq})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.token
	}
	return out
}

func (f *fakeQueueStore) PopMinWaiting(_ context.Context, scheduleID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tokens := f.sortedWaiting(scheduleID)
	if len(tokens) == 0 {
		return "", nil
	}
	delete(f.waiting[scheduleID], tokens[0])
	return tokens[0], nil
}

func (f *fakeQueueStore) RemoveWaiting(_ context.Context, scheduleID uint64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.waiting[scheduleID], token)
	return nil
}

func (f *fakeQueueStore) WaitingRank(_ context.Context, scheduleID uint64, token string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, tok := range f.sortedWaiting(scheduleID) {
		if tok == token {
			return int64(i), nil
		}
	}
	return -1, nil
}

func (f *fakeQueueStore) AddActive(_ context.Context, scheduleID uint64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[scheduleID] == nil {
		f.active[scheduleID] = make(map[string]bool)
	}
	f.active[scheduleID][token] = true
	return nil
}

func (f *fakeQueueStore) RemoveActive(_ context.Context, scheduleID uint64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active[scheduleID], token)
	return nil
}

func (f *fakeQueueStore) ActiveTokens(_ context.Context, scheduleID uint64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for token := range f.active[scheduleID] {
		out = append(out, token)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeQueueStore) Purge(_ context.Context, scheduleID uint64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for token := range f.waiting[scheduleID] {
		out = append(out, token)
	}
	for token := range f.active[scheduleID] {
		out = append(out, token)
	}
	delete(f.waiting, scheduleID)
	delete(f.active, scheduleID)
	delete(f.seq, scheduleID)
	return out, nil
}

type fakeTTLStore struct {
	mu   sync.Mutex
	vals map[string]string
}

func newFakeTTLStore() *fakeTTLStore {
	return &fakeTTLStore{vals: make(map[string]string)}
}

func (f *fakeTTLStore) SetIfAbsent(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vals[key]; ok {
		return false, nil
	}
	f.vals[key] = value
	return true, nil
}

func (f *fakeTTLStore) Value(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vals[key], nil
}

func (f *fakeTTLStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vals[key] != value {
		return false, nil
	}
	delete(f.vals, key)
	return true, nil
}

func (f *fakeTTLStore) CompareAndExpire(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vals[key] == value, nil
}

// drop simulates redis expiring a key.
func (f *fakeTTLStore) drop(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vals, key)
}

type fakeSeatStore struct {
	mu    sync.Mutex
	seats map[uint64]*model.Seat
}

func newFakeSeatStore(seats ...*model.Seat) *fakeSeatStore {
	f := &fakeSeatStore{seats: make(map[uint64]*model.Seat)}
	for _, s := range seats {
		f.seats[s.ID] = s
	}
	return f
}

func (f *fakeSeatStore) GetByID(_ context.Context, id uint64) (*model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[id]
	if !ok {
		return nil, repository.ErrSeatNotFound
	}
	out := *s
	return &out, nil
}

func (f *fakeSeatStore) MarkLocked(_ context.Context, scheduleID, seatID uint64, holder string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[seatID]
	if !ok || s.ScheduleID != scheduleID {
		return repository.ErrSeatNotFound
	}
	if s.Status != model.SeatAvailable {
		return repository.ErrStateChanged
	}
	s.Status = model.SeatLocked
	s.LockOwner = &holder
	s.LockExpiresAt = &expiresAt
	return nil
}

func (f *fakeSeatStore) Unlock(_ context.Context, seatID uint64, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[seatID]
	if !ok {
		return repository.ErrSeatNotFound
	}
	if s.Status != model.SeatLocked || s.LockOwner == nil || *s.LockOwner != holder {
		return repository.ErrStateChanged
	}
	s.Status = model.SeatAvailable
	s.LockOwner = nil
	s.LockExpiresAt = nil
	return nil
}

func (f *fakeSeatStore) ExtendLock(_ context.Context, seatID uint64, holder string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[seatID]
	if !ok || s.Status != model.SeatLocked || s.LockOwner == nil || *s.LockOwner != holder {
		return repository.ErrStateChanged
	}
	s.LockExpiresAt = &expiresAt
	return nil
}

func (f *fakeSeatStore) ForceRelease(_ context.Context, seatID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.seats[seatID]
	if !ok {
		return repository.ErrSeatNotFound
	}
	if s.Status != model.SeatAvailable {
		s.Status = model.SeatAvailable
		s.LockOwner = nil
		s.LockExpiresAt = nil
	}
	return nil
}

func (f *fakeSeatStore) ListExpiredLocks(_ context.Context, scheduleID uint64, now time.Time) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Seat
	for _, s := range f.seats {
		if s.ScheduleID == scheduleID && s.Status == model.SeatLocked &&
			s.LockExpiresAt != nil && s.LockExpiresAt.Before(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeReservationStore struct {
	mu     sync.Mutex
	nextID uint64
	seats  *fakeSeatStore
	rows   map[uint64]*model.Reservation
}

func newFakeReservationStore(seats *fakeSeatStore) *fakeReservationStore {
	return &fakeReservationStore{seats: seats, rows: make(map[uint64]*model.Reservation)}
}

func (f *fakeReservationStore) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	out := *r
	return &out, nil
}

func (f *fakeReservationStore) ListByUser(_ context.Context, userID uint64) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeReservationStore) CreateWithSeat(_ context.Context, res *model.Reservation, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seats.mu.Lock()
	defer f.seats.mu.Unlock()

	seat, ok := f.seats.seats[res.SeatID]
	if !ok || seat.ScheduleID != res.ScheduleID {
		return repository.ErrSeatNotFound
	}
	if seat.Status != model.SeatLocked || seat.LockOwner == nil || *seat.LockOwner != holder {
		return repository.ErrStateChanged
	}
	seat.Status = model.SeatReserved
	res.AmountCents = seat.PriceCents

	f.nextID++
	res.ID = f.nextID
	res.Status = model.ReservationPending
	row := *res
	f.rows[res.ID] = &row
	return nil
}

func (f *fakeReservationStore) ConfirmWithSeat(_ context.Context, id uint64) (*model.Reservation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, false, repository.ErrReservationNotFound
	}
	switch r.Status {
	case model.ReservationConfirmed:
		out := *r
		return &out, false, nil
	case model.ReservationCancelled:
		out := *r
		return &out, false, repository.ErrStateChanged
	}

	f.seats.mu.Lock()
	defer f.seats.mu.Unlock()
	seat := f.seats.seats[r.SeatID]
	if seat == nil || seat.Status != model.SeatReserved {
		return nil, false, repository.ErrStateChanged
	}
	seat.Status = model.SeatSold
	seat.LockOwner = nil
	seat.LockExpiresAt = nil
	r.Status = model.ReservationConfirmed
	out := *r
	return &out, true, nil
}

func (f *fakeReservationStore) CancelWithSeat(_ context.Context, id uint64, allowConfirmed bool) (*model.Reservation, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, false, repository.ErrReservationNotFound
	}
	switch r.Status {
	case model.ReservationCancelled:
		out := *r
		return &out, false, nil
	case model.ReservationConfirmed:
		if !allowConfirmed {
			out := *r
			return &out, false, repository.ErrStateChanged
		}
	}

	f.seats.mu.Lock()
	defer f.seats.mu.Unlock()
	if seat := f.seats.seats[r.SeatID]; seat != nil &&
		(seat.Status == model.SeatReserved || seat.Status == model.SeatSold) {
		seat.Status = model.SeatAvailable
		seat.LockOwner = nil
		seat.LockExpiresAt = nil
	}
	now := time.Now().UTC()
	r.Status = model.ReservationCancelled
	r.CancelledAt = &now
	out := *r
	return &out, true, nil
}

func (f *fakeReservationStore) ListExpiredPending(_ context.Context, now time.Time) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.rows {
		if r.Status == model.ReservationPending && r.ExpiresAt.Before(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReservationStore) ListPendingBySchedule(_ context.Context, scheduleID uint64) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Reservation
	for _, r := range f.rows {
		if r.ScheduleID == scheduleID && r.Status == model.ReservationPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	mu        sync.Mutex
	schedules map[uint64]*model.Schedule
	shows     map[uint64]*model.Show
	soldOut   map[uint64]bool
}

func newFakeCatalog(schedule *model.Schedule, show *model.Show) *fakeCatalog {
	return &fakeCatalog{
		schedules: map[uint64]*model.Schedule{schedule.ID: schedule},
		shows:     map[uint64]*model.Show{show.ID: show},
		soldOut:   make(map[uint64]bool),
	}
}

func (f *fakeCatalog) GetWithShow(_ context.Context, id uint64) (*model.Schedule, *model.Show, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return nil, nil, repository.ErrScheduleNotFound
	}
	show := f.shows[s.ShowID]
	sc, sh := *s, *show
	return &sc, &sh, nil
}

func (f *fakeCatalog) MarkSoldOutIfFull(_ context.Context, id uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.soldOut[id] {
		if s, ok := f.schedules[id]; ok && s.Status == model.ScheduleOpen {
			s.Status = model.ScheduleSoldOut
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCatalog) SetStatus(_ context.Context, id uint64, to model.ScheduleStatus, from ...model.ScheduleStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.schedules[id]
	if !ok {
		return repository.ErrScheduleNotFound
	}
	if len(from) > 0 {
		match := false
		for _, st := range from {
			if s.Status == st {
				match = true
			}
		}
		if !match {
			return repository.ErrStateChanged
		}
	}
	s.Status = to
	return nil
}

func (f *fakeCatalog) MarkSoldOutIfComplete(_ context.Context, id uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if show, ok := f.shows[id]; ok && show.Status == model.ShowOnSale {
		show.Status = model.ShowSoldOut
		return true, nil
	}
	return false, nil
}

func (f *fakeCatalog) ShowSetStatus(_ context.Context, id uint64, status model.ShowStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	show, ok := f.shows[id]
	if !ok {
		return repository.ErrShowNotFound
	}
	show.Status = status
	return nil
}

// showFlagger adapts fakeCatalog to the ShowFlagger interface.
type showFlagger struct{ cat *fakeCatalog }

func (s showFlagger) MarkSoldOutIfComplete(ctx context.Context, id uint64) (bool, error) {
	return s.cat.MarkSoldOutIfComplete(ctx, id)
}

func (s showFlagger) SetStatus(ctx context.Context, id uint64, status model.ShowStatus) error {
	return s.cat.ShowSetStatus(ctx, id, status)
}

type fakeNotifier struct {
	mu        sync.Mutex
	confirmed []uint64
	cancelled []uint64
	causes    []string
}

func (f *fakeNotifier) ReservationConfirmed(_ context.Context, res *model.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, res.ID)
}

func (f *fakeNotifier) ReservationCancelled(_ context.Context, res *model.Reservation, cause string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, res.ID)
	f.causes = append(f.causes, cause)
}

type fakePaymentStore struct {
	mu     sync.Mutex
	nextID uint64
	rows   map[string]*model.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{rows: make(map[string]*model.Payment)}
}

func (f *fakePaymentStore) Create(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	p.RequestedAt = time.Now().UTC()
	row := *p
	f.rows[p.OrderID] = &row
	return nil
}

func (f *fakePaymentStore) GetByOrderID(_ context.Context, orderID string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[orderID]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	out := *p
	return &out, nil
}

func (f *fakePaymentStore) LiveByReservation(_ context.Context, reservationID uint64) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.ReservationID == reservationID && p.Status == model.PaymentPending {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakePaymentStore) ListByReservation(_ context.Context, reservationID uint64) ([]model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Payment
	for _, p := range f.rows {
		if p.ReservationID == reservationID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentStore) MarkCompleted(_ context.Context, orderID, paymentKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[orderID]
	if !ok || p.Status != model.PaymentPending {
		return false, nil
	}
	now := time.Now().UTC()
	p.Status = model.PaymentCompleted
	p.PaymentKey = &paymentKey
	p.ApprovedAt = &now
	return true, nil
}

func (f *fakePaymentStore) MarkFailed(_ context.Context, orderID, reason string) (bool, error) {
	return f.resolve(orderID, model.PaymentFailed, reason)
}

func (f *fakePaymentStore) MarkCancelled(_ context.Context, orderID, reason string) (bool, error) {
	return f.resolve(orderID, model.PaymentCancelled, reason)
}

func (f *fakePaymentStore) resolve(orderID string, status model.PaymentStatus, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[orderID]
	if !ok || p.Status != model.PaymentPending {
		return false, nil
	}
	p.Status = status
	p.FailureReason = &reason
	return true, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []string
	err      error
}

func (f *fakeGateway) Request(_ context.Context, orderID string, _ uint32, _ model.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, orderID)
	return f.err
}
