package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticketwave/internal/model"
	"ticketwave/internal/repository"
)

// TTLStore is the atomic key-value surface seat locks run on. *store.TTL
// satisfies it.
type TTLStore interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Value(ctx context.Context, key string) (string, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
	CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// SeatStore is the subset of the seat repository the lock manager uses.
type SeatStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Seat, error)
	MarkLocked(ctx context.Context, scheduleID, seatID uint64, holder string, expiresAt time.Time) error
	Unlock(ctx context.Context, seatID uint64, holder string) error
	ExtendLock(ctx context.Context, seatID uint64, holder string, expiresAt time.Time) error
	ForceRelease(ctx context.Context, seatID uint64) error
	ListExpiredLocks(ctx context.Context, scheduleID uint64, now time.Time) ([]model.Seat, error)
}

// LockManager grants exclusive, TTL-bounded holds on seats. The redis key is
// the authority: SETNX decides the race, the key's expiry decides the
// deadline. The seat row mirrors the hold (LOCKED, owner, deadline) so the
// seat map and the sweep can see it without touching redis per seat.
//
// The holder identity is the buyer's queue ticket token, which ties every
// lock to an admitted session.
type LockManager struct {
	ttl     TTLStore
	seats   SeatStore
	lockTTL time.Duration
	now     func() time.Time
}

// NewLockManager returns a lock manager issuing holds of the given duration.
func NewLockManager(ttl TTLStore, seats SeatStore, lockTTL time.Duration) *LockManager {
	return &LockManager{ttl: ttl, seats: seats, lockTTL: lockTTL, now: time.Now}
}

func lockKey(scheduleID, seatID uint64) string {
	return fmt.Sprintf("seat_lock:%d:%d", scheduleID, seatID)
}

// Acquire attempts to lock a seat for the holder. Exactly one concurrent
// caller wins the redis key; everyone else gets ErrSeatConflict. The winner
// then flips the seat row AVAILABLE -> LOCKED, which also checks the seat
// belongs to the schedule. If the row flip loses (the seat was already
// RESERVED or SOLD), the key is released again and the caller still gets
// ErrSeatConflict.
func (m *LockManager) Acquire(ctx context.Context, scheduleID, seatID uint64, holder string) (*model.Seat, error) {
	key := lockKey(scheduleID, seatID)
	won, err := m.ttl.SetIfAbsent(ctx, key, holder, m.lockTTL)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrSeatConflict
	}

	deadline := m.now().UTC().Add(m.lockTTL)
	if err := m.seats.MarkLocked(ctx, scheduleID, seatID, holder, deadline); err != nil {
		if _, delErr := m.ttl.CompareAndDelete(ctx, key, holder); delErr != nil {
			slog.Warn("seat lock key left behind after failed row flip",
				"key", key, "error", delErr)
		}
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, ErrSeatConflict
		}
		return nil, err
	}
	return m.seats.GetByID(ctx, seatID)
}

// Release gives a held seat back voluntarily. Only the current holder can
// release: a stale holder whose key already expired gets ErrNotLockOwner.
func (m *LockManager) Release(ctx context.Context, scheduleID, seatID uint64, holder string) error {
	deleted, err := m.ttl.CompareAndDelete(ctx, lockKey(scheduleID, seatID), holder)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotLockOwner
	}
	if err := m.seats.Unlock(ctx, seatID, holder); err != nil && !errors.Is(err, repository.ErrStateChanged) {
		return err
	}
	return nil
}

// Extend refreshes the hold's deadline for its current holder. A hold whose
// key already lapsed cannot be revived; the caller must re-acquire.
func (m *LockManager) Extend(ctx context.Context, scheduleID, seatID uint64, holder string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.lockTTL
	}
	ok, err := m.ttl.CompareAndExpire(ctx, lockKey(scheduleID, seatID), holder, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockExpired
	}
	deadline := m.now().UTC().Add(ttl)
	if err := m.seats.ExtendLock(ctx, seatID, holder, deadline); err != nil && !errors.Is(err, repository.ErrStateChanged) {
		return err
	}
	return nil
}

// Owner returns the current holder of a seat's lock, or "" when unheld.
func (m *LockManager) Owner(ctx context.Context, scheduleID, seatID uint64) (string, error) {
	return m.ttl.Value(ctx, lockKey(scheduleID, seatID))
}

// Forget drops the lock key of a seat that already advanced past LOCKED
// (RESERVED or SOLD). The row is left alone; only the redis key goes. A key
// that already lapsed or changed hands is fine.
func (m *LockManager) Forget(ctx context.Context, scheduleID, seatID uint64, holder string) error {
	_, err := m.ttl.CompareAndDelete(ctx, lockKey(scheduleID, seatID), holder)
	return err
}

// ForceRelease drops a hold regardless of owner. Admin cascades use it; the
// key is deleted unconditionally by letting redis expire-or-delete via
// compare against whatever value is present.
func (m *LockManager) ForceRelease(ctx context.Context, scheduleID, seatID uint64) error {
	holder, err := m.ttl.Value(ctx, lockKey(scheduleID, seatID))
	if err != nil {
		return err
	}
	if holder != "" {
		if _, err := m.ttl.CompareAndDelete(ctx, lockKey(scheduleID, seatID), holder); err != nil {
			return err
		}
	}
	return m.seats.ForceRelease(ctx, seatID)
}

// ReleaseExpired reconciles seat rows still marked LOCKED whose deadline has
// passed. The redis key is re-checked per row: if the key survived (the row
// mirror lagged behind an extension), the row is left alone. Returns how
// many seats were released.
func (m *LockManager) ReleaseExpired(ctx context.Context, scheduleID uint64) (int, error) {
	seats, err := m.seats.ListExpiredLocks(ctx, scheduleID, m.now())
	if err != nil {
		return 0, err
	}
	released := 0
	for _, s := range seats {
		holder, err := m.ttl.Value(ctx, lockKey(scheduleID, s.ID))
		if err != nil {
			return released, err
		}
		if holder != "" {
			continue
		}
		if err := m.seats.ForceRelease(ctx, s.ID); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}
