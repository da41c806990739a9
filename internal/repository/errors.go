// Package repository contains the MySQL data access layer. Repositories are
// thin structs over *sql.DB; multi-table state transitions (reservation plus
// seat) run inside repository-owned transactions so callers never see partial
// state. Sentinel errors defined here let the engine and handlers distinguish
// failure scenarios without string matching.
package repository

import "errors"

// ErrShowNotFound indicates that a show was not located in the DB.
var ErrShowNotFound = errors.New("show not found")

// ErrScheduleNotFound indicates that a schedule was not located in the DB.
var ErrScheduleNotFound = errors.New("schedule not found")

// ErrSeatNotFound indicates that a seat was not located in the DB.
var ErrSeatNotFound = errors.New("seat not found")

// ErrReservationNotFound indicates that a reservation was not located in the DB.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrPaymentNotFound indicates that a payment was not located in the DB.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrUserNotFound indicates that a user was not located in the DB.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken indicates that a registration used an email that already
// exists.
var ErrEmailTaken = errors.New("email already registered")

// ErrStateChanged indicates that a guarded UPDATE matched zero rows because
// another writer moved the row out of the expected state first. Callers
// treat this as an ordinary conflict, not a failure.
var ErrStateChanged = errors.New("row state changed concurrently")
