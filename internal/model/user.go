package model

import "time"

// User represents an application user as stored in the `users` table. The
// Role string is carried into the JWT so the role middleware can gate admin
// routes without a second lookup.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – USER or ADMIN.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Roles accepted in the users.role column and the JWT role claim.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)
