// Package user persists facility staff accounts for the auth gateway.
package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a facility staff account.
type User struct {
	ID           uuid.UUID
	Email        string
	Role         string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// Store is the user persistence boundary.
//
// Error contract: FindByEmail/FindByID return sentinel.ErrNotFound (wrapped)
// when no account exists; Create returns sentinel.ErrConflict on a duplicate
// email.
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
}
