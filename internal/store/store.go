// Package store holds user records for the API. Stores are passed around as
// explicit handles; there is no package-level state.
package store

import (
	"context"
	"errors"

	"github.com/MediSynth-io/authkit/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already taken")
)

// UserStore is the credential store used by the auth handlers.
//
// CreateUser assigns the id and creation time. It is create-if-absent: a
// second user with the same email yields ErrEmailTaken.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, email, passwordHash, name string) (*models.User, error)
}
