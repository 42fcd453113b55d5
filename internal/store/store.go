package store

import (
	"context"
	"errors"

	"github.com/geocoder89/userhub/internal/domain/user"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrUnavailable    = errors.New("user store unavailable")
)

// Store is the contract both backends satisfy. Create must make the
// email-uniqueness check and the insert a single atomic operation, and ids
// come from one strictly increasing counter that is never reused.
type Store interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
	FindByID(ctx context.Context, id int64) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Create(ctx context.Context, params user.CreateUserParams) (user.User, error)
	Update(ctx context.Context, id int64, patch user.UpdateUserParams) (user.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// SeedAdmin describes the protected super admin record each backend creates
// on first initialization. Credential is the stored form (bcrypt hash).
type SeedAdmin struct {
	Name       string
	Email      string
	Credential string
}
