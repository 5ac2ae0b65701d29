// Package users declares the user store contract and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/identity/internal/server/models"
	"github.com/dmitrijs2005/identity/internal/server/passwords"
)

// Repository persists accounts. Emails are compared case-insensitively;
// implementations must enforce uniqueness atomically and report a collision
// as common.ErrDuplicateEmail. Lookups of absent users return
// common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// VerifyPassword checks password against the hash stored on user. A nil user
// never verifies.
func VerifyPassword(hasher passwords.Hasher, user *models.User, password string) bool {
	if user == nil {
		return false
	}
	return hasher.Verify(user.PasswordHash, password)
}
