// Package claims declares the claim store contract and its PostgreSQL
// implementation. Claims of a user form a set: adding an existing pair is a
// no-op.
package claims

import (
	"context"

	"github.com/dmitrijs2005/identity/internal/server/models"
)

// Repository stores per-user claim sets.
type Repository interface {
	// AddClaims unions claims into the user's set in one atomic step.
	// An absent user yields common.ErrUserNotFound.
	AddClaims(ctx context.Context, userID string, claims []models.Claim) error

	// GetClaims returns the user's claims ordered by type, then value. A
	// user without claims yields an empty, non-nil slice; an absent user
	// yields common.ErrUserNotFound.
	GetClaims(ctx context.Context, userID string) ([]models.Claim, error)
}
