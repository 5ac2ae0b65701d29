// Package refreshtokens declares the server-side repository contract for
// refresh token records in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/identity/internal/server/models"
)

// Repository stores refresh token records keyed by the hash of the opaque
// token value. The plain value is never passed to the store.
type Repository interface {
	// Create stores a new active token record.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash returns the record with the given token hash, whatever its
	// state. Absent records yield common.ErrorNotFound.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)

	// Consume marks an active, unexpired token consumed at the given time.
	// It reports false when the token was no longer active, which is how
	// the loser of two concurrent rotations finds out.
	Consume(ctx context.Context, id string, at time.Time) (bool, error)

	// RevokeFamily revokes every token of a family that is not revoked yet
	// and returns how many were changed.
	RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error)

	// RevokeUser revokes every live token of a user.
	RevokeUser(ctx context.Context, userID string, at time.Time) (int64, error)

	// DeleteExpired removes records that expired before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
