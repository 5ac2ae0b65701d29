package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/server/models"
)

// RefreshTokenRepository implements refreshtokens.Repository on a Store.
type RefreshTokenRepository struct {
	s *Store
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.usersByID[t.UserID]; !ok {
		return common.ErrUserNotFound
	}
	if _, dup := r.s.tokensByHash[t.TokenHash]; dup {
		return fmt.Errorf("duplicate refresh token hash")
	}

	r.s.tokensByHash[t.TokenHash] = copyToken(*t)
	return nil
}

func (r *RefreshTokenRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tokensByHash[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	t = copyToken(t)
	return &t, nil
}

func (r *RefreshTokenRepository) Consume(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for h, t := range r.s.tokensByHash {
		if t.ID != id {
			continue
		}
		if t.State(at) != models.RefreshTokenActive {
			return false, nil
		}
		t.ConsumedAt = &at
		r.s.tokensByHash[h] = t
		return true, nil
	}
	return false, nil
}

func (r *RefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	return r.revokeWhere(ctx, at, func(t models.RefreshToken) bool { return t.FamilyID == familyID })
}

func (r *RefreshTokenRepository) RevokeUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	return r.revokeWhere(ctx, at, func(t models.RefreshToken) bool { return t.UserID == userID })
}

func (r *RefreshTokenRepository) revokeWhere(ctx context.Context, at time.Time, match func(models.RefreshToken) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for h, t := range r.s.tokensByHash {
		if t.RevokedAt != nil || !match(t) {
			continue
		}
		t.RevokedAt = &at
		r.s.tokensByHash[h] = t
		n++
	}
	return n, nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for h, t := range r.s.tokensByHash {
		if t.ExpiresAt.Before(before) {
			delete(r.s.tokensByHash, h)
			n++
		}
	}
	return n, nil
}

// copyToken detaches the timestamp pointers from the stored row.
func copyToken(t models.RefreshToken) models.RefreshToken {
	if t.ConsumedAt != nil {
		v := *t.ConsumedAt
		t.ConsumedAt = &v
	}
	if t.RevokedAt != nil {
		v := *t.RevokedAt
		t.RevokedAt = &v
	}
	return t
}
