package memory

import (
	"context"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/server/claims"
	"github.com/dmitrijs2005/identity/internal/server/models"
)

// ClaimRepository implements the claim store on a Store.
type ClaimRepository struct {
	s *Store
}

func (r *ClaimRepository) AddClaims(ctx context.Context, userID string, list []models.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.usersByID[userID]; !ok {
		return common.ErrUserNotFound
	}

	set, ok := r.s.claims[userID]
	if !ok {
		set = make(map[models.Claim]struct{}, len(list))
		r.s.claims[userID] = set
	}
	for _, c := range list {
		set[c] = struct{}{}
	}
	return nil
}

func (r *ClaimRepository) GetClaims(ctx context.Context, userID string) ([]models.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if _, ok := r.s.usersByID[userID]; !ok {
		return nil, common.ErrUserNotFound
	}

	set := r.s.claims[userID]
	out := make([]models.Claim, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	claims.Sort(out)
	return out, nil
}
