package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/ids"
	"github.com/dmitrijs2005/identity/internal/server/models"
)

// UserRepository implements users.Repository on a Store.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := *user
	u.Email = common.NormalizeEmail(user.Email)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.usersByEmail[u.Email]; exists {
		return nil, common.ErrDuplicateEmail
	}

	u.ID = ids.NewUUID()
	u.CreatedAt = time.Now().UTC()
	r.s.usersByID[u.ID] = u
	r.s.usersByEmail[u.Email] = u.ID

	return &u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.usersByEmail[common.NormalizeEmail(email)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u := r.s.usersByID[id]
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.usersByID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}
