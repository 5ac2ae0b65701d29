// Package memory is a process-local implementation of every repository,
// used for development runs and tests. All repositories share one Store so
// referential checks (claims and tokens need an existing user) hold.
package memory

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/server/models"
)

// Store holds all tables. Every repository call takes mu for its whole
// duration, which makes each call atomic. Rows are stored by value so
// callers never alias internal state.
type Store struct {
	mu sync.RWMutex

	usersByID    map[string]models.User
	usersByEmail map[string]string
	claims       map[string]map[models.Claim]struct{}
	tokensByHash map[string]models.RefreshToken

	// txMu serializes units of work started through WithTx.
	txMu sync.Mutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		usersByID:    make(map[string]models.User),
		usersByEmail: make(map[string]string),
		claims:       make(map[string]map[models.Claim]struct{}),
		tokensByHash: make(map[string]models.RefreshToken),
	}
}

// Conn implements dbx.Transactor. Memory repositories ignore the handle.
func (s *Store) Conn() dbx.DBTX { return nil }

// WithTx implements dbx.Transactor by running units of work one at a time.
// There is no rollback: a failing unit keeps the writes it already made.
func (s *Store) WithTx(ctx context.Context, fn dbx.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, nil)
}

// Users returns the user repository view of s.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Claims returns the claim repository view of s.
func (s *Store) Claims() *ClaimRepository { return &ClaimRepository{s: s} }

// RefreshTokens returns the refresh token repository view of s.
func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{s: s} }
