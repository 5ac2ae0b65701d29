package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/server/repositories/claims"
	"github.com/dmitrijs2005/identity/internal/server/repositories/memory"
	"github.com/dmitrijs2005/identity/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/identity/internal/server/repositories/users"
)

// MemoryRepositoryManager ignores the DBTX handle: every repository is a
// view of the same store.
type MemoryRepositoryManager struct {
	store *memory.Store
}

func NewMemoryRepositoryManager(store *memory.Store) RepositoryManager {
	return &MemoryRepositoryManager{store: store}
}

// RunMigrations is a no-op; the store needs no schema.
func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.store.Users() }

func (m *MemoryRepositoryManager) Claims(dbx.DBTX) claims.Repository { return m.store.Claims() }

func (m *MemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.store.RefreshTokens()
}
