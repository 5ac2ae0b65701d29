// Package repomanager vends repositories bound to a database handle and
// runs schema migrations. The PostgreSQL manager builds SQL repositories;
// the memory manager hands out views of one shared memory.Store.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/server/repositories/claims"
	"github.com/dmitrijs2005/identity/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/identity/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Claims(db dbx.DBTX) claims.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
