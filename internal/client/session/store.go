// Package session keeps the tokens of the last identityctl login in a local
// SQLite database so later invocations can refresh or grant claims.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/identity/internal/client/session/migrations"
	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/filex"
)

// Keys of the stored session.
const (
	keyEmail        = "email"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// ErrNoSession is returned by Load when nobody is logged in.
var ErrNoSession = errors.New("no session, run login first")

// Session is what a login leaves behind.
type Session struct {
	Email        string
	AccessToken  string
	RefreshToken string
}

// Store is a key/value table in SQLite.
type Store struct {
	db *sql.DB
}

var gooseMu sync.Mutex

// RunMigrations applies the embedded schema. goose keeps its settings in
// package globals, so concurrent callers are serialized.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the session database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, db dbx.DBTX, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session[%s]: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(ctx context.Context, db dbx.DBTX, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO session (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set session[%s]: %w", key, err)
	}
	return nil
}

// Save replaces the stored session atomically.
func (s *Store) Save(ctx context.Context, sess Session) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.set(ctx, tx, keyEmail, sess.Email); err != nil {
			return err
		}
		if err := s.set(ctx, tx, keyAccessToken, sess.AccessToken); err != nil {
			return err
		}
		return s.set(ctx, tx, keyRefreshToken, sess.RefreshToken)
	})
}

// Load returns the stored session or ErrNoSession.
func (s *Store) Load(ctx context.Context) (*Session, error) {
	var sess Session
	var err error

	if sess.Email, err = s.get(ctx, s.db, keyEmail); err != nil {
		return nil, err
	}
	if sess.AccessToken, err = s.get(ctx, s.db, keyAccessToken); err != nil {
		return nil, err
	}
	if sess.RefreshToken, err = s.get(ctx, s.db, keyRefreshToken); err != nil {
		return nil, err
	}
	if sess.RefreshToken == "" && sess.AccessToken == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Clear forgets the session.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
