package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_EmbeddedAndAnnotated(t *testing.T) {
	files, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"00001_init.sql", "00002_refresh_tokens.sql"}, files)

	for _, name := range files {
		b, err := fs.ReadFile(Migrations, name)
		require.NoError(t, err)
		body := string(b)
		assert.True(t, strings.HasPrefix(body, "-- +goose Up"), name)
		assert.Contains(t, body, "-- +goose Down", name)
	}
}

func TestMigrations_EmailUniqueCaseInsensitive(t *testing.T) {
	b, err := fs.ReadFile(Migrations, "00001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_key ON users (lower(email))")
}
