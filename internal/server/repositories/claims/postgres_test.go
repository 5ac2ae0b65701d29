package claims

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

const selectQ = `(?s)^\s*SELECT\s+c\.claim_type,\s*c\.claim_value\s+FROM\s+users\s+u\s+LEFT\s+JOIN\s+user_claims\s+c\s+ON\s+c\.user_id\s*=\s*u\.id\s+WHERE\s+u\.id\s*=\s*\$1\s+ORDER\s+BY\s+c\.claim_type,\s*c\.claim_value\s*$`

func TestAddClaims_SingleStatement(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	q := `^INSERT INTO user_claims \(user_id, claim_type, claim_value\) VALUES \(\$1, \$2, \$3\), \(\$1, \$4, \$5\) ON CONFLICT DO NOTHING$`
	mock.ExpectExec(q).
		WithArgs("u1", "Receipt", "Read", "Receipt", "Write").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.AddClaims(context.Background(), "u1", []models.Claim{
		{Type: "Receipt", Value: "Read"},
		{Type: "Receipt", Value: "Write"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddClaims_Empty(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	require.NoError(t, repo.AddClaims(context.Background(), "u1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddClaims_UnknownUser(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`^INSERT INTO user_claims`).
		WithArgs("ghost", "Receipt", "Read").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "user_claims_user_id_fkey"})

	err := repo.AddClaims(context.Background(), "ghost", []models.Claim{{Type: "Receipt", Value: "Read"}})
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestAddClaims_DBError(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectExec(`^INSERT INTO user_claims`).
		WithArgs("u1", "Receipt", "Read").
		WillReturnError(errors.New("db down"))

	err := repo.AddClaims(context.Background(), "u1", []models.Claim{{Type: "Receipt", Value: "Read"}})
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestGetClaims(t *testing.T) {
	t.Run("claims present", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		rows := sqlmock.NewRows([]string{"claim_type", "claim_value"}).
			AddRow("Category", "Write").
			AddRow("Receipt", "Read")
		mock.ExpectQuery(selectQ).WithArgs("u1").WillReturnRows(rows)

		got, err := repo.GetClaims(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, []models.Claim{
			{Type: "Category", Value: "Write"},
			{Type: "Receipt", Value: "Read"},
		}, got)
	})

	t.Run("user without claims", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		rows := sqlmock.NewRows([]string{"claim_type", "claim_value"}).AddRow(nil, nil)
		mock.ExpectQuery(selectQ).WithArgs("u1").WillReturnRows(rows)

		got, err := repo.GetClaims(context.Background(), "u1")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("absent user", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectQuery(selectQ).WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"claim_type", "claim_value"}))

		_, err := repo.GetClaims(context.Background(), "ghost")
		assert.ErrorIs(t, err, common.ErrUserNotFound)
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		mock.ExpectQuery(selectQ).WithArgs("u1").WillReturnError(context.DeadlineExceeded)

		_, err := repo.GetClaims(context.Background(), "u1")
		assert.ErrorIs(t, err, common.ErrStorageUnavailable)
	})

	t.Run("row error", func(t *testing.T) {
		repo, mock, _ := newRepoWithMock(t)
		rows := sqlmock.NewRows([]string{"claim_type", "claim_value"}).
			AddRow("Receipt", "Read").
			RowError(0, errors.New("broken row"))
		mock.ExpectQuery(selectQ).WithArgs("u1").WillReturnRows(rows)

		_, err := repo.GetClaims(context.Background(), "u1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken row")
	})
}
