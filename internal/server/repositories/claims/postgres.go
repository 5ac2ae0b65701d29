package claims

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/server/models"
)

const userForeignKey = "user_claims_user_id_fkey"

// PostgresRepository stores claims in user_claims over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// AddClaims inserts every pair with one multi-row statement, so the batch is
// applied entirely or not at all even outside an explicit transaction.
func (r *PostgresRepository) AddClaims(ctx context.Context, userID string, claims []models.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO user_claims (user_id, claim_type, claim_value) VALUES ")

	args := make([]any, 0, 1+2*len(claims))
	args = append(args, userID)
	for i, c := range claims {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($1, $%d, $%d)", len(args)+1, len(args)+2)
		args = append(args, c.Type, c.Value)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		if dbx.IsForeignKeyViolation(err, userForeignKey) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return nil
}

// GetClaims reads the user row and its claims in one statement: no row
// means no user, a single NULL row means a user without claims.
func (r *PostgresRepository) GetClaims(ctx context.Context, userID string) ([]models.Claim, error) {
	query := `
		SELECT c.claim_type, c.claim_value
		FROM users u
		LEFT JOIN user_claims c ON c.user_id = u.id
		WHERE u.id = $1
		ORDER BY c.claim_type, c.claim_value
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	defer rows.Close()

	userSeen := false
	result := make([]models.Claim, 0)
	for rows.Next() {
		userSeen = true
		var t, v sql.NullString
		if err := rows.Scan(&t, &v); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if t.Valid && v.Valid {
			result = append(result, models.Claim{Type: t.String, Value: v.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	if !userSeen {
		return nil, common.ErrUserNotFound
	}
	return result, nil
}
