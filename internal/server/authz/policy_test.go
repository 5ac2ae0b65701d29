package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/server/models"
)

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy("", "", nil)
	require.NoError(t, err)
	assert.Equal(t, ModeAuthenticated, p.Mode())

	_, err = NewPolicy(ModeClaim, "IdentityWrite", nil)
	assert.Error(t, err)

	_, err = NewPolicy(ModeClaim, ":Write", nil)
	assert.Error(t, err)

	_, err = NewPolicy("everyone", "", nil)
	assert.Error(t, err)
}

func TestAuthorize_Authenticated(t *testing.T) {
	p, err := NewPolicy(ModeAuthenticated, "", nil)
	require.NoError(t, err)

	assert.NoError(t, p.Authorize(&Principal{UserID: "u1"}))
	assert.ErrorIs(t, p.Authorize(nil), common.ErrorUnauthorized)
	assert.ErrorIs(t, p.Authorize(&Principal{}), common.ErrorUnauthorized)
}

func TestAuthorize_Claim(t *testing.T) {
	p, err := NewPolicy(ModeClaim, "Identity:Write", []string{" Root@Test.com "})
	require.NoError(t, err)

	tests := []struct {
		name string
		p    *Principal
		want error
	}{
		{"holder of required claim", &Principal{UserID: "u1", Claims: []models.Claim{{Type: "Identity", Value: "Write"}}}, nil},
		{"claim compared case-insensitively", &Principal{UserID: "u1", Claims: []models.Claim{{Type: "identity", Value: "WRITE"}}}, nil},
		{"admin email", &Principal{UserID: "u2", Email: "root@test.com"}, nil},
		{"other claims only", &Principal{UserID: "u3", Claims: []models.Claim{{Type: "Receipt", Value: "Write"}}}, common.ErrForbidden},
		{"no claims", &Principal{UserID: "u4", Email: "a@test.com"}, common.ErrForbidden},
		{"anonymous", nil, common.ErrorUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Authorize(tt.p)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthorize_ClaimAdminsOnly(t *testing.T) {
	p, err := NewPolicy(ModeClaim, "", []string{"root@test.com"})
	require.NoError(t, err)

	assert.NoError(t, p.Authorize(&Principal{UserID: "u1", Email: "root@test.com"}))
	assert.ErrorIs(t, p.Authorize(&Principal{UserID: "u2", Email: "a@test.com"}), common.ErrForbidden)
}
