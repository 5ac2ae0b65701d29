package models

import "time"

// RefreshTokenState is the lifecycle position of a single refresh token.
type RefreshTokenState int

const (
	RefreshTokenActive RefreshTokenState = iota
	RefreshTokenConsumed
	RefreshTokenRevoked
	RefreshTokenExpired
)

func (s RefreshTokenState) String() string {
	switch s {
	case RefreshTokenActive:
		return "active"
	case RefreshTokenConsumed:
		return "consumed"
	case RefreshTokenRevoked:
		return "revoked"
	case RefreshTokenExpired:
		return "expired"
	}
	return "unknown"
}

// RefreshToken is the stored record of an issued refresh token. Only the
// SHA-256 hash of the opaque value is kept. FamilyID groups the token with
// every token rotated from the same login.
type RefreshToken struct {
	ID         string
	UserID     string
	FamilyID   string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	ConsumedAt *time.Time
	RevokedAt  *time.Time
}

// State reports the token state at now. Revocation wins over consumption,
// and both win over expiry so reuse of an old token is still detected.
func (t *RefreshToken) State(now time.Time) RefreshTokenState {
	switch {
	case t.RevokedAt != nil:
		return RefreshTokenRevoked
	case t.ConsumedAt != nil:
		return RefreshTokenConsumed
	case !now.Before(t.ExpiresAt):
		return RefreshTokenExpired
	default:
		return RefreshTokenActive
	}
}
