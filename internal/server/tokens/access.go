// Package tokens issues and verifies access tokens and manages the refresh
// token lifecycle: issue, rotate with reuse detection, revoke.
//
// Access tokens are HS256 JWTs verified without touching storage. Refresh
// tokens are opaque random strings; only their SHA-256 hash is persisted.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/ids"
	"github.com/dmitrijs2005/identity/internal/server/models"
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email  string         `json:"email"`
	Claims []models.Claim `json:"claims"`
}

// UserID returns the subject.
func (c *AccessClaims) UserID() string { return c.Subject }

// Signer signs and verifies access tokens. It is a pure function of the
// token, the key and the clock.
type Signer struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
	now       func() time.Time
}

func NewSigner(secretKey []byte, issuer string, ttl time.Duration) *Signer {
	return &Signer{secretKey: secretKey, issuer: issuer, ttl: ttl, now: time.Now}
}

// Sign issues an access token for user carrying claims. Every call yields a
// distinct token thanks to the random jti.
func (s *Signer) Sign(user *models.User, claims []models.Claim) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)

	if claims == nil {
		claims = []models.Claim{}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        ids.NewUUID(),
		},
		Email:  user.Email,
		Claims: claims,
	})

	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, exp, nil
}

// Verify checks signature, algorithm, issuer and time claims. Every failure
// wraps common.ErrInvalidOrExpiredToken.
func (s *Signer) Verify(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", common.ErrInvalidOrExpiredToken)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidOrExpiredToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidOrExpiredToken
	}
	return claims, nil
}
