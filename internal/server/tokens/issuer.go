package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/cryptox"
	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/ids"
	"github.com/dmitrijs2005/identity/internal/logging"
	"github.com/dmitrijs2005/identity/internal/server/metrics"
	"github.com/dmitrijs2005/identity/internal/server/models"
	"github.com/dmitrijs2005/identity/internal/server/repositories/repomanager"
)

// refreshTokenBytes is the entropy of an opaque refresh token.
const refreshTokenBytes = 32

// Session policies.
const (
	// SessionMulti lets each login start an independent family.
	SessionMulti = "multi"
	// SessionSingle revokes every earlier family of the user on login.
	SessionSingle = "single"
)

// errReuse aborts the rotation transaction when a replay is detected; the
// family is revoked after rollback so the revocation survives.
var errReuse = errors.New("refresh token reuse")

// TokenPair is what a successful login or rotation hands to the client.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Config configures an Issuer.
type Config struct {
	SecretKey     []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SessionPolicy string
}

// Issuer owns token creation and the refresh token state machine:
//
//	Active --rotate--> Consumed --presented again--> family revoked
//	Active --logout--> Revoked
//	Active --time--> Expired
//
// Only Active tokens can be rotated.
type Issuer struct {
	signer *Signer
	cfg    Config
	db     dbx.Transactor
	repos  repomanager.RepositoryManager
	log    logging.Logger
	now    func() time.Time
}

func NewIssuer(cfg Config, db dbx.Transactor, repos repomanager.RepositoryManager, log logging.Logger) *Issuer {
	if cfg.SessionPolicy == "" {
		cfg.SessionPolicy = SessionMulti
	}
	return &Issuer{
		signer: NewSigner(cfg.SecretKey, cfg.Issuer, cfg.AccessTTL),
		cfg:    cfg,
		db:     db,
		repos:  repos,
		log:    log.With("module", "tokens"),
		now:    time.Now,
	}
}

// IssueAccessToken signs an access token for user with claims.
func (i *Issuer) IssueAccessToken(user *models.User, claims []models.Claim) (string, time.Time, error) {
	tok, exp, err := i.signer.Sign(user, claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	metrics.TokenIssued("access")
	return tok, exp, nil
}

// VerifyAccessToken checks an access token without store access.
func (i *Issuer) VerifyAccessToken(token string) (*AccessClaims, error) {
	return i.signer.Verify(token)
}

// IssueRefreshToken creates a refresh token in familyID through db and
// returns the opaque value. Only its hash is stored.
func (i *Issuer) IssueRefreshToken(ctx context.Context, db dbx.DBTX, userID, familyID string) (string, time.Time, error) {
	value, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate refresh token: %w", err)
	}

	now := i.now()
	rec := &models.RefreshToken{
		ID:        ids.NewULID(),
		UserID:    userID,
		FamilyID:  familyID,
		TokenHash: cryptox.HashToken(value),
		ExpiresAt: now.Add(i.cfg.RefreshTTL),
		CreatedAt: now,
	}
	if err := i.repos.RefreshTokens(db).Create(ctx, rec); err != nil {
		return "", time.Time{}, err
	}

	metrics.TokenIssued("refresh")
	return value, rec.ExpiresAt, nil
}

// IssuePair starts a new session for user: a fresh token family plus an
// access token. Under the single session policy every earlier family of the
// user is revoked in the same transaction.
func (i *Issuer) IssuePair(ctx context.Context, user *models.User, claims []models.Claim) (*TokenPair, error) {
	pair := &TokenPair{}

	err := i.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if i.cfg.SessionPolicy == SessionSingle {
			n, err := i.repos.RefreshTokens(tx).RevokeUser(ctx, user.ID, i.now())
			if err != nil {
				return err
			}
			if n > 0 {
				i.log.Info(ctx, "previous sessions revoked", "user_id", user.ID, "count", n)
			}
		}

		var err error
		pair.RefreshToken, pair.RefreshExpiresAt, err = i.IssueRefreshToken(ctx, tx, user.ID, ids.NewUUID())
		return err
	})
	if err != nil {
		return nil, err
	}

	pair.AccessToken, pair.AccessExpiresAt, err = i.IssueAccessToken(user, claims)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Rotate exchanges an active refresh token for a new pair in the same
// family. The old token is consumed with a conditional update, so of two
// concurrent rotations only one succeeds; the other is handled as reuse.
// Presenting a consumed token revokes its whole family. Every failure seen
// by the caller wraps common.ErrInvalidOrExpiredToken.
func (i *Issuer) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrInvalidOrExpiredToken
	}
	hash := cryptox.HashToken(refreshToken)

	var (
		pair   = &TokenPair{}
		user   *models.User
		claims []models.Claim
		reused *models.RefreshToken
	)

	err := i.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		rt := i.repos.RefreshTokens(tx)

		rec, err := rt.FindByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return err
		}

		now := i.now()
		switch rec.State(now) {
		case models.RefreshTokenActive:
		case models.RefreshTokenConsumed:
			reused = rec
			return errReuse
		default:
			return common.ErrInvalidOrExpiredToken
		}

		won, err := rt.Consume(ctx, rec.ID, now)
		if err != nil {
			return err
		}
		if !won {
			reused = rec
			return errReuse
		}

		user, err = i.repos.Users(tx).FindByID(ctx, rec.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidOrExpiredToken
			}
			return err
		}
		claims, err = i.repos.Claims(tx).GetClaims(ctx, user.ID)
		if err != nil {
			return err
		}

		pair.RefreshToken, pair.RefreshExpiresAt, err = i.IssueRefreshToken(ctx, tx, user.ID, rec.FamilyID)
		return err
	})

	if errors.Is(err, errReuse) {
		i.revokeReusedFamily(ctx, reused)
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidOrExpiredToken, common.ErrRefreshTokenReused)
	}
	if err != nil {
		return nil, err
	}

	pair.AccessToken, pair.AccessExpiresAt, err = i.IssueAccessToken(user, claims)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (i *Issuer) revokeReusedFamily(ctx context.Context, rec *models.RefreshToken) {
	metrics.RefreshReuse()

	// the request context may already be gone; the revocation must not be lost with it
	ctx = context.WithoutCancel(ctx)
	n, err := i.repos.RefreshTokens(i.db.Conn()).RevokeFamily(ctx, rec.FamilyID, i.now())
	if err != nil {
		i.log.Error(ctx, "refresh token family revocation failed",
			"user_id", rec.UserID, "family_id", rec.FamilyID, "error", err)
		return
	}
	i.log.Warn(ctx, "refresh token reuse detected, family revoked",
		"user_id", rec.UserID, "family_id", rec.FamilyID, "revoked", n)
}

// Revoke ends the session the refresh token belongs to by revoking its
// family. Unknown, expired and already revoked tokens yield
// common.ErrInvalidOrExpiredToken. A consumed token is treated as reuse.
func (i *Issuer) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return common.ErrInvalidOrExpiredToken
	}

	rt := i.repos.RefreshTokens(i.db.Conn())
	rec, err := rt.FindByHash(ctx, cryptox.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpiredToken
		}
		return err
	}

	switch rec.State(i.now()) {
	case models.RefreshTokenActive:
		if _, err := rt.RevokeFamily(ctx, rec.FamilyID, i.now()); err != nil {
			return err
		}
		return nil
	case models.RefreshTokenConsumed:
		i.revokeReusedFamily(ctx, rec)
		return fmt.Errorf("%w: %w", common.ErrInvalidOrExpiredToken, common.ErrRefreshTokenReused)
	default:
		return common.ErrInvalidOrExpiredToken
	}
}

// RevokeUser revokes every session of a user.
func (i *Issuer) RevokeUser(ctx context.Context, userID string) (int64, error) {
	return i.repos.RefreshTokens(i.db.Conn()).RevokeUser(ctx, userID, i.now())
}

// PurgeExpired deletes refresh tokens that expired more than grace ago.
func (i *Issuer) PurgeExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return i.repos.RefreshTokens(i.db.Conn()).DeleteExpired(ctx, i.now().Add(-grace))
}
