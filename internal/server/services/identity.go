// Package services contains server-side business logic. IdentityService
// orchestrates sign-up, sign-in, token refresh and claim management on top
// of the credential validator, the stores and the token issuer.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/logging"
	"github.com/dmitrijs2005/identity/internal/server/authz"
	"github.com/dmitrijs2005/identity/internal/server/claims"
	"github.com/dmitrijs2005/identity/internal/server/credentials"
	"github.com/dmitrijs2005/identity/internal/server/metrics"
	"github.com/dmitrijs2005/identity/internal/server/models"
	"github.com/dmitrijs2005/identity/internal/server/passwords"
	"github.com/dmitrijs2005/identity/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/identity/internal/server/repositories/users"
	"github.com/dmitrijs2005/identity/internal/server/tokens"
	"github.com/dmitrijs2005/identity/internal/telemetry"
)

// dummyPassword feeds the hash computed for unknown emails at sign-in.
const dummyPassword = "identity-timing-equalizer"

// IdentityService provides the identity operations:
//   - SignUp: validate credentials and create a user (no tokens)
//   - SignIn: verify credentials and start a session
//   - RefreshToken / Logout: rotate or end a session
//   - AddUserClaim / GetUserClaims: manage a user's claim set
//   - Authenticate / AuthorizeClaimChange: resolve and gate callers
type IdentityService struct {
	db        dbx.Transactor
	repos     repomanager.RepositoryManager
	validator *credentials.Validator
	hasher    passwords.Hasher
	registry  *claims.Registry
	issuer    *tokens.Issuer
	policy    *authz.Policy
	log       logging.Logger
	tracer    trace.Tracer

	dummyHash string
}

// NewIdentityService wires the service. It hashes a throwaway password once
// so SignIn can spend the same effort on unknown emails.
func NewIdentityService(
	db dbx.Transactor,
	repos repomanager.RepositoryManager,
	validator *credentials.Validator,
	hasher passwords.Hasher,
	registry *claims.Registry,
	issuer *tokens.Issuer,
	policy *authz.Policy,
	log logging.Logger,
) (*IdentityService, error) {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &IdentityService{
		db:        db,
		repos:     repos,
		validator: validator,
		hasher:    hasher,
		registry:  registry,
		issuer:    issuer,
		policy:    policy,
		log:       log.With("module", "identity"),
		tracer:    telemetry.Tracer(),
		dummyHash: dummy,
	}, nil
}

// SignUp validates the email and the password pair and creates the user.
// Duplicate emails fail with common.ErrDuplicateEmail; nothing is stored
// when validation fails.
func (s *IdentityService) SignUp(ctx context.Context, email, password, confirmation string) (user *models.User, err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.SignUp")
	defer func() { s.finish(span, "signup", err) }()

	email = common.NormalizeEmail(email)
	if err := s.validator.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(password, confirmation); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Error(ctx, "password hashing failed", "error", err)
		return nil, common.ErrorInternal
	}

	user, err = s.repos.Users(s.db.Conn()).Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if !errors.Is(err, common.ErrDuplicateEmail) {
			s.log.Error(ctx, "user creation failed", "error", err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.log.Info(ctx, "user signed up", "user_id", user.ID)
	return user, nil
}

// SignIn verifies the credentials and returns a fresh token pair. Unknown
// emails and wrong passwords both yield common.ErrInvalidCredentials.
func (s *IdentityService) SignIn(ctx context.Context, email, password string) (pair *tokens.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.SignIn")
	defer func() { s.finish(span, "login", err) }()

	user, err := s.repos.Users(s.db.Conn()).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(s.dummyHash, password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !users.VerifyPassword(s.hasher, user, password) {
		s.log.Info(ctx, "sign in rejected", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	list, err := s.repos.Claims(s.db.Conn()).GetClaims(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	pair, err = s.issuer.IssuePair(ctx, user, list)
	if err != nil {
		s.log.Error(ctx, "token issue failed", "user_id", user.ID, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.log.Info(ctx, "user signed in", "user_id", user.ID)
	return pair, nil
}

// RefreshToken rotates a refresh token. See tokens.Issuer.Rotate.
func (s *IdentityService) RefreshToken(ctx context.Context, refreshToken string) (pair *tokens.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.RefreshToken")
	defer func() { s.finish(span, "refresh", err) }()

	return s.issuer.Rotate(ctx, refreshToken)
}

// Logout revokes the session the refresh token belongs to.
func (s *IdentityService) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.Logout")
	defer func() { s.finish(span, "logout", err) }()

	return s.issuer.Revoke(ctx, refreshToken)
}

// AddUserClaim unions claims into the set of the user with email. Claims
// are checked against the registry first; the caller is expected to have
// passed AuthorizeClaimChange.
func (s *IdentityService) AddUserClaim(ctx context.Context, email string, list []models.Claim) (err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.AddUserClaim")
	defer func() { s.finish(span, "add_claims", err) }()

	canonical, err := s.registry.Validate(list)
	if err != nil {
		return err
	}

	var userID string
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repos.Users(tx).FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrUserNotFound
			}
			return err
		}
		userID = user.ID
		return s.repos.Claims(tx).AddClaims(ctx, user.ID, canonical)
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "claims added", "user_id", userID, "count", len(canonical))
	return nil
}

// GetUserClaims returns the claim set of the user with email, sorted. A user
// without claims yields an empty slice.
func (s *IdentityService) GetUserClaims(ctx context.Context, email string) (list []models.Claim, err error) {
	ctx, span := s.tracer.Start(ctx, "IdentityService.GetUserClaims")
	defer func() { s.finish(span, "get_claims", err) }()

	conn := s.db.Conn()
	user, err := s.repos.Users(conn).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, err
	}
	return s.repos.Claims(conn).GetClaims(ctx, user.ID)
}

// Authenticate turns an access token into a principal. Failures wrap
// common.ErrInvalidOrExpiredToken.
func (s *IdentityService) Authenticate(accessToken string) (*authz.Principal, error) {
	c, err := s.issuer.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	return &authz.Principal{UserID: c.UserID(), Email: c.Email, Claims: c.Claims}, nil
}

// AuthorizeClaimChange applies the claim policy to principal.
func (s *IdentityService) AuthorizeClaimChange(ctx context.Context, principal *authz.Principal) error {
	err := s.policy.Authorize(principal)
	if errors.Is(err, common.ErrForbidden) {
		s.log.Warn(ctx, "claim change forbidden", "user_id", principal.UserID)
	}
	return err
}

// Registry exposes the claim registry for transports that list claim kinds.
func (s *IdentityService) Registry() *claims.Registry { return s.registry }

func (s *IdentityService) finish(span trace.Span, op string, err error) {
	metrics.AuthEvent(op, err)
	if err != nil {
		span.SetStatus(codes.Error, metrics.Result(err))
		span.RecordError(err)
	}
	span.End()
}
