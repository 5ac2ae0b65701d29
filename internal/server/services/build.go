package services

import (
	"fmt"

	"github.com/dmitrijs2005/identity/internal/dbx"
	"github.com/dmitrijs2005/identity/internal/logging"
	"github.com/dmitrijs2005/identity/internal/server/authz"
	"github.com/dmitrijs2005/identity/internal/server/claims"
	"github.com/dmitrijs2005/identity/internal/server/config"
	"github.com/dmitrijs2005/identity/internal/server/credentials"
	"github.com/dmitrijs2005/identity/internal/server/passwords"
	"github.com/dmitrijs2005/identity/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/identity/internal/server/tokens"
)

// Build assembles an IdentityService and its token issuer from cfg.
func Build(cfg *config.Config, db dbx.Transactor, repos repomanager.RepositoryManager, log logging.Logger) (*IdentityService, *tokens.Issuer, error) {
	hasher, err := passwords.New(cfg.PasswordHasher)
	if err != nil {
		return nil, nil, err
	}

	policy, err := authz.NewPolicy(cfg.ClaimPolicy, cfg.RequiredClaim, cfg.AdminEmails)
	if err != nil {
		return nil, nil, fmt.Errorf("claim policy: %w", err)
	}

	validator := credentials.NewValidator(credentials.PasswordPolicy{
		MinLength:     cfg.PasswordMinLength,
		RequireUpper:  cfg.PasswordRequireUpper,
		RequireLower:  cfg.PasswordRequireLower,
		RequireDigit:  cfg.PasswordRequireDigit,
		RequireSymbol: cfg.PasswordRequireSymbol,
		MaxBytes:      passwords.MaxPasswordBytes(hasher),
	})

	issuer := tokens.NewIssuer(tokens.Config{
		SecretKey:     []byte(cfg.SecretKey),
		Issuer:        cfg.Issuer,
		AccessTTL:     cfg.AccessTokenValidityDuration,
		RefreshTTL:    cfg.RefreshTokenValidityDuration,
		SessionPolicy: cfg.SessionPolicy,
	}, db, repos, log)

	registry := claims.NewDefaultRegistry(cfg.ExtraClaimTypes, cfg.ExtraClaimValues)

	svc, err := NewIdentityService(db, repos, validator, hasher, registry, issuer, policy, log)
	if err != nil {
		return nil, nil, err
	}
	return svc, issuer, nil
}
