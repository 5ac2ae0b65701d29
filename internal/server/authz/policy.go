// Package authz decides whether an authenticated principal may manage
// claims of other users.
package authz

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/server/claims"
	"github.com/dmitrijs2005/identity/internal/server/models"
)

// Modes.
const (
	// ModeAuthenticated lets any holder of a valid access token assign claims.
	ModeAuthenticated = "authenticated"
	// ModeClaim requires the principal to hold RequiredClaim or be listed in
	// AdminEmails.
	ModeClaim = "claim"
)

// Principal is the verified caller identity taken from an access token.
type Principal struct {
	UserID string
	Email  string
	Claims []models.Claim
}

// Policy gates claim assignment.
type Policy struct {
	mode     string
	required models.Claim
	admins   map[string]struct{}
}

// NewPolicy builds a policy. requiredClaim is "Type:Value" and only used in
// ModeClaim; admin emails are compared normalized.
func NewPolicy(mode, requiredClaim string, adminEmails []string) (*Policy, error) {
	p := &Policy{mode: mode, admins: make(map[string]struct{}, len(adminEmails))}

	switch mode {
	case "", ModeAuthenticated:
		p.mode = ModeAuthenticated
	case ModeClaim:
		if requiredClaim != "" {
			t, v, ok := strings.Cut(requiredClaim, ":")
			if !ok || t == "" || v == "" {
				return nil, fmt.Errorf("required claim %q is not Type:Value", requiredClaim)
			}
			p.required = models.Claim{Type: t, Value: v}
		}
	default:
		return nil, fmt.Errorf("unknown claim policy %q", mode)
	}

	for _, e := range adminEmails {
		if e = common.NormalizeEmail(e); e != "" {
			p.admins[e] = struct{}{}
		}
	}
	return p, nil
}

// Mode returns the effective mode.
func (p *Policy) Mode() string { return p.mode }

// Authorize returns nil when principal may assign claims, common.ErrForbidden
// when it may not and common.ErrorUnauthorized without a principal.
func (p *Policy) Authorize(principal *Principal) error {
	if principal == nil || principal.UserID == "" {
		return common.ErrorUnauthorized
	}
	if p.mode == ModeAuthenticated {
		return nil
	}
	if _, ok := p.admins[common.NormalizeEmail(principal.Email)]; ok {
		return nil
	}
	if p.required.Type != "" && claims.Contains(principal.Claims, p.required) {
		return nil
	}
	return common.ErrForbidden
}
