// Package credentials validates sign-up input: email format and the password
// policy including confirmation equality. It has no side effects.
package credentials

import (
	"crypto/subtle"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/dmitrijs2005/identity/internal/common"
)

// PasswordPolicy is the configurable complexity policy.
type PasswordPolicy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	// MaxBytes caps the encoded password length; 0 means no cap.
	MaxBytes int
}

// DefaultPolicy is 8 characters with every character class required.
func DefaultPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

var (
	reUpper  = regexp.MustCompile(`\p{Lu}`)
	reLower  = regexp.MustCompile(`\p{Ll}`)
	reDigit  = regexp.MustCompile(`\p{Nd}`)
	reSymbol = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// Validator checks credentials against a PasswordPolicy.
type Validator struct {
	policy PasswordPolicy
	rules  []validation.Rule
}

// NewValidator builds the ozzo rule set for policy once.
func NewValidator(policy PasswordPolicy) *Validator {
	if policy.MinLength < 1 {
		policy.MinLength = 1
	}

	rules := []validation.Rule{
		validation.Required.Error("must not be empty"),
		validation.RuneLength(policy.MinLength, 0).
			Error(fmt.Sprintf("must be at least %d characters long", policy.MinLength)),
	}
	if policy.MaxBytes > 0 {
		rules = append(rules, maxBytes(policy.MaxBytes))
	}
	if policy.RequireUpper {
		rules = append(rules, validation.Match(reUpper).Error("must contain an upper-case letter"))
	}
	if policy.RequireLower {
		rules = append(rules, validation.Match(reLower).Error("must contain a lower-case letter"))
	}
	if policy.RequireDigit {
		rules = append(rules, validation.Match(reDigit).Error("must contain a digit"))
	}
	if policy.RequireSymbol {
		rules = append(rules, validation.Match(reSymbol).Error("must contain a symbol"))
	}

	return &Validator{policy: policy, rules: rules}
}

func maxBytes(n int) validation.Rule {
	return validation.By(func(value interface{}) error {
		if s, _ := value.(string); len(s) > n {
			return fmt.Errorf("must be at most %d bytes long", n)
		}
		return nil
	})
}

// Policy returns the policy the validator enforces.
func (v *Validator) Policy() PasswordPolicy { return v.policy }

// Validate checks password against the policy, then confirmation equality.
// A weak password yields an error wrapping common.ErrPasswordTooWeak that
// lists every violated rule; a mismatch yields common.ErrPasswordMismatch.
func (v *Validator) Validate(password, confirmation string) error {
	var violations []string
	for _, rule := range v.rules {
		if err := validation.Validate(password, rule); err != nil {
			violations = append(violations, err.Error())
		}
	}
	if len(violations) > 0 {
		return fmt.Errorf("%w: %s", common.ErrPasswordTooWeak, strings.Join(violations, "; "))
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(confirmation)) != 1 {
		return common.ErrPasswordMismatch
	}
	return nil
}

// ValidateEmail checks the address format. It does not resolve MX records.
func (v *Validator) ValidateEmail(email string) error {
	err := validation.Validate(strings.TrimSpace(email),
		validation.Required,
		validation.RuneLength(3, 254),
		is.Email,
	)
	if err != nil {
		return fmt.Errorf("%w: %s", common.ErrInvalidEmail, err.Error())
	}
	return nil
}
