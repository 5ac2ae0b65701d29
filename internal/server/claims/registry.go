// Package claims holds the registry of known claim types and claim values.
//
// Both dimensions are open enumerations: the built-in names cover the
// observed domain (Receipt/Category × Read/Write/...) and deployments add
// their own through configuration. Lookups are case-insensitive and always
// yield the canonical spelling that was registered.
package claims

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/server/models"
)

// Built-in claim types.
const (
	TypeReceipt  = "Receipt"
	TypeCategory = "Category"
	// TypeIdentity guards identity management itself, e.g. Identity:Write
	// lets the holder grant claims to others.
	TypeIdentity = "Identity"
)

// Built-in claim values.
const (
	ValueRead   = "Read"
	ValueWrite  = "Write"
	ValueInsert = "Insert"
	ValueUpdate = "Update"
	ValueDelete = "Delete"
)

// Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]string
	values map[string]string
}

// NewRegistry returns a registry with no entries.
func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[string]string),
		values: make(map[string]string),
	}
}

// NewDefaultRegistry returns a registry preloaded with the built-in names
// plus the given extra types and values. Blank extras are ignored.
func NewDefaultRegistry(extraTypes, extraValues []string) *Registry {
	r := NewRegistry()
	r.RegisterTypes(TypeReceipt, TypeCategory, TypeIdentity)
	r.RegisterValues(ValueRead, ValueWrite, ValueInsert, ValueUpdate, ValueDelete)
	r.RegisterTypes(extraTypes...)
	r.RegisterValues(extraValues...)
	return r
}

// RegisterTypes adds claim types. The first spelling registered for a name
// stays canonical.
func (r *Registry) RegisterTypes(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	register(r.types, names)
}

// RegisterValues adds claim values.
func (r *Registry) RegisterValues(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	register(r.values, names)
}

func register(m map[string]string, names []string) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := m[key]; !ok {
			m[key] = n
		}
	}
}

// Known reports whether both parts of c are registered.
func (r *Registry) Known(c models.Claim) bool {
	_, err := r.Canonical(c)
	return err == nil
}

// Canonical returns c with both parts in their registered spelling or an
// error wrapping common.ErrUnknownClaim.
func (r *Registry) Canonical(c models.Claim) (models.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[strings.ToLower(strings.TrimSpace(c.Type))]
	if !ok {
		return models.Claim{}, fmt.Errorf("%w: type %q", common.ErrUnknownClaim, c.Type)
	}
	v, ok := r.values[strings.ToLower(strings.TrimSpace(c.Value))]
	if !ok {
		return models.Claim{}, fmt.Errorf("%w: value %q", common.ErrUnknownClaim, c.Value)
	}
	return models.Claim{Type: t, Value: v}, nil
}

// Validate canonicalizes every claim in the list and drops duplicates. An
// empty list is a validation error too.
func (r *Registry) Validate(list []models.Claim) ([]models.Claim, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no claims given", common.ErrUnknownClaim)
	}

	out := make([]models.Claim, 0, len(list))
	seen := make(map[models.Claim]struct{}, len(list))
	for _, c := range list {
		cc, err := r.Canonical(c)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[cc]; dup {
			continue
		}
		seen[cc] = struct{}{}
		out = append(out, cc)
	}
	return out, nil
}

// Parse reads "Type:Value" into a canonical claim.
func (r *Registry) Parse(s string) (models.Claim, error) {
	t, v, ok := strings.Cut(s, ":")
	if !ok {
		return models.Claim{}, fmt.Errorf("%w: %q is not Type:Value", common.ErrUnknownClaim, s)
	}
	return r.Canonical(models.Claim{Type: t, Value: v})
}

// Types lists registered claim types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.types)
}

// Values lists registered claim values in sorted order.
func (r *Registry) Values() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.values)
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Sort orders claims by type, then value.
func Sort(list []models.Claim) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Type != list[j].Type {
			return list[i].Type < list[j].Type
		}
		return list[i].Value < list[j].Value
	})
}

// Contains reports whether list holds want, compared case-insensitively.
func Contains(list []models.Claim, want models.Claim) bool {
	for _, c := range list {
		if strings.EqualFold(c.Type, want.Type) && strings.EqualFold(c.Value, want.Value) {
			return true
		}
	}
	return false
}
