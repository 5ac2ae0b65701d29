// Package passwords provides pluggable password hashing. Encoded hashes are
// self-describing, so Verify needs no out-of-band parameters.
package passwords

import "fmt"

// Algorithm names accepted by New.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Hasher hashes and verifies passwords. Verify must compare in constant time
// and return false for malformed hashes instead of failing.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) bool
}

// New returns the hasher registered under name with production parameters.
func New(name string) (Hasher, error) {
	switch name {
	case "", AlgorithmBcrypt:
		return NewBcrypt(0), nil
	case AlgorithmArgon2id:
		return NewArgon2id(nil), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}

// MaxPasswordBytes reports the longest password h accepts, or 0 when it has
// no limit.
func MaxPasswordBytes(h Hasher) int {
	if l, ok := h.(interface{ MaxPasswordBytes() int }); ok {
		return l.MaxPasswordBytes()
	}
	return 0
}
