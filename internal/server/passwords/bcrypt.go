package passwords

import "golang.org/x/crypto/bcrypt"

// bcryptMaxBytes is the input limit of bcrypt; longer passwords are
// rejected by GenerateFromPassword.
const bcryptMaxBytes = 72

// Bcrypt hashes with golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. Cost 0 means bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b *Bcrypt) Verify(encoded, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}

// MaxPasswordBytes returns the bcrypt input limit.
func (b *Bcrypt) MaxPasswordBytes() int { return bcryptMaxBytes }
