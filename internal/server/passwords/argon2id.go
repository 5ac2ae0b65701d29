package passwords

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/identity/internal/common"
	"github.com/dmitrijs2005/identity/internal/cryptox"
)

const argonSaltLen = 16

var errMalformedHash = errors.New("malformed argon2id hash")

// Argon2id hashes with argon2id in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type Argon2id struct {
	params cryptox.Argon2Params
}

// NewArgon2id returns an argon2id hasher; nil params means
// cryptox.DefaultArgon2Params.
func NewArgon2id(params *cryptox.Argon2Params) *Argon2id {
	p := cryptox.DefaultArgon2Params
	if params != nil {
		p = *params
	}
	return &Argon2id{params: p}
}

func (a *Argon2id) Hash(password string) (string, error) {
	salt := common.GenerateRandByteArray(argonSaltLen)
	if salt == nil {
		return "", errors.New("cannot read random salt")
	}
	key := cryptox.DeriveKey([]byte(password), salt, a.params)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		a.params.Memory, a.params.Time, a.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify re-derives the key with the parameters stored in encoded.
func (a *Argon2id) Verify(encoded, password string) bool {
	p, salt, key, err := decodeArgon2id(encoded)
	if err != nil {
		return false
	}
	got := cryptox.DeriveKey([]byte(password), salt, p)
	defer common.WipeByteArray(got)
	return cryptox.Equal(got, key)
}

func decodeArgon2id(encoded string) (cryptox.Argon2Params, []byte, []byte, error) {
	var p cryptox.Argon2Params

	parts := strings.Split(encoded, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != 19 {
		return p, nil, nil, errMalformedHash
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errMalformedHash
	}
	p.KeyLen = uint32(len(key))

	return p, salt, key, nil
}
