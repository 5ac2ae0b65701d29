package passwords

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/identity/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testHashers() map[string]Hasher {
	return map[string]Hasher{
		"bcrypt": NewBcrypt(bcrypt.MinCost),
		"argon2id": NewArgon2id(&cryptox.Argon2Params{
			Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32,
		}),
	}
}

func TestHashers_RoundTrip(t *testing.T) {
	for name, h := range testHashers() {
		t.Run(name, func(t *testing.T) {
			encoded, err := h.Hash("Xx1!aaaa")
			require.NoError(t, err)
			assert.NotContains(t, encoded, "Xx1!aaaa")

			assert.True(t, h.Verify(encoded, "Xx1!aaaa"))
			assert.False(t, h.Verify(encoded, "Xx1!aaab"))
			assert.False(t, h.Verify(encoded, ""))
		})
	}
}

func TestHashers_Salted(t *testing.T) {
	for name, h := range testHashers() {
		t.Run(name, func(t *testing.T) {
			a, err := h.Hash("same")
			require.NoError(t, err)
			b, err := h.Hash("same")
			require.NoError(t, err)
			assert.NotEqual(t, a, b)
		})
	}
}

func TestHashers_MalformedHash(t *testing.T) {
	for name, h := range testHashers() {
		t.Run(name, func(t *testing.T) {
			assert.False(t, h.Verify("", "pw"))
			assert.False(t, h.Verify("not-a-hash", "pw"))
		})
	}
}

func TestArgon2id_Format(t *testing.T) {
	h := NewArgon2id(&cryptox.Argon2Params{Time: 2, Memory: 8 * 1024, Threads: 1, KeyLen: 16})
	encoded, err := h.Hash("pw")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=2,p=1$"), encoded)

	p, salt, key, err := decodeArgon2id(encoded)
	require.NoError(t, err)
	assert.Equal(t, cryptox.Argon2Params{Time: 2, Memory: 8192, Threads: 1, KeyLen: 16}, p)
	assert.Len(t, salt, argonSaltLen)
	assert.Len(t, key, 16)
}

func TestArgon2id_DecodeErrors(t *testing.T) {
	for _, bad := range []string{
		"$argon2i$v=19$m=8,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=8,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8,t=1,p=1$!!$a2V5",
		"$argon2id$v=19$m=8,t=1,p=1$c2FsdA$",
		"$argon2id$v=19$m=8,t=1,p=1$c2FsdA",
	} {
		_, _, _, err := decodeArgon2id(bad)
		assert.ErrorIs(t, err, errMalformedHash, bad)
	}
}

func TestNew(t *testing.T) {
	h, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &Bcrypt{}, h)

	h, err = New(AlgorithmBcrypt)
	require.NoError(t, err)
	assert.IsType(t, &Bcrypt{}, h)

	h, err = New(AlgorithmArgon2id)
	require.NoError(t, err)
	assert.IsType(t, &Argon2id{}, h)

	_, err = New("md5")
	assert.Error(t, err)
}

func TestMaxPasswordBytes(t *testing.T) {
	b := NewBcrypt(bcrypt.MinCost)
	assert.Equal(t, 72, MaxPasswordBytes(b))

	at := "Xx1!" + strings.Repeat("a", 68)
	_, err := b.Hash(at)
	require.NoError(t, err)
	_, err = b.Hash(at + "a")
	assert.Error(t, err)

	assert.Zero(t, MaxPasswordBytes(NewArgon2id(nil)))
}
