package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID_SortableAndUnique(t *testing.T) {
	prev := NewULID()
	seen := map[string]struct{}{prev: {}}
	for i := 0; i < 1000; i++ {
		id := NewULID()
		_, err := ulid.ParseStrict(id)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
		prev = id
	}
}

func TestNewUUID(t *testing.T) {
	a, b := NewUUID(), NewUUID()
	assert.NotEqual(t, a, b)
	u, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), u.Version())
}
