package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	h := NewArgon2Hasher(DefaultArgon2Params())

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	assert.True(t, h.Verify("secret123", hash))
	assert.False(t, h.Verify("secret124", hash))
	assert.False(t, h.Verify("", hash))
}

func TestHashesAreSalted(t *testing.T) {
	h := NewArgon2Hasher(DefaultArgon2Params())

	h1, err := h.Hash("same-password")
	require.NoError(t, err)
	h2, err := h.Hash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	h := NewArgon2Hasher(DefaultArgon2Params())
	assert.False(t, h.Verify("pw", "not-a-hash"))
	assert.False(t, h.Verify("pw", "$argon2id$v=19$m=65536,t=3,p=2$bad!$bad!"))
}

func TestNeedsRehash(t *testing.T) {
	weak := Argon2Params{Memory: 16 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	old := NewArgon2Hasher(weak)
	hash, err := old.Hash("secret123")
	require.NoError(t, err)

	current := NewArgon2Hasher(DefaultArgon2Params())
	assert.True(t, current.NeedsRehash(hash), "hash with weaker params must need rehash")
	assert.False(t, old.NeedsRehash(hash))

	fresh, err := current.Hash("secret123")
	require.NoError(t, err)
	assert.False(t, current.NeedsRehash(fresh))

	assert.True(t, current.NeedsRehash("garbage"))
}
