package services

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func fastHasher(pepper string) *PasswordHasher {
	h := NewPasswordHasher(pepper)
	h.iterations = 1000
	return h
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := fastHasher("pepper")

	encoded, err := h.Hash("secret1")
	require.NoError(t, err)

	parts := strings.Split(encoded, "$")
	require.Len(t, parts, 4)
	assert.Equal(t, "pbkdf2-sha512", parts[0])
	assert.Equal(t, "1000", parts[1])
	assert.Len(t, parts[2], 32)
	assert.Len(t, parts[3], 128)

	ok, upgrade := h.Verify("secret1", encoded)
	assert.True(t, ok)
	assert.False(t, upgrade)

	ok, _ = h.Verify("secret2", encoded)
	assert.False(t, ok)
}

func TestPasswordHasher_SaltsDiffer(t *testing.T) {
	h := fastHasher("pepper")

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordHasher_PepperMatters(t *testing.T) {
	encoded, err := fastHasher("one").Hash("secret1")
	require.NoError(t, err)

	ok, _ := fastHasher("two").Verify("secret1", encoded)
	assert.False(t, ok)
}

func TestPasswordHasher_LegacyHash(t *testing.T) {
	legacy := hex.EncodeToString(pbkdf2.Key([]byte("secret1"), []byte(DefaultPasswordSalt), 100000, 64, sha512.New))
	h := NewPasswordHasher("")

	ok, upgrade := h.Verify("secret1", legacy)
	assert.True(t, ok)
	assert.True(t, upgrade)

	ok, _ = h.Verify("nope", legacy)
	assert.False(t, ok)
}

func TestPasswordHasher_Garbage(t *testing.T) {
	h := fastHasher("")
	for _, enc := range []string{"", "zz", "pbkdf2-sha512$x$00$00", "pbkdf2-sha512$10$zz$00", "pbkdf2-sha512$10$00"} {
		ok, _ := h.Verify("secret1", enc)
		assert.False(t, ok, enc)
	}
}
