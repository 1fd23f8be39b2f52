package services

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_IssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("secret")

	a, err := issuer.Issue("acc-1")
	require.NoError(t, err)
	b, err := issuer.Issue("acc-1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "every token is unique")

	id, err := issuer.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id)
}

func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	token, err := NewTokenIssuer("other").Issue("acc-1")
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret").Parse(token)
	assert.Error(t, err)
}

func TestTokenIssuer_RejectsUnsignedAndMalformed(t *testing.T) {
	issuer := NewTokenIssuer("secret")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "acc-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, tok := range []string{unsigned, "", "abc", "a.b.c"} {
		_, err := issuer.Parse(tok)
		assert.Error(t, err, tok)
	}
}

func TestTokenIssuer_RequiresSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ID: "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret").Parse(token)
	assert.Error(t, err)
}
