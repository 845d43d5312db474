package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	signed, err := issuer.Issue(42, "alice@bank.dev")
	require.NoError(t, err)

	claims, err := issuer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice@bank.dev", claims.Email)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := NewIssuer("secret-a", time.Hour).Issue(1, "a@b.c")
	require.NoError(t, err)

	_, err = NewIssuer("secret-b", time.Hour).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewIssuer("secret", -time.Minute)

	signed, err := issuer.Issue(1, "a@b.c")
	require.NoError(t, err)

	_, err = issuer.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := issuer.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, "raw=%q", raw)
	}
}
