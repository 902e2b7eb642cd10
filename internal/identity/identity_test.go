package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestStatic_CurrentUserID(t *testing.T) {
	id, ok := Static{UserID: "uid1"}.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, "uid1", id)

	_, ok = Static{}.CurrentUserID()
	assert.False(t, ok)
}

func TestFromToken(t *testing.T) {
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "uid1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	provider, err := FromToken(testSecret, token)
	require.NoError(t, err)

	id, ok := provider.CurrentUserID()
	assert.True(t, ok)
	assert.Equal(t, "uid1", id)
}

func TestFromToken_WrongSecret(t *testing.T) {
	token := signToken(t, []byte("other-secret"), jwt.RegisteredClaims{Subject: "uid1"})

	_, err := FromToken(testSecret, token)
	assert.Error(t, err)
}

func TestFromToken_Expired(t *testing.T) {
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Subject:   "uid1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	_, err := FromToken(testSecret, token)
	assert.Error(t, err)
}

func TestFromToken_NoSubject(t *testing.T) {
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := FromToken(testSecret, token)
	assert.Error(t, err)
}

func TestFromToken_Malformed(t *testing.T) {
	_, err := FromToken(testSecret, "not-a-token")
	assert.Error(t, err)
}
