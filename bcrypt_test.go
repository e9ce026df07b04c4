package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordAndCompare(t *testing.T) {
	hash, err := HashPassword("s3cret-passw0rd")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "s3cret-passw0rd", hash)

	require.NoError(t, ComparePasswordAndHash("s3cret-passw0rd", hash))

	err = ComparePasswordAndHash("wrong-password", hash)
	require.ErrorIs(t, err, ErrMismatchedHashAndPassword)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	require.ErrorIs(t, err, ErrNoEmptyString)
}

func TestRandomPasswordHash(t *testing.T) {
	first := RandomPasswordHash()
	second := RandomPasswordHash()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestPasswordAuthenticator(t *testing.T) {
	authenticator := NewPasswordAuthenticator()

	hash, err := authenticator.HashPassword("hunter2hunter2")
	require.NoError(t, err)
	require.NoError(t, authenticator.ComparePasswordAndHash("hunter2hunter2", hash))
	require.Error(t, authenticator.ComparePasswordAndHash("hunter3", hash))
}
