package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndVerify(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("batch-1", "report-cards/10A/batch-1.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "batch-1", claims.BatchID)
	assert.Equal(t, "report-cards/10A/batch-1.pdf", claims.Path)
	assert.True(t, expiresAt.Equal(claims.ExpiresAt))
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("batch-1", "a.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	claims, err := signer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, "batch-1", claims.BatchID)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("batch-1", "a.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "batch-2"
	_, err = signer.Verify(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewSignedURLSigner("other", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedURLSignerRequiresInputs(t *testing.T) {
	_, _, err := NewSignedURLSigner("", time.Hour).Generate("b", "p")
	assert.Error(t, err)
	_, _, err = NewSignedURLSigner("s", time.Hour).Generate("", "p")
	assert.Error(t, err)
	_, _, err = NewSignedURLSigner("s", time.Hour).Generate("a.b", "p")
	assert.Error(t, err)
}
