package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "patrol/pkg/domain-errors"
)

func TestNewWithoutKeyDisablesValidation(t *testing.T) {
	assert.Nil(t, New("", "patrol"))
}

func TestGenerateValidateRoundTrip(t *testing.T) {
	svc := New("test-signing-key", "patrol")
	require.NotNil(t, svc)

	token, err := svc.GenerateToken("supervisor-42", time.Hour)
	require.NoError(t, err)

	subject, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "supervisor-42", subject)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := New("test-signing-key", "patrol")

	// Past the 30s verification leeway.
	token, err := svc.GenerateToken("supervisor-42", -2*time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	other := New("test-signing-key", "someone-else")
	token, err := other.GenerateToken("supervisor-42", time.Hour)
	require.NoError(t, err)

	svc := New("test-signing-key", "patrol")
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer")
}

func TestValidateRejectsWrongKey(t *testing.T) {
	minted := New("one-key", "patrol")
	token, err := minted.GenerateToken("supervisor-42", time.Hour)
	require.NoError(t, err)

	svc := New("another-key", "patrol")
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestValidateRejectsMissingSubject(t *testing.T) {
	svc := New("test-signing-key", "patrol")
	token, err := svc.GenerateToken("", time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject")
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := New("test-signing-key", "patrol")
	_, err := svc.ValidateToken("not.a.jwt")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
