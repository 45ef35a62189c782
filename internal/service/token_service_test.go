package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewJWTTokenService("test-secret", time.Hour, "webhook-engine")
	subject := uuid.New().String()

	token, expiresAt, err := svc.Generate(subject)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now().Add(59*time.Minute)))

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, subject, claims.Subject)
}

func TestTokenService_WrongSecret(t *testing.T) {
	issuer := NewJWTTokenService("secret-a", time.Hour, "webhook-engine")
	verifier := NewJWTTokenService("secret-b", time.Hour, "webhook-engine")

	token, _, err := issuer.Generate("svc-scheduler")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.Error(t, err)
}

func TestTokenService_Expired(t *testing.T) {
	svc := NewJWTTokenService("test-secret", -time.Minute, "webhook-engine")

	token, _, err := svc.Generate("svc-scheduler")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.Error(t, err)
}

func TestTokenService_Garbage(t *testing.T) {
	svc := NewJWTTokenService("test-secret", time.Hour, "webhook-engine")

	_, err := svc.Validate("not.a.jwt")
	assert.Error(t, err)
}
