package service

import (
	"testing"

	"webhook-engine/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeyManager(t *testing.T) *KeyManager {
	t.Helper()
	enc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	return NewKeyManager(enc)
}

func TestGenerateSecret(t *testing.T) {
	km := newTestKeyManager(t)

	s1, err := km.GenerateSecret()
	require.NoError(t, err)
	s2, err := km.GenerateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
	// 32 bytes raw-url base64 => 43 chars, URL-safe alphabet
	assert.Len(t, s1, 43)
	assert.NotContains(t, s1, "=")
	assert.NotContains(t, s1, "+")
	assert.NotContains(t, s1, "/")
}

func TestAuthConfig_EncryptDecryptRoundTrip(t *testing.T) {
	km := newTestKeyManager(t)

	cfg := domain.AuthConfig{
		Token:    "tok_abc123",
		Username: "svc-user",
		Password: "p@ss:word",
		KeyName:  "X-Custom-Key",
		KeyValue: "key-value-1",
	}

	enc, err := km.EncryptAuthConfig(cfg)
	require.NoError(t, err)
	assert.NotContains(t, enc, "tok_abc123", "credentials must not be readable at rest")

	got, err := km.DecryptAuthConfig(enc)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDecryptAuthConfig_Garbage(t *testing.T) {
	km := newTestKeyManager(t)

	_, err := km.DecryptAuthConfig("not-a-ciphertext")
	assert.Error(t, err)
}
