package service

import (
	"encoding/base64"
	"errors"
	"testing"

	"webhook-engine/internal/core/domain"
	"webhook-engine/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthBuilder(t *testing.T) (*AuthHeaderBuilder, *KeyManager) {
	t.Helper()
	km := newTestKeyManager(t)
	return NewAuthHeaderBuilder(km), km
}

func encConfig(t *testing.T, km *KeyManager, cfg domain.AuthConfig) string {
	t.Helper()
	enc, err := km.EncryptAuthConfig(cfg)
	require.NoError(t, err)
	return enc
}

func TestBuildAuthHeaders_None(t *testing.T) {
	b, _ := newTestAuthBuilder(t)

	headers, err := b.Build(domain.AuthTypeNone, "")
	require.NoError(t, err)
	assert.Nil(t, headers)

	headers, err = b.Build("", "")
	require.NoError(t, err)
	assert.Nil(t, headers)
}

func TestBuildAuthHeaders_Bearer(t *testing.T) {
	b, km := newTestAuthBuilder(t)
	enc := encConfig(t, km, domain.AuthConfig{Token: "abc123"})

	headers, err := b.Build(domain.AuthTypeBearer, enc)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Authorization": "Bearer abc123"}, headers)
}

func TestBuildAuthHeaders_Bearer_MissingToken(t *testing.T) {
	b, km := newTestAuthBuilder(t)
	enc := encConfig(t, km, domain.AuthConfig{})

	_, err := b.Build(domain.AuthTypeBearer, enc)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CFG_004", appErr.Code)
}

func TestBuildAuthHeaders_Basic(t *testing.T) {
	b, km := newTestAuthBuilder(t)
	enc := encConfig(t, km, domain.AuthConfig{Username: "alice", Password: "s3cret"})

	headers, err := b.Build(domain.AuthTypeBasic, enc)
	require.NoError(t, err)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cret"))
	assert.Equal(t, map[string]string{"Authorization": want}, headers)
}

func TestBuildAuthHeaders_APIKey(t *testing.T) {
	b, km := newTestAuthBuilder(t)
	enc := encConfig(t, km, domain.AuthConfig{KeyName: "X-Custom-Key", KeyValue: "kv-1"})

	headers, err := b.Build(domain.AuthTypeAPIKey, enc)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Custom-Key": "kv-1"}, headers)
}

func TestBuildAuthHeaders_APIKey_DefaultHeaderName(t *testing.T) {
	b, km := newTestAuthBuilder(t)
	enc := encConfig(t, km, domain.AuthConfig{KeyValue: "kv-2"})

	headers, err := b.Build(domain.AuthTypeAPIKey, enc)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{DefaultAPIKeyHeader: "kv-2"}, headers)
}

func TestBuildAuthHeaders_DecryptFailure(t *testing.T) {
	b, _ := newTestAuthBuilder(t)

	_, err := b.Build(domain.AuthTypeBearer, "corrupted-blob")
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "SYS_003", appErr.Code)
}

func TestBuildAuthHeaders_UnknownType(t *testing.T) {
	b, km := newTestAuthBuilder(t)
	enc := encConfig(t, km, domain.AuthConfig{Token: "x"})

	_, err := b.Build(domain.AuthType("oauth2"), enc)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CFG_004", appErr.Code)
}
