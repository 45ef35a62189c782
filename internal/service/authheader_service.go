package service

import (
	"encoding/base64"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"
)

// DefaultAPIKeyHeader is used when an api_key endpoint omits key_name.
const DefaultAPIKeyHeader = "X-API-Key"

// AuthHeaderBuilder implements ports.AuthHeaderService. It turns an
// endpoint's auth type and encrypted credential blob into outbound headers.
// A decryption failure or malformed config fails the delivery attempt —
// requests are never sent unauthenticated by accident.
type AuthHeaderBuilder struct {
	keySvc ports.KeyService
}

// NewAuthHeaderBuilder creates a new auth header builder.
func NewAuthHeaderBuilder(keySvc ports.KeyService) *AuthHeaderBuilder {
	return &AuthHeaderBuilder{keySvc: keySvc}
}

// Build returns the auth headers for one delivery.
func (b *AuthHeaderBuilder) Build(authType domain.AuthType, authConfigEnc string) (map[string]string, error) {
	if authType == "" || authType == domain.AuthTypeNone {
		return nil, nil
	}

	cfg, err := b.keySvc.DecryptAuthConfig(authConfigEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	switch authType {
	case domain.AuthTypeBearer:
		if cfg.Token == "" {
			return nil, apperror.ErrInvalidAuthConfig("bearer auth requires a token")
		}
		return map[string]string{"Authorization": "Bearer " + cfg.Token}, nil

	case domain.AuthTypeBasic:
		if cfg.Username == "" {
			return nil, apperror.ErrInvalidAuthConfig("basic auth requires a username")
		}
		cred := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		return map[string]string{"Authorization": "Basic " + cred}, nil

	case domain.AuthTypeAPIKey:
		if cfg.KeyValue == "" {
			return nil, apperror.ErrInvalidAuthConfig("api_key auth requires a key value")
		}
		name := cfg.KeyName
		if name == "" {
			name = DefaultAPIKeyHeader
		}
		return map[string]string{name: cfg.KeyValue}, nil
	}

	return nil, apperror.ErrInvalidAuthConfig("unknown auth type " + string(authType))
}
