package service

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
)

// secretBytes is the entropy of a generated signing secret (256 bits).
const secretBytes = 32

// KeyManager implements ports.KeyService. It generates per-endpoint signing
// secrets and round-trips auth credentials through the encryption service.
type KeyManager struct {
	encSvc ports.EncryptionService
}

// NewKeyManager creates a new key manager.
func NewKeyManager(encSvc ports.EncryptionService) *KeyManager {
	return &KeyManager{encSvc: encSvc}
}

// GenerateSecret returns a fresh URL-safe signing secret with 256 bits of
// entropy. Secrets are generated once at endpoint creation and never rotated
// automatically.
func (m *KeyManager) GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// EncryptAuthConfig serializes and encrypts credentials for storage.
func (m *KeyManager) EncryptAuthConfig(cfg domain.AuthConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling auth config: %w", err)
	}
	enc, err := m.encSvc.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("encrypting auth config: %w", err)
	}
	return enc, nil
}

// DecryptAuthConfig decrypts and parses a stored credential blob.
func (m *KeyManager) DecryptAuthConfig(enc string) (domain.AuthConfig, error) {
	var cfg domain.AuthConfig
	raw, err := m.encSvc.Decrypt(enc)
	if err != nil {
		return cfg, fmt.Errorf("decrypting auth config: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing auth config: %w", err)
	}
	return cfg, nil
}
