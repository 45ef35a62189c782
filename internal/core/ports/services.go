package ports

import (
	"context"
	"time"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption of secrets at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService computes HMAC-SHA256 signatures over outbound payloads.
// Sign operates on the exact bytes transmitted as the request body.
type SignatureService interface {
	Sign(secret string, payload []byte) string
	Verify(secret string, payload []byte, signature string) bool
}

// KeyService generates per-endpoint signing secrets and handles the
// encrypt/decrypt round trip for stored auth credentials.
type KeyService interface {
	// GenerateSecret returns a fresh URL-safe signing secret with at least
	// 256 bits of entropy.
	GenerateSecret() (string, error)
	EncryptAuthConfig(cfg domain.AuthConfig) (string, error)
	DecryptAuthConfig(enc string) (domain.AuthConfig, error)
}

// AuthHeaderService builds outbound authentication headers from an
// endpoint's auth type and encrypted credential blob.
type AuthHeaderService interface {
	Build(authType domain.AuthType, authConfigEnc string) (map[string]string, error)
}

// TokenService validates service tokens for the management API.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed service-token claims.
type TokenClaims struct {
	Subject string
}

// ClaimStore provides short-lived exclusive claims so overlapping retry
// sweeps never double-process the same due attempt.
type ClaimStore interface {
	// Claim atomically acquires key for ttl. Returns true if this caller won.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// --- Service Ports (Business Logic) ---

// CreateEndpointParams holds validated input for endpoint creation.
type CreateEndpointParams struct {
	OwnerID    uuid.UUID
	Name       string
	URL        string
	Events     []string
	AuthType   domain.AuthType
	AuthConfig *domain.AuthConfig
	Headers    map[string]string

	// Optional policy knobs; nil means the configured default applies.
	MaxRetries        *int
	RetryDelaySeconds *int
	TimeoutSeconds    *int
}

// UpdateEndpointParams holds a partial endpoint update. Nil fields are untouched.
type UpdateEndpointParams struct {
	Name              *string
	URL               *string
	Events            []string
	AuthType          *domain.AuthType
	AuthConfig        *domain.AuthConfig
	Headers           map[string]string
	IsActive          *bool
	MaxRetries        *int
	RetryDelaySeconds *int
	TimeoutSeconds    *int
}

// EndpointService defines endpoint registry operations.
// The signing secret is populated on the endpoint returned by Create and is
// never readable through any other operation.
type EndpointService interface {
	Create(ctx context.Context, params CreateEndpointParams) (*domain.WebhookEndpoint, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateEndpointParams) (*domain.WebhookEndpoint, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.WebhookEndpoint, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.WebhookEndpoint, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListDeliveries(ctx context.Context, params DeliveryListParams) ([]domain.DeliveryAttempt, int64, error)
}

// DispatchService fans out domain events to subscribed endpoints.
type DispatchService interface {
	// Dispatch submits one delivery task per matching active endpoint and
	// returns once all tasks are submitted. No subscribers is a routine no-op.
	// Delivery outcomes are observable through the delivery ledger only.
	Dispatch(ctx context.Context, eventType string, data map[string]any, eventID string) error
	// TestWebhook performs exactly one synchronous delivery attempt with
	// generated sample data. Test attempts never touch endpoint aggregates
	// and are never retried.
	TestWebhook(ctx context.Context, endpointID uuid.UUID, eventType string) (*domain.DeliveryAttempt, error)
	// RetryDelivery manually re-runs a terminally FAILED attempt.
	RetryDelivery(ctx context.Context, attemptID uuid.UUID) (*domain.DeliveryAttempt, error)
}
