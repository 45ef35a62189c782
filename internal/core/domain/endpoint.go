package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthType identifies how outbound deliveries authenticate to the subscriber.
type AuthType string

const (
	AuthTypeNone   AuthType = "none"
	AuthTypeBearer AuthType = "bearer"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeAPIKey AuthType = "api_key"
)

// ValidAuthType reports whether t is a known auth type.
func ValidAuthType(t AuthType) bool {
	switch t {
	case AuthTypeNone, AuthTypeBearer, AuthTypeBasic, AuthTypeAPIKey:
		return true
	}
	return false
}

// AuthConfig holds per-endpoint credentials. It is serialized to JSON and
// encrypted before persistence; it never appears in plaintext at rest or in logs.
type AuthConfig struct {
	Token    string `json:"token,omitempty"`    // bearer
	Username string `json:"username,omitempty"` // basic
	Password string `json:"password,omitempty"` // basic
	KeyName  string `json:"key_name,omitempty"` // api_key, defaults to X-API-Key
	KeyValue string `json:"key_value,omitempty"` // api_key
}

// Known event types emitted by the business layer.
const (
	EventBookingCreated   = "booking_created"
	EventBookingUpdated   = "booking_updated"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
	EventPaymentRefunded  = "payment_refunded"
	EventClientCreated    = "client_created"
	EventClientUpdated    = "client_updated"
)

var knownEventTypes = map[string]struct{}{
	EventBookingCreated:   {},
	EventBookingUpdated:   {},
	EventBookingCancelled: {},
	EventBookingCompleted: {},
	EventPaymentCompleted: {},
	EventPaymentFailed:    {},
	EventPaymentRefunded:  {},
	EventClientCreated:    {},
	EventClientUpdated:    {},
}

// KnownEventType reports whether eventType belongs to the event enumeration.
func KnownEventType(eventType string) bool {
	_, ok := knownEventTypes[eventType]
	return ok
}

// KnownEventTypes returns the full event-type enumeration.
func KnownEventTypes() []string {
	types := make([]string, 0, len(knownEventTypes))
	for t := range knownEventTypes {
		types = append(types, t)
	}
	return types
}

// WebhookEndpoint is an owner-configured subscriber destination.
type WebhookEndpoint struct {
	ID            uuid.UUID         `json:"id"`
	OwnerID       uuid.UUID         `json:"owner_id"`
	Name          string            `json:"name"`
	URL           string            `json:"url"`
	Events        []string          `json:"events"`
	AuthType      AuthType          `json:"auth_type"`
	AuthConfigEnc string            `json:"-"` // encrypted AuthConfig JSON
	Secret        string            `json:"-"` // signing secret, set once at creation
	Headers       map[string]string `json:"headers"`
	IsActive      bool              `json:"is_active"`

	// Per-endpoint delivery policy.
	MaxRetries        int `json:"max_retries"`
	RetryDelaySeconds int `json:"retry_delay_seconds"`
	TimeoutSeconds    int `json:"timeout_seconds"`

	// Aggregate counters, updated atomically by the delivery path.
	TotalDeliveries      int64      `json:"total_deliveries"`
	SuccessfulDeliveries int64      `json:"successful_deliveries"`
	FailedDeliveries     int64      `json:"failed_deliveries"`
	LastTriggeredAt      *time.Time `json:"last_triggered_at"`
	LastSuccessAt        *time.Time `json:"last_success_at"`
	LastFailureAt        *time.Time `json:"last_failure_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubscribesTo reports whether the endpoint is subscribed to eventType.
func (e *WebhookEndpoint) SubscribesTo(eventType string) bool {
	for _, t := range e.Events {
		if t == eventType {
			return true
		}
	}
	return false
}

// Timeout returns the per-endpoint HTTP timeout as a duration.
func (e *WebhookEndpoint) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base retry delay as a duration.
func (e *WebhookEndpoint) RetryDelay() time.Duration {
	return time.Duration(e.RetryDelaySeconds) * time.Second
}
