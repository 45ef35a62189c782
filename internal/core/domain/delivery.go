package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus represents the state of a delivery attempt.
type DeliveryStatus string

const (
	DeliveryStatusPending  DeliveryStatus = "PENDING"  // transient, set just before the HTTP call
	DeliveryStatusSuccess  DeliveryStatus = "SUCCESS"  // terminal
	DeliveryStatusFailed   DeliveryStatus = "FAILED"   // terminal, retries exhausted (dead-lettered)
	DeliveryStatusRetrying DeliveryStatus = "RETRYING" // waiting for next_retry_at
)

// TestEventIDPrefix marks test deliveries so they are identifiable in the
// ledger and excluded from endpoint aggregates.
const TestEventIDPrefix = "test-"

// DeliveryAttempt records one attempt to deliver one event to one endpoint.
// Retries mutate the row in place: RetryCount is incremented and the request
// body is preserved so every retry transmits the exact same signed bytes.
type DeliveryAttempt struct {
	ID         uuid.UUID      `json:"id"`
	EndpointID uuid.UUID      `json:"endpoint_id"`
	EventType  string         `json:"event_type"`
	EventID    string         `json:"event_id"`
	RetryCount int            `json:"retry_count"`
	Status     DeliveryStatus `json:"status"`

	// Request snapshot. Headers are stored redacted of secret values.
	RequestURL     string `json:"request_url"`
	RequestHeaders string `json:"request_headers"` // JSON object
	RequestBody    string `json:"request_body"`

	// Response snapshot.
	HTTPStatus      *int   `json:"http_status"`
	ResponseHeaders string `json:"response_headers"` // JSON object
	ResponseBody    string `json:"response_body"`    // truncated
	DurationMs      *int64 `json:"duration_ms"`

	ErrorMessage *string    `json:"error_message"`
	NextRetryAt  *time.Time `json:"next_retry_at"`
	DeliveredAt  *time.Time `json:"delivered_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the attempt has reached a final state.
func (a *DeliveryAttempt) IsTerminal() bool {
	return a.Status == DeliveryStatusSuccess || a.Status == DeliveryStatusFailed
}

// IsTest reports whether this attempt was produced by the test-delivery path.
func (a *DeliveryAttempt) IsTest() bool {
	return strings.HasPrefix(a.EventID, TestEventIDPrefix)
}
