package dto

import (
	"time"

	"webhook-engine/internal/core/domain"
)

// AuthConfigRequest carries subscriber credentials on create/update.
// Values are encrypted before persistence and never echoed back.
type AuthConfigRequest struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	KeyName  string `json:"key_name,omitempty"`
	KeyValue string `json:"key_value,omitempty"`
}

// CreateWebhookRequest is the request body for endpoint registration.
type CreateWebhookRequest struct {
	Name       string             `json:"name" binding:"required,min=1,max=100"`
	URL        string             `json:"url" binding:"required,safe_url"`
	Events     []string           `json:"events" binding:"required,min=1"`
	AuthType   string             `json:"auth_type,omitempty" binding:"omitempty,oneof=none bearer basic api_key"`
	AuthConfig *AuthConfigRequest `json:"auth_config,omitempty"`
	Headers    map[string]string  `json:"headers,omitempty"`

	MaxRetries        *int `json:"max_retries,omitempty" binding:"omitempty,gte=0,lte=10"`
	RetryDelaySeconds *int `json:"retry_delay_seconds,omitempty" binding:"omitempty,gte=1,lte=3600"`
	TimeoutSeconds    *int `json:"timeout_seconds,omitempty" binding:"omitempty,gte=1,lte=120"`
}

// UpdateWebhookRequest is the partial-update body. Absent fields are untouched.
type UpdateWebhookRequest struct {
	Name       *string            `json:"name,omitempty" binding:"omitempty,min=1,max=100"`
	URL        *string            `json:"url,omitempty" binding:"omitempty,safe_url"`
	Events     []string           `json:"events,omitempty" binding:"omitempty,min=1"`
	AuthType   *string            `json:"auth_type,omitempty" binding:"omitempty,oneof=none bearer basic api_key"`
	AuthConfig *AuthConfigRequest `json:"auth_config,omitempty"`
	Headers    map[string]string  `json:"headers,omitempty"`
	IsActive   *bool              `json:"is_active,omitempty"`

	MaxRetries        *int `json:"max_retries,omitempty" binding:"omitempty,gte=0,lte=10"`
	RetryDelaySeconds *int `json:"retry_delay_seconds,omitempty" binding:"omitempty,gte=1,lte=3600"`
	TimeoutSeconds    *int `json:"timeout_seconds,omitempty" binding:"omitempty,gte=1,lte=120"`
}

// DispatchEventRequest is the request body for emitting a domain event.
type DispatchEventRequest struct {
	EventType string         `json:"event_type" binding:"required"`
	Data      map[string]any `json:"data" binding:"required"`
	EventID   string         `json:"event_id,omitempty"`
}

// TestWebhookRequest is the request body for a test delivery.
// EventType defaults to the endpoint's first subscribed event.
type TestWebhookRequest struct {
	EventType string `json:"event_type,omitempty"`
}

// WebhookResponse is the endpoint representation returned by the API.
// Secret is populated only in the create response.
type WebhookResponse struct {
	ID       string            `json:"id"`
	OwnerID  string            `json:"owner_id"`
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	Events   []string          `json:"events"`
	AuthType string            `json:"auth_type"`
	Headers  map[string]string `json:"headers,omitempty"`
	IsActive bool              `json:"is_active"`
	Secret   string            `json:"secret,omitempty"`

	MaxRetries        int `json:"max_retries"`
	RetryDelaySeconds int `json:"retry_delay_seconds"`
	TimeoutSeconds    int `json:"timeout_seconds"`

	TotalDeliveries      int64      `json:"total_deliveries"`
	SuccessfulDeliveries int64      `json:"successful_deliveries"`
	FailedDeliveries     int64      `json:"failed_deliveries"`
	LastTriggeredAt      *time.Time `json:"last_triggered_at,omitempty"`
	LastSuccessAt        *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt        *time.Time `json:"last_failure_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWebhookResponse maps a domain endpoint to its API shape.
func NewWebhookResponse(e *domain.WebhookEndpoint, includeSecret bool) WebhookResponse {
	resp := WebhookResponse{
		ID:                   e.ID.String(),
		OwnerID:              e.OwnerID.String(),
		Name:                 e.Name,
		URL:                  e.URL,
		Events:               e.Events,
		AuthType:             string(e.AuthType),
		Headers:              e.Headers,
		IsActive:             e.IsActive,
		MaxRetries:           e.MaxRetries,
		RetryDelaySeconds:    e.RetryDelaySeconds,
		TimeoutSeconds:       e.TimeoutSeconds,
		TotalDeliveries:      e.TotalDeliveries,
		SuccessfulDeliveries: e.SuccessfulDeliveries,
		FailedDeliveries:     e.FailedDeliveries,
		LastTriggeredAt:      e.LastTriggeredAt,
		LastSuccessAt:        e.LastSuccessAt,
		LastFailureAt:        e.LastFailureAt,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
	if includeSecret {
		resp.Secret = e.Secret
	}
	return resp
}

// DeliveryResponse is the delivery-attempt representation returned by the API.
type DeliveryResponse struct {
	ID         string `json:"id"`
	EndpointID string `json:"endpoint_id"`
	EventType  string `json:"event_type"`
	EventID    string `json:"event_id"`
	RetryCount int    `json:"retry_count"`
	Status     string `json:"status"`

	RequestURL     string `json:"request_url"`
	RequestHeaders string `json:"request_headers"`
	RequestBody    string `json:"request_body"`

	HTTPStatus      *int   `json:"http_status,omitempty"`
	ResponseHeaders string `json:"response_headers,omitempty"`
	ResponseBody    string `json:"response_body,omitempty"`
	DurationMs      *int64 `json:"duration_ms,omitempty"`

	ErrorMessage *string    `json:"error_message,omitempty"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewDeliveryResponse maps a domain delivery attempt to its API shape.
func NewDeliveryResponse(a *domain.DeliveryAttempt) DeliveryResponse {
	return DeliveryResponse{
		ID:              a.ID.String(),
		EndpointID:      a.EndpointID.String(),
		EventType:       a.EventType,
		EventID:         a.EventID,
		RetryCount:      a.RetryCount,
		Status:          string(a.Status),
		RequestURL:      a.RequestURL,
		RequestHeaders:  a.RequestHeaders,
		RequestBody:     a.RequestBody,
		HTTPStatus:      a.HTTPStatus,
		ResponseHeaders: a.ResponseHeaders,
		ResponseBody:    a.ResponseBody,
		DurationMs:      a.DurationMs,
		ErrorMessage:    a.ErrorMessage,
		NextRetryAt:     a.NextRetryAt,
		DeliveredAt:     a.DeliveredAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// DeliveryListResponse wraps a paginated delivery history page.
type DeliveryListResponse struct {
	Items      []DeliveryResponse `json:"items"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}
