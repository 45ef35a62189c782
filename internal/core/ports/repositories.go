package ports

import (
	"context"
	"time"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
)

// EndpointRepository defines persistence operations for webhook endpoints.
type EndpointRepository interface {
	Create(ctx context.Context, endpoint *domain.WebhookEndpoint) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEndpoint, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.WebhookEndpoint, error)
	// ListActiveForEvent returns active endpoints subscribed to eventType.
	ListActiveForEvent(ctx context.Context, eventType string) ([]domain.WebhookEndpoint, error)
	Update(ctx context.Context, endpoint *domain.WebhookEndpoint) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error

	// MarkTriggered stamps last_triggered_at and, when firstAttempt is true,
	// increments total_deliveries. Single-statement atomic update.
	MarkTriggered(ctx context.Context, id uuid.UUID, firstAttempt bool) error
	// MarkOutcome records a terminal delivery outcome: increments
	// successful_deliveries or failed_deliveries and stamps the matching
	// last_success_at / last_failure_at. Single-statement atomic update.
	MarkOutcome(ctx context.Context, id uuid.UUID, success bool) error
}

// DeliveryListParams holds filter + pagination for delivery history queries.
type DeliveryListParams struct {
	EndpointID uuid.UUID
	Status     *domain.DeliveryStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// DeliveryRepository defines persistence operations for the delivery ledger.
type DeliveryRepository interface {
	Create(ctx context.Context, attempt *domain.DeliveryAttempt) error
	Update(ctx context.Context, attempt *domain.DeliveryAttempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliveryAttempt, error)
	// ListDueRetries returns RETRYING attempts whose next_retry_at <= now and
	// whose endpoint is still active, oldest first, capped at limit.
	ListDueRetries(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryAttempt, error)
	List(ctx context.Context, params DeliveryListParams) ([]domain.DeliveryAttempt, int64, error)
}
