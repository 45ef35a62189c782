package postgres

import (
	"context"
	"errors"
	"fmt"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const endpointColumns = `id, owner_id, name, url, events, auth_type, auth_config_enc, secret, headers, is_active,
	max_retries, retry_delay_seconds, timeout_seconds,
	total_deliveries, successful_deliveries, failed_deliveries,
	last_triggered_at, last_success_at, last_failure_at, created_at, updated_at`

// EndpointRepo implements ports.EndpointRepository.
type EndpointRepo struct {
	pool Pool
}

// NewEndpointRepo creates a new EndpointRepo.
func NewEndpointRepo(pool Pool) *EndpointRepo {
	return &EndpointRepo{pool: pool}
}

// Create inserts a new webhook endpoint.
func (r *EndpointRepo) Create(ctx context.Context, e *domain.WebhookEndpoint) error {
	query := `INSERT INTO webhook_endpoints (id, owner_id, name, url, events, auth_type, auth_config_enc, secret, headers, is_active,
			max_retries, retry_delay_seconds, timeout_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.OwnerID, e.Name, e.URL, e.Events,
		e.AuthType, e.AuthConfigEnc, e.Secret, e.Headers, e.IsActive,
		e.MaxRetries, e.RetryDelaySeconds, e.TimeoutSeconds,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert endpoint: %w", err)
	}
	return nil
}

// GetByID fetches an endpoint by its UUID.
func (r *EndpointRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints WHERE id = $1`

	e := &domain.WebhookEndpoint{}
	err := scanEndpoint(r.pool.QueryRow(ctx, query, id), e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get endpoint by id: %w", err)
	}
	return e, nil
}

// ListByOwner fetches all endpoints registered by an owner, newest first.
func (r *EndpointRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.WebhookEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list endpoints by owner: %w", err)
	}
	defer rows.Close()

	return collectEndpoints(rows)
}

// ListActiveForEvent fetches active endpoints subscribed to eventType.
func (r *EndpointRepo) ListActiveForEvent(ctx context.Context, eventType string) ([]domain.WebhookEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints
		WHERE is_active = TRUE AND $1 = ANY(events)
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, eventType)
	if err != nil {
		return nil, fmt.Errorf("list active endpoints for event: %w", err)
	}
	defer rows.Close()

	return collectEndpoints(rows)
}

// Update updates an endpoint's configuration. Aggregate counters are not
// touched here; they go through MarkTriggered / MarkOutcome.
func (r *EndpointRepo) Update(ctx context.Context, e *domain.WebhookEndpoint) error {
	query := `UPDATE webhook_endpoints
		SET name=$1, url=$2, events=$3, auth_type=$4, auth_config_enc=$5, headers=$6, is_active=$7,
			max_retries=$8, retry_delay_seconds=$9, timeout_seconds=$10, updated_at=NOW()
		WHERE id=$11`
	_, err := r.pool.Exec(ctx, query,
		e.Name, e.URL, e.Events, e.AuthType, e.AuthConfigEnc, e.Headers, e.IsActive,
		e.MaxRetries, e.RetryDelaySeconds, e.TimeoutSeconds, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update endpoint: %w", err)
	}
	return nil
}

// SetActive toggles the endpoint's active flag.
func (r *EndpointRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE webhook_endpoints SET is_active=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set endpoint active: %w", err)
	}
	return nil
}

// Delete removes an endpoint and, via FK cascade, its delivery history.
func (r *EndpointRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM webhook_endpoints WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete endpoint: %w", err)
	}
	return nil
}

// MarkTriggered stamps last_triggered_at and counts the logical event once.
// firstAttempt is false on retries so total_deliveries counts events, not attempts.
func (r *EndpointRepo) MarkTriggered(ctx context.Context, id uuid.UUID, firstAttempt bool) error {
	query := `UPDATE webhook_endpoints
		SET total_deliveries = total_deliveries + CASE WHEN $2 THEN 1 ELSE 0 END,
			last_triggered_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, firstAttempt)
	if err != nil {
		return fmt.Errorf("mark endpoint triggered: %w", err)
	}
	return nil
}

// MarkOutcome records one terminal outcome per logical event.
func (r *EndpointRepo) MarkOutcome(ctx context.Context, id uuid.UUID, success bool) error {
	query := `UPDATE webhook_endpoints
		SET successful_deliveries = successful_deliveries + CASE WHEN $2 THEN 1 ELSE 0 END,
			failed_deliveries = failed_deliveries + CASE WHEN $2 THEN 0 ELSE 1 END,
			last_success_at = CASE WHEN $2 THEN NOW() ELSE last_success_at END,
			last_failure_at = CASE WHEN $2 THEN last_failure_at ELSE NOW() END,
			updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, success)
	if err != nil {
		return fmt.Errorf("mark endpoint outcome: %w", err)
	}
	return nil
}

func scanEndpoint(row pgx.Row, e *domain.WebhookEndpoint) error {
	return row.Scan(
		&e.ID, &e.OwnerID, &e.Name, &e.URL, &e.Events,
		&e.AuthType, &e.AuthConfigEnc, &e.Secret, &e.Headers, &e.IsActive,
		&e.MaxRetries, &e.RetryDelaySeconds, &e.TimeoutSeconds,
		&e.TotalDeliveries, &e.SuccessfulDeliveries, &e.FailedDeliveries,
		&e.LastTriggeredAt, &e.LastSuccessAt, &e.LastFailureAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
}

func collectEndpoints(rows pgx.Rows) ([]domain.WebhookEndpoint, error) {
	var endpoints []domain.WebhookEndpoint
	for rows.Next() {
		var e domain.WebhookEndpoint
		if err := scanEndpoint(rows, &e); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		endpoints = append(endpoints, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return endpoints, nil
}
