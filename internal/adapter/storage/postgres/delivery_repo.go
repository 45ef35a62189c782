package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const deliveryColumns = `id, endpoint_id, event_type, event_id, retry_count, status,
	request_url, request_headers, request_body,
	http_status, response_headers, response_body, duration_ms,
	error_message, next_retry_at, delivered_at, created_at, updated_at`

// DeliveryRepo implements ports.DeliveryRepository.
type DeliveryRepo struct {
	pool Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(pool Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

// Create inserts a new delivery attempt row.
func (r *DeliveryRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	query := `INSERT INTO delivery_attempts (id, endpoint_id, event_type, event_id, retry_count, status,
			request_url, request_headers, request_body,
			http_status, response_headers, response_body, duration_ms,
			error_message, next_retry_at, delivered_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.EndpointID, a.EventType, a.EventID, a.RetryCount, a.Status,
		a.RequestURL, a.RequestHeaders, a.RequestBody,
		a.HTTPStatus, a.ResponseHeaders, a.ResponseBody, a.DurationMs,
		a.ErrorMessage, a.NextRetryAt, a.DeliveredAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery attempt: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an attempt. Retries mutate the same
// row, so retry_count and the response snapshot move together.
func (r *DeliveryRepo) Update(ctx context.Context, a *domain.DeliveryAttempt) error {
	query := `UPDATE delivery_attempts
		SET retry_count=$1, status=$2,
			http_status=$3, response_headers=$4, response_body=$5, duration_ms=$6,
			error_message=$7, next_retry_at=$8, delivered_at=$9, updated_at=NOW()
		WHERE id=$10`
	_, err := r.pool.Exec(ctx, query,
		a.RetryCount, a.Status,
		a.HTTPStatus, a.ResponseHeaders, a.ResponseBody, a.DurationMs,
		a.ErrorMessage, a.NextRetryAt, a.DeliveredAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update delivery attempt: %w", err)
	}
	return nil
}

// GetByID fetches a delivery attempt by its UUID.
func (r *DeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliveryAttempt, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_attempts WHERE id = $1`

	a := &domain.DeliveryAttempt{}
	err := scanDelivery(r.pool.QueryRow(ctx, query, id), a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery attempt by id: %w", err)
	}
	return a, nil
}

// ListDueRetries fetches RETRYING attempts that are due, oldest first,
// skipping attempts whose endpoint has since been deactivated or deleted.
func (r *DeliveryRepo) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryAttempt, error) {
	query := `SELECT d.id, d.endpoint_id, d.event_type, d.event_id, d.retry_count, d.status,
			d.request_url, d.request_headers, d.request_body,
			d.http_status, d.response_headers, d.response_body, d.duration_ms,
			d.error_message, d.next_retry_at, d.delivered_at, d.created_at, d.updated_at
		FROM delivery_attempts d
		JOIN webhook_endpoints e ON e.id = d.endpoint_id
		WHERE d.status = $1 AND d.next_retry_at <= $2 AND e.is_active = TRUE
		ORDER BY d.next_retry_at ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.DeliveryStatusRetrying, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due retries: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

// List fetches delivery history for an endpoint with optional filters,
// newest first, plus the total count for pagination.
func (r *DeliveryRepo) List(ctx context.Context, params ports.DeliveryListParams) ([]domain.DeliveryAttempt, int64, error) {
	where := `WHERE endpoint_id = $1`
	args := []any{params.EndpointID}

	if params.Status != nil {
		args = append(args, *params.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if params.From != nil {
		args = append(args, *params.From)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if params.To != nil {
		args = append(args, *params.To)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM delivery_attempts ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count delivery attempts: %w", err)
	}

	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)
	query := `SELECT ` + deliveryColumns + ` FROM delivery_attempts ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list delivery attempts: %w", err)
	}
	defer rows.Close()

	attempts, err := collectDeliveries(rows)
	if err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func scanDelivery(row pgx.Row, a *domain.DeliveryAttempt) error {
	return row.Scan(
		&a.ID, &a.EndpointID, &a.EventType, &a.EventID, &a.RetryCount, &a.Status,
		&a.RequestURL, &a.RequestHeaders, &a.RequestBody,
		&a.HTTPStatus, &a.ResponseHeaders, &a.ResponseBody, &a.DurationMs,
		&a.ErrorMessage, &a.NextRetryAt, &a.DeliveredAt, &a.CreatedAt, &a.UpdatedAt,
	)
}

func collectDeliveries(rows pgx.Rows) ([]domain.DeliveryAttempt, error) {
	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		var a domain.DeliveryAttempt
		if err := scanDelivery(rows, &a); err != nil {
			return nil, fmt.Errorf("scan delivery attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery attempts: %w", err)
	}
	return attempts, nil
}
