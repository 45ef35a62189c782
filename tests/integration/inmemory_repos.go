package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"

	"github.com/google/uuid"
)

var (
	_ ports.EndpointRepository = (*inMemoryEndpointRepo)(nil)
	_ ports.DeliveryRepository = (*inMemoryDeliveryRepo)(nil)
)

// --- In-Memory Endpoint Repo ---

type inMemoryEndpointRepo struct {
	mu        sync.RWMutex
	endpoints map[uuid.UUID]*domain.WebhookEndpoint
}

func newInMemoryEndpointRepo() *inMemoryEndpointRepo {
	return &inMemoryEndpointRepo{endpoints: make(map[uuid.UUID]*domain.WebhookEndpoint)}
}

func (r *inMemoryEndpointRepo) Create(ctx context.Context, e *domain.WebhookEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.endpoints[e.ID] = &cp
	return nil
}

func (r *inMemoryEndpointRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEndpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryEndpointRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.WebhookEndpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.WebhookEndpoint
	for _, e := range r.endpoints {
		if e.OwnerID == ownerID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *inMemoryEndpointRepo) ListActiveForEvent(ctx context.Context, eventType string) ([]domain.WebhookEndpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.WebhookEndpoint
	for _, e := range r.endpoints {
		if e.IsActive && e.SubscribesTo(eventType) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *inMemoryEndpointRepo) Update(ctx context.Context, e *domain.WebhookEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.endpoints[e.ID]
	if !ok {
		return fmt.Errorf("endpoint not found")
	}
	// Config fields only; counters belong to MarkTriggered/MarkOutcome.
	existing.Name = e.Name
	existing.URL = e.URL
	existing.Events = e.Events
	existing.AuthType = e.AuthType
	existing.AuthConfigEnc = e.AuthConfigEnc
	existing.Headers = e.Headers
	existing.IsActive = e.IsActive
	existing.MaxRetries = e.MaxRetries
	existing.RetryDelaySeconds = e.RetryDelaySeconds
	existing.TimeoutSeconds = e.TimeoutSeconds
	existing.UpdatedAt = e.UpdatedAt
	return nil
}

func (r *inMemoryEndpointRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.endpoints[id]
	if !ok {
		return fmt.Errorf("endpoint not found")
	}
	e.IsActive = active
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryEndpointRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, id)
	return nil
}

func (r *inMemoryEndpointRepo) MarkTriggered(ctx context.Context, id uuid.UUID, firstAttempt bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.endpoints[id]
	if !ok {
		return fmt.Errorf("endpoint not found")
	}
	now := time.Now().UTC()
	if firstAttempt {
		e.TotalDeliveries++
	}
	e.LastTriggeredAt = &now
	return nil
}

func (r *inMemoryEndpointRepo) MarkOutcome(ctx context.Context, id uuid.UUID, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.endpoints[id]
	if !ok {
		return fmt.Errorf("endpoint not found")
	}
	now := time.Now().UTC()
	if success {
		e.SuccessfulDeliveries++
		e.LastSuccessAt = &now
	} else {
		e.FailedDeliveries++
		e.LastFailureAt = &now
	}
	return nil
}

// --- In-Memory Delivery Repo ---

type inMemoryDeliveryRepo struct {
	mu        sync.RWMutex
	attempts  map[uuid.UUID]*domain.DeliveryAttempt
	endpoints *inMemoryEndpointRepo
}

func newInMemoryDeliveryRepo(endpoints *inMemoryEndpointRepo) *inMemoryDeliveryRepo {
	return &inMemoryDeliveryRepo{
		attempts:  make(map[uuid.UUID]*domain.DeliveryAttempt),
		endpoints: endpoints,
	}
}

func (r *inMemoryDeliveryRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.attempts[a.ID] = &cp
	return nil
}

func (r *inMemoryDeliveryRepo) Update(ctx context.Context, a *domain.DeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attempts[a.ID]; !ok {
		return fmt.Errorf("delivery attempt not found")
	}
	cp := *a
	r.attempts[a.ID] = &cp
	return nil
}

func (r *inMemoryDeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.DeliveryAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryDeliveryRepo) ListDueRetries(ctx context.Context, now time.Time, limit int) ([]domain.DeliveryAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.DeliveryAttempt
	for _, a := range r.attempts {
		if a.Status != domain.DeliveryStatusRetrying || a.NextRetryAt == nil || a.NextRetryAt.After(now) {
			continue
		}
		endpoint, _ := r.endpoints.GetByID(ctx, a.EndpointID)
		if endpoint == nil || !endpoint.IsActive {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRetryAt.Before(*out[j].NextRetryAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *inMemoryDeliveryRepo) List(ctx context.Context, params ports.DeliveryListParams) ([]domain.DeliveryAttempt, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []domain.DeliveryAttempt
	for _, a := range r.attempts {
		if a.EndpointID != params.EndpointID {
			continue
		}
		if params.Status != nil && a.Status != *params.Status {
			continue
		}
		if params.From != nil && a.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && a.CreatedAt.After(*params.To) {
			continue
		}
		matched = append(matched, *a)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
