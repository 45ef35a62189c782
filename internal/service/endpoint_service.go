package service

import (
	"context"
	"net/url"
	"time"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PolicyDefaults holds the delivery policy applied when an endpoint omits
// its own knobs.
type PolicyDefaults struct {
	MaxRetries        int
	RetryDelaySeconds int
	TimeoutSeconds    int
}

// endpointService implements ports.EndpointService.
type endpointService struct {
	endpointRepo ports.EndpointRepository
	deliveryRepo ports.DeliveryRepository
	keySvc       ports.KeyService
	defaults     PolicyDefaults
	log          zerolog.Logger
}

// NewEndpointService creates the endpoint registry service.
func NewEndpointService(
	endpointRepo ports.EndpointRepository,
	deliveryRepo ports.DeliveryRepository,
	keySvc ports.KeyService,
	defaults PolicyDefaults,
	log zerolog.Logger,
) ports.EndpointService {
	return &endpointService{
		endpointRepo: endpointRepo,
		deliveryRepo: deliveryRepo,
		keySvc:       keySvc,
		defaults:     defaults,
		log:          log,
	}
}

// Create validates and persists a new endpoint. The returned endpoint has
// its signing secret populated; this is the only time the secret is exposed.
func (s *endpointService) Create(ctx context.Context, params ports.CreateEndpointParams) (*domain.WebhookEndpoint, error) {
	if err := validateURL(params.URL); err != nil {
		return nil, err
	}
	if err := validateEvents(params.Events); err != nil {
		return nil, err
	}
	authType := params.AuthType
	if authType == "" {
		authType = domain.AuthTypeNone
	}
	if !domain.ValidAuthType(authType) {
		return nil, apperror.ErrInvalidAuthConfig("unknown auth type " + string(authType))
	}
	if authType != domain.AuthTypeNone && params.AuthConfig == nil {
		return nil, apperror.ErrInvalidAuthConfig("auth_config required for auth type " + string(authType))
	}

	secret, err := s.keySvc.GenerateSecret()
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	var authConfigEnc string
	if params.AuthConfig != nil {
		authConfigEnc, err = s.keySvc.EncryptAuthConfig(*params.AuthConfig)
		if err != nil {
			return nil, apperror.ErrEncryptionFailure(err)
		}
	}

	now := time.Now().UTC()
	endpoint := &domain.WebhookEndpoint{
		ID:                uuid.New(),
		OwnerID:           params.OwnerID,
		Name:              params.Name,
		URL:               params.URL,
		Events:            params.Events,
		AuthType:          authType,
		AuthConfigEnc:     authConfigEnc,
		Secret:            secret,
		Headers:           params.Headers,
		IsActive:          true,
		MaxRetries:        valueOr(params.MaxRetries, s.defaults.MaxRetries),
		RetryDelaySeconds: valueOr(params.RetryDelaySeconds, s.defaults.RetryDelaySeconds),
		TimeoutSeconds:    valueOr(params.TimeoutSeconds, s.defaults.TimeoutSeconds),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.endpointRepo.Create(ctx, endpoint); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("endpoint_id", endpoint.ID.String()).
		Str("url", endpoint.URL).
		Strs("events", endpoint.Events).
		Msg("webhook endpoint created")

	return endpoint, nil
}

// Update applies a partial update. The stored secret and decrypted auth
// config are never readable back through this path.
func (s *endpointService) Update(ctx context.Context, id uuid.UUID, params ports.UpdateEndpointParams) (*domain.WebhookEndpoint, error) {
	endpoint, err := s.getExisting(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.URL != nil {
		if err := validateURL(*params.URL); err != nil {
			return nil, err
		}
		endpoint.URL = *params.URL
	}
	if params.Events != nil {
		if err := validateEvents(params.Events); err != nil {
			return nil, err
		}
		endpoint.Events = params.Events
	}
	if params.Name != nil {
		endpoint.Name = *params.Name
	}
	if params.AuthType != nil {
		if !domain.ValidAuthType(*params.AuthType) {
			return nil, apperror.ErrInvalidAuthConfig("unknown auth type " + string(*params.AuthType))
		}
		endpoint.AuthType = *params.AuthType
		if *params.AuthType == domain.AuthTypeNone {
			endpoint.AuthConfigEnc = ""
		} else if params.AuthConfig == nil && endpoint.AuthConfigEnc == "" {
			return nil, apperror.ErrInvalidAuthConfig("auth_config required for auth type " + string(*params.AuthType))
		}
	}
	if params.AuthConfig != nil {
		enc, err := s.keySvc.EncryptAuthConfig(*params.AuthConfig)
		if err != nil {
			return nil, apperror.ErrEncryptionFailure(err)
		}
		endpoint.AuthConfigEnc = enc
	}
	if params.Headers != nil {
		endpoint.Headers = params.Headers
	}
	if params.IsActive != nil {
		endpoint.IsActive = *params.IsActive
	}
	if params.MaxRetries != nil {
		endpoint.MaxRetries = *params.MaxRetries
	}
	if params.RetryDelaySeconds != nil {
		endpoint.RetryDelaySeconds = *params.RetryDelaySeconds
	}
	if params.TimeoutSeconds != nil {
		endpoint.TimeoutSeconds = *params.TimeoutSeconds
	}
	endpoint.UpdatedAt = time.Now().UTC()

	if err := s.endpointRepo.Update(ctx, endpoint); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return endpoint, nil
}

func (s *endpointService) Get(ctx context.Context, id uuid.UUID) (*domain.WebhookEndpoint, error) {
	return s.getExisting(ctx, id)
}

func (s *endpointService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.WebhookEndpoint, error) {
	endpoints, err := s.endpointRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return endpoints, nil
}

// Deactivate soft-disables the endpoint; delivery history is preserved and
// future dispatch/sweep selection skips it.
func (s *endpointService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := s.getExisting(ctx, id); err != nil {
		return err
	}
	if err := s.endpointRepo.SetActive(ctx, id, false); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	s.log.Info().Str("endpoint_id", id.String()).Msg("webhook endpoint deactivated")
	return nil
}

func (s *endpointService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.getExisting(ctx, id); err != nil {
		return err
	}
	if err := s.endpointRepo.Delete(ctx, id); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	s.log.Info().Str("endpoint_id", id.String()).Msg("webhook endpoint deleted")
	return nil
}

func (s *endpointService) ListDeliveries(ctx context.Context, params ports.DeliveryListParams) ([]domain.DeliveryAttempt, int64, error) {
	if _, err := s.getExisting(ctx, params.EndpointID); err != nil {
		return nil, 0, err
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 200 {
		params.PageSize = 50
	}
	attempts, total, err := s.deliveryRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(err)
	}
	return attempts, total, nil
}

func (s *endpointService) getExisting(ctx context.Context, id uuid.UUID) (*domain.WebhookEndpoint, error) {
	endpoint, err := s.endpointRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if endpoint == nil {
		return nil, apperror.ErrEndpointNotFound()
	}
	return endpoint, nil
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperror.ErrInvalidURL(raw)
	}
	return nil
}

func validateEvents(events []string) error {
	if len(events) == 0 {
		return apperror.Validation("events must not be empty")
	}
	var invalid []string
	for _, e := range events {
		if !domain.KnownEventType(e) {
			invalid = append(invalid, e)
		}
	}
	if len(invalid) > 0 {
		return apperror.ErrInvalidEventTypes(invalid)
	}
	return nil
}

func valueOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}
