package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outbound header names. The wire contract is fixed: existing subscriber
// integrations verify signatures against these exact headers and body bytes.
const (
	UserAgent              = "Schedula-Webhook/1.0"
	HeaderWebhookID        = "X-Webhook-ID"
	HeaderWebhookEvent     = "X-Webhook-Event"
	HeaderWebhookSignature = "X-Webhook-Signature"

	redactedValue = "[REDACTED]"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookPayload is the JSON body sent to subscriber endpoints.
type webhookPayload struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Created string         `json:"created"`
	Data    map[string]any `json:"data"`
}

// DispatcherOptions holds delivery engine tuning.
type DispatcherOptions struct {
	PoolSize         int
	QueueSize        int
	MaxResponseBytes int64
}

// Dispatcher implements ports.DispatchService. It fans events out to
// subscribed endpoints on a bounded worker pool; each task performs one
// HTTP delivery attempt and records the outcome in the delivery ledger.
type Dispatcher struct {
	endpointRepo ports.EndpointRepository
	deliveryRepo ports.DeliveryRepository
	sigSvc       ports.SignatureService
	authSvc      ports.AuthHeaderService
	scheduler    *RetryScheduler
	httpClient   HTTPClient
	pool         pond.Pool
	maxRespBytes int64
	log          zerolog.Logger
}

// NewDispatcher creates the event dispatcher and its worker pool.
func NewDispatcher(
	endpointRepo ports.EndpointRepository,
	deliveryRepo ports.DeliveryRepository,
	sigSvc ports.SignatureService,
	authSvc ports.AuthHeaderService,
	scheduler *RetryScheduler,
	httpClient HTTPClient,
	opts DispatcherOptions,
	log zerolog.Logger,
) *Dispatcher {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 16
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = 10 * 1024
	}
	return &Dispatcher{
		endpointRepo: endpointRepo,
		deliveryRepo: deliveryRepo,
		sigSvc:       sigSvc,
		authSvc:      authSvc,
		scheduler:    scheduler,
		httpClient:   httpClient,
		pool:         pond.NewPool(opts.PoolSize, pond.WithQueueSize(opts.QueueSize)),
		maxRespBytes: opts.MaxResponseBytes,
		log:          log,
	}
}

// Shutdown stops accepting new tasks and waits for in-flight deliveries.
func (d *Dispatcher) Shutdown() {
	d.pool.StopAndWait()
}

// Dispatch finds active endpoints subscribed to eventType and submits one
// delivery task per endpoint. It returns once all tasks are submitted; a
// task failure never surfaces here and never cancels sibling tasks.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, data map[string]any, eventID string) error {
	if !domain.KnownEventType(eventType) {
		return apperror.ErrInvalidEventTypes([]string{eventType})
	}

	endpoints, err := d.endpointRepo.ListActiveForEvent(ctx, eventType)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if len(endpoints) == 0 {
		// No subscribers is routine, not an error.
		d.log.Debug().Str("event_type", eventType).Msg("dispatch: no subscribed endpoints")
		return nil
	}

	if eventID == "" {
		eventID = uuid.New().String()
	}

	// Detach from the caller's cancellation: dispatch is fire-and-forget
	// and deliveries outlive the triggering request.
	taskCtx := context.WithoutCancel(ctx)

	for i := range endpoints {
		endpoint := endpoints[i]
		d.pool.Submit(func() {
			d.deliverNew(taskCtx, &endpoint, eventType, eventID, data)
		})
	}

	d.log.Info().
		Str("event_type", eventType).
		Str("event_id", eventID).
		Int("endpoints", len(endpoints)).
		Msg("dispatch: delivery tasks submitted")
	return nil
}

// TestWebhook performs exactly one synchronous delivery attempt with
// deterministic sample data. Test attempts carry a "test-" event ID so they
// are identifiable in the ledger, never touch endpoint aggregates, and are
// never retried.
func (d *Dispatcher) TestWebhook(ctx context.Context, endpointID uuid.UUID, eventType string) (*domain.DeliveryAttempt, error) {
	endpoint, err := d.endpointRepo.GetByID(ctx, endpointID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if endpoint == nil {
		return nil, apperror.ErrEndpointNotFound()
	}

	if eventType == "" && len(endpoint.Events) > 0 {
		eventType = endpoint.Events[0]
	}
	if !domain.KnownEventType(eventType) {
		return nil, apperror.ErrInvalidEventTypes([]string{eventType})
	}

	eventID := domain.TestEventIDPrefix + strconv.FormatInt(time.Now().UnixMilli(), 10)
	attempt, err := d.newAttempt(endpoint, eventType, eventID, SamplePayload(eventType))
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	d.run(ctx, endpoint, attempt, runOptions{})
	return attempt, nil
}

// RetryDelivery manually re-runs a terminally FAILED attempt, preserving
// its original event ID, body, and retry count — redrives happen outside
// the retry budget, so retry_count never exceeds max_retries. Manual
// retries do not re-touch the endpoint's terminal counters.
func (d *Dispatcher) RetryDelivery(ctx context.Context, attemptID uuid.UUID) (*domain.DeliveryAttempt, error) {
	attempt, err := d.deliveryRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if attempt == nil {
		return nil, apperror.ErrDeliveryNotFound()
	}
	if attempt.Status != domain.DeliveryStatusFailed {
		return nil, apperror.ErrDeliveryNotRetryable()
	}

	endpoint, err := d.endpointRepo.GetByID(ctx, attempt.EndpointID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if endpoint == nil {
		return nil, apperror.ErrEndpointNotFound()
	}

	attempt.Status = domain.DeliveryStatusPending
	attempt.NextRetryAt = nil
	d.run(ctx, endpoint, attempt, runOptions{existing: true})
	return attempt, nil
}

// Redeliver re-runs a RETRYING attempt that came due. Called by the retry
// sweep after it has claimed the attempt.
func (d *Dispatcher) Redeliver(ctx context.Context, attempt *domain.DeliveryAttempt) {
	endpoint, err := d.endpointRepo.GetByID(ctx, attempt.EndpointID)
	if err != nil {
		d.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("redeliver: endpoint lookup failed")
		return
	}
	if endpoint == nil {
		d.log.Warn().Str("attempt_id", attempt.ID.String()).Msg("redeliver: endpoint no longer exists")
		return
	}

	attempt.RetryCount++
	attempt.Status = domain.DeliveryStatusPending
	attempt.NextRetryAt = nil
	d.run(ctx, endpoint, attempt, runOptions{existing: true, counters: true, allowRetry: true})
}

// SubmitRedeliver schedules Redeliver on the worker pool.
func (d *Dispatcher) SubmitRedeliver(ctx context.Context, attempt *domain.DeliveryAttempt) {
	taskCtx := context.WithoutCancel(ctx)
	d.pool.Submit(func() {
		d.Redeliver(taskCtx, attempt)
	})
}

// runOptions controls one worker execution.
type runOptions struct {
	existing   bool // attempt row already persisted (retry path)
	counters   bool // update endpoint aggregates
	allowRetry bool // hand failures to the retry scheduler
}

func (d *Dispatcher) deliverNew(ctx context.Context, endpoint *domain.WebhookEndpoint, eventType, eventID string, data map[string]any) {
	attempt, err := d.newAttempt(endpoint, eventType, eventID, data)
	if err != nil {
		d.log.Error().Err(err).
			Str("endpoint_id", endpoint.ID.String()).
			Str("event_type", eventType).
			Msg("delivery: payload marshaling failed")
		return
	}
	d.run(ctx, endpoint, attempt, runOptions{counters: true, allowRetry: true})
}

// newAttempt creates a PENDING attempt with the serialized body. The body
// bytes are fixed here and reused verbatim by every retry, so the signature
// stays valid across attempts.
func (d *Dispatcher) newAttempt(endpoint *domain.WebhookEndpoint, eventType, eventID string, data map[string]any) (*domain.DeliveryAttempt, error) {
	now := time.Now().UTC()
	id := uuid.New()

	body, err := json.Marshal(webhookPayload{
		ID:      id.String(),
		Type:    eventType,
		Created: now.Format(time.RFC3339),
		Data:    data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	return &domain.DeliveryAttempt{
		ID:          id,
		EndpointID:  endpoint.ID,
		EventType:   eventType,
		EventID:     eventID,
		Status:      domain.DeliveryStatusPending,
		RequestURL:  endpoint.URL,
		RequestBody: string(body),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// run executes one HTTP delivery attempt and records the outcome.
func (d *Dispatcher) run(ctx context.Context, endpoint *domain.WebhookEndpoint, attempt *domain.DeliveryAttempt, opts runOptions) {
	headers, err := d.buildHeaders(endpoint, attempt)
	if err != nil {
		// Auth config problems fail the attempt without an HTTP call:
		// sending unauthenticated would be worse than not sending. The
		// attempt still counts: it was triggered, it just never left.
		d.persistAttempt(ctx, attempt, opts.existing)
		d.markTriggered(ctx, endpoint, attempt, opts)
		d.recordFailure(ctx, endpoint, attempt, err.Error(), opts)
		return
	}

	d.persistAttempt(ctx, attempt, opts.existing)
	d.markTriggered(ctx, endpoint, attempt, opts)

	status, respHeaders, respBody, elapsed, reqErr := d.post(ctx, endpoint, attempt, headers)

	now := time.Now().UTC()
	elapsedMs := elapsed.Milliseconds()
	attempt.DurationMs = &elapsedMs
	attempt.UpdatedAt = now

	if reqErr != nil {
		d.recordFailure(ctx, endpoint, attempt, fmt.Sprintf("request failed: %v", reqErr), opts)
		return
	}

	attempt.HTTPStatus = &status
	attempt.ResponseHeaders = respHeaders
	attempt.ResponseBody = respBody

	if status < 200 || status >= 300 {
		d.recordFailure(ctx, endpoint, attempt, fmt.Sprintf("non-2xx response: %d", status), opts)
		return
	}

	attempt.Status = domain.DeliveryStatusSuccess
	attempt.ErrorMessage = nil
	attempt.NextRetryAt = nil
	attempt.DeliveredAt = &now
	if err := d.deliveryRepo.Update(ctx, attempt); err != nil {
		d.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("delivery: ledger update failed")
	}
	if opts.counters {
		if err := d.endpointRepo.MarkOutcome(ctx, endpoint.ID, true); err != nil {
			d.log.Warn().Err(err).Str("endpoint_id", endpoint.ID.String()).Msg("delivery: counter update failed")
		}
	}

	d.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("endpoint_id", endpoint.ID.String()).
		Str("event_type", attempt.EventType).
		Int("retry_count", attempt.RetryCount).
		Int("status", status).
		Int64("duration_ms", elapsedMs).
		Msg("delivery: succeeded")
}

// post performs the HTTP POST bounded by the endpoint's timeout.
func (d *Dispatcher) post(ctx context.Context, endpoint *domain.WebhookEndpoint, attempt *domain.DeliveryAttempt, headers map[string]string) (int, string, string, time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, endpoint.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint.URL, bytes.NewReader([]byte(attempt.RequestBody)))
	if err != nil {
		return 0, "", "", 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, "", "", elapsed, err
	}
	defer resp.Body.Close()

	// Bound how much of the response we keep in the ledger.
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, d.maxRespBytes))
	if err != nil {
		bodyBytes = []byte(fmt.Sprintf("failed to read response body: %v", err))
	}

	return resp.StatusCode, flattenHeaders(resp.Header), string(bodyBytes), elapsed, nil
}

// buildHeaders assembles the outbound header set: fixed headers, then the
// endpoint's static headers (fixed headers win on collision), then auth
// headers, then the signature over the exact body bytes.
func (d *Dispatcher) buildHeaders(endpoint *domain.WebhookEndpoint, attempt *domain.DeliveryAttempt) (map[string]string, error) {
	headers := map[string]string{
		"Content-Type":     "application/json",
		"User-Agent":       UserAgent,
		HeaderWebhookID:    attempt.ID.String(),
		HeaderWebhookEvent: attempt.EventType,
	}

	fixed := make(map[string]struct{}, len(headers))
	for k := range headers {
		fixed[http.CanonicalHeaderKey(k)] = struct{}{}
	}
	for k, v := range endpoint.Headers {
		if _, taken := fixed[http.CanonicalHeaderKey(k)]; taken {
			continue
		}
		headers[k] = v
	}

	authHeaders, err := d.authSvc.Build(endpoint.AuthType, endpoint.AuthConfigEnc)
	if err != nil {
		return nil, err
	}
	sensitive := make(map[string]struct{}, len(authHeaders))
	for k, v := range authHeaders {
		headers[k] = v
		sensitive[http.CanonicalHeaderKey(k)] = struct{}{}
	}

	if endpoint.Secret != "" {
		headers[HeaderWebhookSignature] = d.sigSvc.Sign(endpoint.Secret, []byte(attempt.RequestBody))
	}

	attempt.RequestHeaders = redactHeaders(headers, sensitive)
	return headers, nil
}

// markTriggered stamps last_triggered_at and counts the logical delivery on
// its first attempt. Runs on every delivery path that maintains aggregates,
// including attempts that fail before the HTTP call.
func (d *Dispatcher) markTriggered(ctx context.Context, endpoint *domain.WebhookEndpoint, attempt *domain.DeliveryAttempt, opts runOptions) {
	if !opts.counters {
		return
	}
	if err := d.endpointRepo.MarkTriggered(ctx, endpoint.ID, attempt.RetryCount == 0); err != nil {
		d.log.Warn().Err(err).Str("endpoint_id", endpoint.ID.String()).Msg("delivery: counter update failed")
	}
}

func (d *Dispatcher) persistAttempt(ctx context.Context, attempt *domain.DeliveryAttempt, existing bool) {
	var err error
	if existing {
		err = d.deliveryRepo.Update(ctx, attempt)
	} else {
		err = d.deliveryRepo.Create(ctx, attempt)
	}
	if err != nil {
		// Best effort: a ledger outage must not block the HTTP delivery itself.
		d.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("delivery: ledger write failed")
	}
}

// recordFailure classifies a failed attempt: schedule a retry while budget
// remains, otherwise dead-letter it.
func (d *Dispatcher) recordFailure(ctx context.Context, endpoint *domain.WebhookEndpoint, attempt *domain.DeliveryAttempt, msg string, opts runOptions) {
	now := time.Now().UTC()
	attempt.ErrorMessage = &msg
	attempt.UpdatedAt = now

	if opts.allowRetry {
		if next, ok := d.scheduler.Next(attempt.RetryCount, endpoint, now); ok {
			attempt.Status = domain.DeliveryStatusRetrying
			attempt.NextRetryAt = &next
			if err := d.deliveryRepo.Update(ctx, attempt); err != nil {
				d.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("delivery: ledger update failed")
			}
			d.log.Warn().
				Str("attempt_id", attempt.ID.String()).
				Str("endpoint_id", endpoint.ID.String()).
				Int("retry_count", attempt.RetryCount).
				Time("next_retry_at", next).
				Str("error", msg).
				Msg("delivery: failed, retry scheduled")
			return
		}
	}

	attempt.Status = domain.DeliveryStatusFailed
	attempt.NextRetryAt = nil
	attempt.DeliveredAt = &now
	if err := d.deliveryRepo.Update(ctx, attempt); err != nil {
		d.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("delivery: ledger update failed")
	}
	if opts.counters {
		if err := d.endpointRepo.MarkOutcome(ctx, endpoint.ID, false); err != nil {
			d.log.Warn().Err(err).Str("endpoint_id", endpoint.ID.String()).Msg("delivery: counter update failed")
		}
	}

	d.log.Error().
		Str("attempt_id", attempt.ID.String()).
		Str("endpoint_id", endpoint.ID.String()).
		Int("retry_count", attempt.RetryCount).
		Str("error", msg).
		Msg("delivery: failed permanently")
}

// redactHeaders serializes headers for the ledger with credential values
// masked. Owners see which headers were sent, never the secrets inside.
func redactHeaders(headers map[string]string, sensitive map[string]struct{}) string {
	redacted := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, ok := sensitive[http.CanonicalHeaderKey(k)]; ok || http.CanonicalHeaderKey(k) == "Authorization" {
			redacted[k] = redactedValue
			continue
		}
		redacted[k] = v
	}
	out, _ := json.Marshal(redacted)
	return string(out)
}

func flattenHeaders(h http.Header) string {
	flat := make(map[string]string, len(h))
	for k := range h {
		flat[k] = h.Get(k)
	}
	out, _ := json.Marshal(flat)
	return string(out)
}
