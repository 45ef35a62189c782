package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RetryScheduler decides whether and when a failed attempt runs again.
type RetryScheduler struct{}

// NewRetryScheduler creates the retry policy.
func NewRetryScheduler() *RetryScheduler {
	return &RetryScheduler{}
}

// Next returns the time of the next attempt for a failure at retryCount.
// The backoff is linear in the attempt number: base delay × (retryCount+1),
// so successive waits grow monotonically. Returns false once the endpoint's
// retry budget is exhausted.
func (s *RetryScheduler) Next(retryCount int, endpoint *domain.WebhookEndpoint, now time.Time) (time.Time, bool) {
	if retryCount >= endpoint.MaxRetries {
		return time.Time{}, false
	}
	delay := endpoint.RetryDelay() * time.Duration(retryCount+1)
	return now.Add(delay), true
}

// deliveryClaimKey identifies one retry cycle of one attempt. Including the
// retry count makes the claim self-expiring per cycle: the next due retry of
// the same row uses a fresh key.
func deliveryClaimKey(attemptID uuid.UUID, retryCount int) string {
	return fmt.Sprintf("claim:delivery:%s:%d", attemptID, retryCount)
}

// RetrySweeper periodically re-dispatches due RETRYING attempts through the
// normal delivery path. Each due row is claimed in the claim store first, so
// overlapping sweep invocations (or a sweep racing a slow predecessor) never
// double-deliver the same retry.
type RetrySweeper struct {
	deliveryRepo ports.DeliveryRepository
	claims       ports.ClaimStore
	dispatcher   *Dispatcher
	interval     time.Duration
	batchSize    int
	claimTTL     time.Duration
	log          zerolog.Logger

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRetrySweeper creates the sweeper.
func NewRetrySweeper(
	deliveryRepo ports.DeliveryRepository,
	claims ports.ClaimStore,
	dispatcher *Dispatcher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	log zerolog.Logger,
) *RetrySweeper {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 2 * time.Minute
	}
	return &RetrySweeper{
		deliveryRepo: deliveryRepo,
		claims:       claims,
		dispatcher:   dispatcher,
		interval:     interval,
		batchSize:    batchSize,
		claimTTL:     claimTTL,
		log:          log,
	}
}

// Start launches the sweep loop. Safe to call once per sweeper.
func (s *RetrySweeper) Start(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info().Dur("interval", s.interval).Msg("retry sweeper started")
		for {
			select {
			case <-ticker.C:
				if n, err := s.Sweep(ctx); err != nil {
					s.log.Error().Err(err).Msg("retry sweep failed")
				} else if n > 0 {
					s.log.Info().Int("claimed", n).Msg("retry sweep submitted deliveries")
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit. In-flight deliveries
// already submitted to the worker pool are not cancelled.
func (s *RetrySweeper) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.log.Info().Msg("retry sweeper stopped")
}

// Sweep runs one pass: select due RETRYING attempts, claim each, and submit
// the claimed ones for redelivery. Returns how many were claimed.
func (s *RetrySweeper) Sweep(ctx context.Context) (int, error) {
	due, err := s.deliveryRepo.ListDueRetries(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("listing due retries: %w", err)
	}

	claimed := 0
	for i := range due {
		attempt := due[i]
		won, err := s.claims.Claim(ctx, deliveryClaimKey(attempt.ID, attempt.RetryCount), s.claimTTL)
		if err != nil {
			// Skipping is safe: the row stays due and a later sweep picks it up.
			s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("retry sweep: claim failed, skipping")
			continue
		}
		if !won {
			continue
		}
		claimed++
		s.dispatcher.SubmitRedeliver(ctx, &attempt)
	}
	return claimed, nil
}
