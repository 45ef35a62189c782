package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRetryScheduler_LinearBackoff(t *testing.T) {
	s := NewRetryScheduler()
	endpoint := &domain.WebhookEndpoint{MaxRetries: 3, RetryDelaySeconds: 10}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next0, ok := s.Next(0, endpoint, now)
	require.True(t, ok)
	assert.Equal(t, now.Add(10*time.Second), next0)

	next1, ok := s.Next(1, endpoint, now)
	require.True(t, ok)
	assert.Equal(t, now.Add(20*time.Second), next1)

	next2, ok := s.Next(2, endpoint, now)
	require.True(t, ok)
	assert.Equal(t, now.Add(30*time.Second), next2)

	assert.True(t, next1.After(next0), "waits grow monotonically")
	assert.True(t, next2.After(next1))
}

func TestRetryScheduler_BudgetExhausted(t *testing.T) {
	s := NewRetryScheduler()
	endpoint := &domain.WebhookEndpoint{MaxRetries: 3, RetryDelaySeconds: 10}
	now := time.Now().UTC()

	_, ok := s.Next(3, endpoint, now)
	assert.False(t, ok, "retryCount == MaxRetries dead-letters the attempt")

	_, ok = s.Next(7, endpoint, now)
	assert.False(t, ok)
}

func TestRetryScheduler_ZeroRetries(t *testing.T) {
	s := NewRetryScheduler()
	endpoint := &domain.WebhookEndpoint{MaxRetries: 0, RetryDelaySeconds: 10}

	_, ok := s.Next(0, endpoint, time.Now().UTC())
	assert.False(t, ok, "max_retries=0 means a single attempt only")
}

func TestDeliveryClaimKey_PerCycle(t *testing.T) {
	id := uuid.New()

	k0 := deliveryClaimKey(id, 0)
	k1 := deliveryClaimKey(id, 1)

	assert.Equal(t, fmt.Sprintf("claim:delivery:%s:0", id), k0)
	assert.NotEqual(t, k0, k1, "each retry cycle claims a fresh key")
}

func TestSweep_ClaimsAndSubmits(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deliveryRepo := mocks.NewMockDeliveryRepository(ctrl)
	claims := mocks.NewMockClaimStore(ctrl)
	endpointRepo := mocks.NewMockEndpointRepository(ctrl)

	dispatcher := NewDispatcher(endpointRepo, deliveryRepo, NewHMACSignatureService(),
		NewAuthHeaderBuilder(newTestKeyManager(t)), NewRetryScheduler(),
		&stubHTTPClient{status: 200}, DispatcherOptions{PoolSize: 2}, zerolog.Nop())
	defer dispatcher.Shutdown()

	sweeper := NewRetrySweeper(deliveryRepo, claims, dispatcher, time.Minute, 100, 2*time.Minute, zerolog.Nop())

	due := []domain.DeliveryAttempt{
		{ID: uuid.New(), EndpointID: uuid.New(), RetryCount: 1, Status: domain.DeliveryStatusRetrying},
		{ID: uuid.New(), EndpointID: uuid.New(), RetryCount: 0, Status: domain.DeliveryStatusRetrying},
	}
	deliveryRepo.EXPECT().ListDueRetries(gomock.Any(), gomock.Any(), 100).Return(due, nil)

	// First row is claimed, second already held elsewhere.
	claims.EXPECT().Claim(gomock.Any(), deliveryClaimKey(due[0].ID, 1), 2*time.Minute).Return(true, nil)
	claims.EXPECT().Claim(gomock.Any(), deliveryClaimKey(due[1].ID, 0), 2*time.Minute).Return(false, nil)

	// Only the claimed attempt reaches the delivery path.
	endpointRepo.EXPECT().GetByID(gomock.Any(), due[0].EndpointID).Return(nil, nil)

	claimed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
}

func TestSweep_ClaimErrorSkipsRow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deliveryRepo := mocks.NewMockDeliveryRepository(ctrl)
	claims := mocks.NewMockClaimStore(ctrl)
	endpointRepo := mocks.NewMockEndpointRepository(ctrl)

	dispatcher := NewDispatcher(endpointRepo, deliveryRepo, NewHMACSignatureService(),
		NewAuthHeaderBuilder(newTestKeyManager(t)), NewRetryScheduler(),
		&stubHTTPClient{status: 200}, DispatcherOptions{PoolSize: 2}, zerolog.Nop())
	defer dispatcher.Shutdown()

	sweeper := NewRetrySweeper(deliveryRepo, claims, dispatcher, time.Minute, 100, 2*time.Minute, zerolog.Nop())

	due := []domain.DeliveryAttempt{
		{ID: uuid.New(), EndpointID: uuid.New(), RetryCount: 2, Status: domain.DeliveryStatusRetrying},
	}
	deliveryRepo.EXPECT().ListDueRetries(gomock.Any(), gomock.Any(), 100).Return(due, nil)
	claims.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, assert.AnError)

	claimed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err, "claim-store errors do not fail the sweep")
	assert.Zero(t, claimed, "unclaimed rows stay due for the next sweep")
}

func TestSweeper_StartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deliveryRepo := mocks.NewMockDeliveryRepository(ctrl)
	claims := mocks.NewMockClaimStore(ctrl)
	endpointRepo := mocks.NewMockEndpointRepository(ctrl)

	dispatcher := NewDispatcher(endpointRepo, deliveryRepo, NewHMACSignatureService(),
		NewAuthHeaderBuilder(newTestKeyManager(t)), NewRetryScheduler(),
		&stubHTTPClient{status: 200}, DispatcherOptions{PoolSize: 2}, zerolog.Nop())
	defer dispatcher.Shutdown()

	deliveryRepo.EXPECT().ListDueRetries(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil).AnyTimes()

	sweeper := NewRetrySweeper(deliveryRepo, claims, dispatcher, 5*time.Millisecond, 10, time.Minute, zerolog.Nop())
	sweeper.Start(context.Background())
	time.Sleep(25 * time.Millisecond)
	sweeper.Stop()

	// Second stop is a no-op, not a panic.
	sweeper.Stop()
}
