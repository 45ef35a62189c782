package integration

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"webhook-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentSweeps_NoDoubleDelivery verifies the claim-store guarantee:
// however many sweep passes race over the same due retry, the subscriber
// receives exactly one request per retry cycle.
func TestConcurrentSweeps_NoDoubleDelivery(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	rcv := newReceiver(200)
	defer rcv.server.Close()

	created := app.createWebhook(t, rcv.server.URL, nil)
	endpointID := uuid.MustParse(created["id"].(string))

	// Plant a due RETRYING row directly, as the initial failed attempt
	// would have left it.
	past := time.Now().UTC().Add(-time.Second)
	attempt := &domain.DeliveryAttempt{
		ID:          uuid.New(),
		EndpointID:  endpointID,
		EventType:   "booking_created",
		EventID:     "evt_claim_race",
		RetryCount:  0,
		Status:      domain.DeliveryStatusRetrying,
		RequestURL:  rcv.server.URL,
		RequestBody: `{"id":"evt_claim_race","type":"booking_created","data":{"booking_id":1}}`,
		NextRetryAt: &past,
		CreatedAt:   past,
		UpdatedAt:   past,
	}
	require.NoError(t, app.deliveryRepo.Create(context.Background(), attempt))

	// 20 sweep passes race for the same row.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := app.sweeper.Sweep(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		got, err := app.deliveryRepo.GetByID(context.Background(), attempt.ID)
		return err == nil && got != nil && got.Status == domain.DeliveryStatusSuccess
	}, 5*time.Second, 20*time.Millisecond)

	assert.EqualValues(t, 1, rcv.hits.Load(), "exactly one sweep may win the claim")
}

// TestConcurrentDispatch_CountersConsistent fires many events at the same
// endpoint in parallel and checks the aggregates add up afterwards.
func TestConcurrentDispatch_CountersConsistent(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	rcv := newReceiver(200)
	defer rcv.server.Close()

	created := app.createWebhook(t, rcv.server.URL, nil)
	webhookID := created["id"].(string)

	const events = 50
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := app.do(t, http.MethodPost, "/api/v1/events", map[string]any{
				"event_type": "booking_created",
				"data":       map[string]any{"booking_id": 1},
			})
			resp.Body.Close()
			assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return rcv.hits.Load() == events
	}, 10*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		resp := app.do(t, http.MethodGet, "/api/v1/webhooks/"+webhookID, nil)
		endpoint := decodeData(t, resp)
		return endpoint["total_deliveries"] == float64(events) &&
			endpoint["successful_deliveries"] == float64(events) &&
			endpoint["failed_deliveries"] == float64(0)
	}, 5*time.Second, 50*time.Millisecond)

	// Ledger agrees with the aggregates.
	resp := app.do(t, http.MethodGet, "/api/v1/webhooks/"+webhookID+"/deliveries?page_size=100", nil)
	data := decodeData(t, resp)
	assert.Equal(t, float64(events), data["total"])
}

// TestConcurrentEndpointMutation exercises config updates racing deliveries.
// This is a smoke test for data races under `go test -race`, not a behavior
// assertion.
func TestConcurrentEndpointMutation(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	rcv := newReceiver(200)
	defer rcv.server.Close()

	created := app.createWebhook(t, rcv.server.URL, nil)
	webhookID := created["id"].(string)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := app.do(t, http.MethodPost, "/api/v1/events", map[string]any{
				"event_type": "booking_created",
				"data":       map[string]any{"booking_id": 1},
			})
			resp.Body.Close()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := app.do(t, http.MethodPatch, "/api/v1/webhooks/"+webhookID, map[string]any{
				"name": "renamed hook",
			})
			resp.Body.Close()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return rcv.hits.Load() == 10
	}, 10*time.Second, 50*time.Millisecond)

	resp := app.do(t, http.MethodGet, "/api/v1/webhooks/"+webhookID, nil)
	endpoint := decodeData(t, resp)
	assert.Equal(t, "renamed hook", endpoint["name"])
}
