package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"webhook-engine/internal/adapter/http/dto"
	"webhook-engine/internal/adapter/http/middleware"
	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
	"webhook-engine/internal/core/ports/mocks"
	"webhook-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testEndpoint(owner uuid.UUID) *domain.WebhookEndpoint {
	now := time.Now().UTC()
	return &domain.WebhookEndpoint{
		ID:                uuid.New(),
		OwnerID:           owner,
		Name:              "Booking hook",
		URL:               "https://example.com/hooks",
		Events:            []string{domain.EventBookingCreated},
		AuthType:          domain.AuthTypeNone,
		Secret:            "whsec_abc",
		IsActive:          true,
		MaxRetries:        3,
		RetryDelaySeconds: 60,
		TimeoutSeconds:    30,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func authedContext(w *httptest.ResponseRecorder, owner uuid.UUID) (*gin.Context, *gin.Engine) {
	c, r := gin.CreateTestContext(w)
	c.Set(middleware.CtxSubject, owner.String())
	return c, r
}

// --- Endpoint Handler Tests ---

func TestCreateWebhook_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	owner := uuid.New()
	created := testEndpoint(owner)
	endpointSvc.EXPECT().Create(gomock.Any(), ports.CreateEndpointParams{
		OwnerID:  owner,
		Name:     "Booking hook",
		URL:      "https://example.com/hooks",
		Events:   []string{domain.EventBookingCreated},
		AuthType: domain.AuthTypeNone,
	}).Return(created, nil)

	body, _ := json.Marshal(dto.CreateWebhookRequest{
		Name:   "Booking hook",
		URL:    "https://example.com/hooks",
		Events: []string{domain.EventBookingCreated},
	})

	w := httptest.NewRecorder()
	c, _ := authedContext(w, owner)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, created.ID.String(), data["id"])
	assert.Equal(t, "whsec_abc", data["secret"], "create response must include the signing secret")
}

func TestCreateWebhook_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	// Missing required fields => binding error
	w := httptest.NewRecorder()
	c, _ := authedContext(w, uuid.New())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", bytes.NewReader([]byte("{}")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateWebhook_BadScheme(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	body, _ := json.Marshal(dto.CreateWebhookRequest{
		Name:   "FTP hook",
		URL:    "ftp://example.com/hooks",
		Events: []string{domain.EventBookingCreated},
	})

	w := httptest.NewRecorder()
	c, _ := authedContext(w, uuid.New())
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateWebhook_NoSubject(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", bytes.NewReader([]byte("{}")))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetWebhook_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	e := testEndpoint(uuid.New())
	endpointSvc.EXPECT().Get(gomock.Any(), e.ID).Return(e, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/"+e.ID.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: e.ID.String()}}

	h.Get(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, e.ID.String(), data["id"])
	_, hasSecret := data["secret"]
	assert.False(t, hasSecret, "secret must not appear outside the create response")
}

func TestGetWebhook_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	id := uuid.New()
	endpointSvc.EXPECT().Get(gomock.Any(), id).Return(nil, apperror.ErrEndpointNotFound())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/"+id.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateWebhook_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	e := testEndpoint(uuid.New())
	e.Name = "Renamed"
	endpointSvc.EXPECT().Update(gomock.Any(), e.ID, gomock.Any()).Return(e, nil)

	name := "Renamed"
	body, _ := json.Marshal(dto.UpdateWebhookRequest{Name: &name})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPatch, "/api/v1/webhooks/"+e.ID.String(), bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: e.ID.String()}}

	h.Update(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Renamed", data["name"])
}

func TestDeactivateWebhook_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	id := uuid.New()
	endpointSvc.EXPECT().Deactivate(gomock.Any(), id).Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+id.String()+"/deactivate", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Deactivate(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListDeliveries_StatusFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	id := uuid.New()
	failed := domain.DeliveryStatusFailed
	endpointSvc.EXPECT().ListDeliveries(gomock.Any(), ports.DeliveryListParams{
		EndpointID: id,
		Status:     &failed,
		Page:       1,
		PageSize:   50,
	}).Return([]domain.DeliveryAttempt{}, int64(0), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/"+id.String()+"/deliveries?status=FAILED", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.ListDeliveries(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListDeliveries_UnknownStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	id := uuid.New()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/"+id.String()+"/deliveries?status=BOGUS", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.ListDeliveries(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTestWebhook_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	endpointSvc := mocks.NewMockEndpointService(ctrl)
	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEndpointHandler(endpointSvc, dispatchSvc)

	id := uuid.New()
	status := 200
	attempt := &domain.DeliveryAttempt{
		ID:         uuid.New(),
		EndpointID: id,
		EventType:  domain.EventBookingCreated,
		EventID:    "test-abc",
		Status:     domain.DeliveryStatusSuccess,
		HTTPStatus: &status,
	}
	dispatchSvc.EXPECT().TestWebhook(gomock.Any(), id, "").Return(attempt, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/"+id.String()+"/test", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Test(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "SUCCESS", data["status"])
	assert.Equal(t, "test-abc", data["event_id"])
}

// --- Event Handler Tests ---

func TestDispatchEvent_Accepted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEventHandler(dispatchSvc)

	dispatchSvc.EXPECT().
		Dispatch(gomock.Any(), domain.EventPaymentCompleted, map[string]any{"payment_id": float64(77)}, "evt-1").
		Return(nil)

	body, _ := json.Marshal(dto.DispatchEventRequest{
		EventType: domain.EventPaymentCompleted,
		Data:      map[string]any{"payment_id": 77},
		EventID:   "evt-1",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Dispatch(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestDispatchEvent_UnknownEventType(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	h := NewEventHandler(dispatchSvc)

	dispatchSvc.EXPECT().
		Dispatch(gomock.Any(), "bogus_event", gomock.Any(), "").
		Return(apperror.ErrInvalidEventTypes([]string{"bogus_event"}))

	body, _ := json.Marshal(dto.DispatchEventRequest{
		EventType: "bogus_event",
		Data:      map[string]any{"x": 1},
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Dispatch(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Delivery Handler Tests ---

func TestRetryDelivery_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	deliveryRepo := mocks.NewMockDeliveryRepository(ctrl)
	h := NewDeliveryHandler(dispatchSvc, deliveryRepo)

	id := uuid.New()
	attempt := &domain.DeliveryAttempt{
		ID:         id,
		RetryCount: 4,
		Status:     domain.DeliveryStatusSuccess,
	}
	dispatchSvc.EXPECT().RetryDelivery(gomock.Any(), id).Return(attempt, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/"+id.String()+"/retry", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Retry(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRetryDelivery_NotRetryable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	deliveryRepo := mocks.NewMockDeliveryRepository(ctrl)
	h := NewDeliveryHandler(dispatchSvc, deliveryRepo)

	id := uuid.New()
	dispatchSvc.EXPECT().RetryDelivery(gomock.Any(), id).Return(nil, apperror.ErrDeliveryNotRetryable())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/"+id.String()+"/retry", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Retry(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetDelivery_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dispatchSvc := mocks.NewMockDispatchService(ctrl)
	deliveryRepo := mocks.NewMockDeliveryRepository(ctrl)
	h := NewDeliveryHandler(dispatchSvc, deliveryRepo)

	id := uuid.New()
	deliveryRepo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/deliveries/"+id.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
