package handler

import (
	"strconv"
	"time"

	"webhook-engine/internal/adapter/http/dto"
	"webhook-engine/internal/adapter/http/middleware"
	"webhook-engine/internal/core/domain"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"
	"webhook-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EndpointHandler handles webhook endpoint registry routes.
type EndpointHandler struct {
	endpointSvc ports.EndpointService
	dispatchSvc ports.DispatchService
}

// NewEndpointHandler creates a new endpoint handler.
func NewEndpointHandler(endpointSvc ports.EndpointService, dispatchSvc ports.DispatchService) *EndpointHandler {
	return &EndpointHandler{endpointSvc: endpointSvc, dispatchSvc: dispatchSvc}
}

// Create handles POST /webhooks. The signing secret appears in this
// response only; it is not retrievable afterwards.
func (h *EndpointHandler) Create(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	authType := domain.AuthTypeNone
	if req.AuthType != "" {
		authType = domain.AuthType(req.AuthType)
	}

	endpoint, err := h.endpointSvc.Create(c.Request.Context(), ports.CreateEndpointParams{
		OwnerID:           ownerID,
		Name:              req.Name,
		URL:               req.URL,
		Events:            req.Events,
		AuthType:          authType,
		AuthConfig:        toDomainAuthConfig(req.AuthConfig),
		Headers:           req.Headers,
		MaxRetries:        req.MaxRetries,
		RetryDelaySeconds: req.RetryDelaySeconds,
		TimeoutSeconds:    req.TimeoutSeconds,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewWebhookResponse(endpoint, true))
}

// List handles GET /webhooks.
func (h *EndpointHandler) List(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	endpoints, err := h.endpointSvc.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WebhookResponse, 0, len(endpoints))
	for i := range endpoints {
		items = append(items, dto.NewWebhookResponse(&endpoints[i], false))
	}
	response.OK(c, items)
}

// Get handles GET /webhooks/:id.
func (h *EndpointHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrEndpointNotFound())
		return
	}

	endpoint, err := h.endpointSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWebhookResponse(endpoint, false))
}

// Update handles PATCH /webhooks/:id.
func (h *EndpointHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrEndpointNotFound())
		return
	}

	var req dto.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	var authType *domain.AuthType
	if req.AuthType != nil {
		t := domain.AuthType(*req.AuthType)
		authType = &t
	}

	endpoint, err := h.endpointSvc.Update(c.Request.Context(), id, ports.UpdateEndpointParams{
		Name:              req.Name,
		URL:               req.URL,
		Events:            req.Events,
		AuthType:          authType,
		AuthConfig:        toDomainAuthConfig(req.AuthConfig),
		Headers:           req.Headers,
		IsActive:          req.IsActive,
		MaxRetries:        req.MaxRetries,
		RetryDelaySeconds: req.RetryDelaySeconds,
		TimeoutSeconds:    req.TimeoutSeconds,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWebhookResponse(endpoint, false))
}

// Deactivate handles POST /webhooks/:id/deactivate. Pending retries for the
// endpoint are dropped by the sweep query once the flag is off.
func (h *EndpointHandler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrEndpointNotFound())
		return
	}

	if err := h.endpointSvc.Deactivate(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "webhook deactivated"})
}

// Delete handles DELETE /webhooks/:id.
func (h *EndpointHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrEndpointNotFound())
		return
	}

	if err := h.endpointSvc.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"message": "webhook deleted"})
}

// ListDeliveries handles GET /webhooks/:id/deliveries.
func (h *EndpointHandler) ListDeliveries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrEndpointNotFound())
		return
	}

	params := ports.DeliveryListParams{EndpointID: id}

	if s := c.Query("status"); s != "" {
		status := domain.DeliveryStatus(s)
		switch status {
		case domain.DeliveryStatusPending, domain.DeliveryStatusSuccess,
			domain.DeliveryStatusFailed, domain.DeliveryStatusRetrying:
			params.Status = &status
		default:
			response.Error(c, apperror.Validation("unknown delivery status: "+s))
			return
		}
	}
	if from, ok := parseTimeQuery(c, "from"); !ok {
		return
	} else {
		params.From = from
	}
	if to, ok := parseTimeQuery(c, "to"); !ok {
		return
	} else {
		params.To = to
	}
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	attempts, total, err := h.endpointSvc.ListDeliveries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.DeliveryResponse, 0, len(attempts))
	for i := range attempts {
		items = append(items, dto.NewDeliveryResponse(&attempts[i]))
	}

	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	response.OK(c, dto.DeliveryListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// Test handles POST /webhooks/:id/test — one synchronous delivery with
// sample data, never counted or retried.
func (h *EndpointHandler) Test(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrEndpointNotFound())
		return
	}

	var req dto.TestWebhookRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
	}

	attempt, err := h.dispatchSvc.TestWebhook(c.Request.Context(), id, req.EventType)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewDeliveryResponse(attempt))
}

func ownerFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxSubject)
	if !ok {
		return uuid.Nil, false
	}
	s, ok := v.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name+" timestamp, want RFC3339"))
		return nil, false
	}
	return &t, true
}

func toDomainAuthConfig(req *dto.AuthConfigRequest) *domain.AuthConfig {
	if req == nil {
		return nil
	}
	return &domain.AuthConfig{
		Token:    req.Token,
		Username: req.Username,
		Password: req.Password,
		KeyName:  req.KeyName,
		KeyValue: req.KeyValue,
	}
}
