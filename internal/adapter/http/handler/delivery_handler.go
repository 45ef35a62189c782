package handler

import (
	"webhook-engine/internal/adapter/http/dto"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"
	"webhook-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DeliveryHandler handles delivery-ledger routes.
type DeliveryHandler struct {
	dispatchSvc ports.DispatchService
	deliveries  ports.DeliveryRepository
}

// NewDeliveryHandler creates a new delivery handler.
func NewDeliveryHandler(dispatchSvc ports.DispatchService, deliveries ports.DeliveryRepository) *DeliveryHandler {
	return &DeliveryHandler{dispatchSvc: dispatchSvc, deliveries: deliveries}
}

// Get handles GET /deliveries/:id.
func (h *DeliveryHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrDeliveryNotFound())
		return
	}

	attempt, err := h.deliveries.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	if attempt == nil {
		response.Error(c, apperror.ErrDeliveryNotFound())
		return
	}

	response.OK(c, dto.NewDeliveryResponse(attempt))
}

// Retry handles POST /deliveries/:id/retry — a synchronous re-run of a
// dead-lettered attempt.
func (h *DeliveryHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrDeliveryNotFound())
		return
	}

	attempt, err := h.dispatchSvc.RetryDelivery(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewDeliveryResponse(attempt))
}
