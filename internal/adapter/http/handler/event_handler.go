package handler

import (
	"net/http"

	"webhook-engine/internal/adapter/http/dto"
	"webhook-engine/internal/core/ports"
	"webhook-engine/pkg/apperror"
	"webhook-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// EventHandler accepts domain events for fan-out delivery.
type EventHandler struct {
	dispatchSvc ports.DispatchService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(dispatchSvc ports.DispatchService) *EventHandler {
	return &EventHandler{dispatchSvc: dispatchSvc}
}

// Dispatch handles POST /events. Delivery happens asynchronously; the 202
// acknowledges submission, outcomes land in the delivery ledger.
func (h *EventHandler) Dispatch(c *gin.Context) {
	var req dto.DispatchEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	err := h.dispatchSvc.Dispatch(c.Request.Context(), req.EventType, req.Data, req.EventID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, gin.H{"message": "event accepted"})
}

// HealthCheck handles GET /healthz — deep health check verifying all dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
