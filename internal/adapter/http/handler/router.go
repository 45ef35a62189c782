package handler

import (
	"webhook-engine/internal/adapter/http/middleware"
	"webhook-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	EndpointSvc    ports.EndpointService
	DispatchSvc    ports.DispatchService
	DeliveryRepo   ports.DeliveryRepository
	TokenSvc       ports.TokenService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/healthz", HealthCheck(deps.HealthCheckers...))

	// API v1 routes, all behind service-token auth
	tokenAuth := middleware.TokenAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", tokenAuth)

	endpointHandler := NewEndpointHandler(deps.EndpointSvc, deps.DispatchSvc)
	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("", endpointHandler.Create)
		webhooks.GET("", endpointHandler.List)
		webhooks.GET("/:id", endpointHandler.Get)
		webhooks.PATCH("/:id", endpointHandler.Update)
		webhooks.DELETE("/:id", endpointHandler.Delete)
		webhooks.POST("/:id/deactivate", endpointHandler.Deactivate)
		webhooks.GET("/:id/deliveries", endpointHandler.ListDeliveries)
		webhooks.POST("/:id/test", endpointHandler.Test)
	}

	eventHandler := NewEventHandler(deps.DispatchSvc)
	v1.POST("/events", eventHandler.Dispatch)

	deliveryHandler := NewDeliveryHandler(deps.DispatchSvc, deps.DeliveryRepo)
	deliveries := v1.Group("/deliveries")
	{
		deliveries.GET("/:id", deliveryHandler.Get)
		deliveries.POST("/:id/retry", deliveryHandler.Retry)
	}

	return r
}
