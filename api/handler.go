// Package api provides the operational HTTP surface of the orchestrator:
// inspecting the decision trail, deciding escalations and triggering a
// cycle on demand. The decision pipeline itself never depends on it.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/autonomos/orchestrator/orchestrate"
	"github.com/autonomos/orchestrator/store"
)

// Handler handles HTTP requests.
type Handler struct {
	store        store.Store
	orchestrator *orchestrate.Orchestrator
	logger       *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(store store.Store, orchestrator *orchestrate.Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:        store,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/cycles", h.ListCycles)
	e.GET("/v1/cycles/:seq/decisions", h.ListCycleDecisions)
	e.POST("/v1/cycles/run", h.RunCycle)

	e.GET("/v1/escalations", h.ListEscalations)
	e.POST("/v1/escalations/:escalation_id/decide", h.DecideEscalation)

	e.GET("/v1/purchase-orders", h.ListPurchaseOrders)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
