package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const defaultCycleLimit = 50

// ListCycles returns the most recent cycle records, newest first.
// GET /v1/cycles?limit=N
func (h *Handler) ListCycles(c echo.Context) error {
	ctx := c.Request().Context()

	limit := defaultCycleLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = n
	}

	cycles, err := h.store.ListCycles(ctx, limit)
	if err != nil {
		h.logger.Error("failed to list cycles", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list cycles"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
	})
}

// ListCycleDecisions returns the decision entries of one cycle, in the
// order they were recorded.
// GET /v1/cycles/:seq/decisions
func (h *Handler) ListCycleDecisions(c echo.Context) error {
	ctx := c.Request().Context()

	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil || seq <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "seq must be a positive integer"})
	}

	decisions, err := h.store.ListDecisions(ctx, seq)
	if err != nil {
		h.logger.Error("failed to list decisions", zap.Int64("seq", seq), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list decisions"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"seq":       seq,
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// RunCycle triggers one decision cycle immediately and returns its record.
// The cycle is detached from the request context: a client disconnect never
// aborts a cycle partway through.
// POST /v1/cycles/run
func (h *Handler) RunCycle(c echo.Context) error {
	ctx := context.WithoutCancel(c.Request().Context())

	rec, err := h.orchestrator.RunCycle(ctx)
	if err != nil {
		h.logger.Error("on-demand cycle failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "cycle failed"})
	}

	return c.JSON(http.StatusOK, rec)
}

// ListPurchaseOrders returns every purchase order issued so far.
// GET /v1/purchase-orders
func (h *Handler) ListPurchaseOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.store.ListPurchaseOrders(ctx)
	if err != nil {
		h.logger.Error("failed to list purchase orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list purchase orders"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"purchase_orders": orders,
		"count":           len(orders),
	})
}
