package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/autonomos/orchestrator/domain"
)

// EscalationDecisionRequest is the human verdict on an escalation.
type EscalationDecisionRequest struct {
	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by"`
	Reason    string `json:"reason,omitempty"`
}

// ListEscalations lists escalations, optionally filtered by status.
// GET /v1/escalations?status=PENDING
func (h *Handler) ListEscalations(c echo.Context) error {
	ctx := c.Request().Context()

	status := domain.EscalationStatus(strings.ToUpper(c.QueryParam("status")))
	switch status {
	case "", domain.EscalationStatusPending, domain.EscalationStatusApproved, domain.EscalationStatusRejected:
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "status must be PENDING, APPROVED or REJECTED"})
	}

	escalations, err := h.store.ListEscalations(ctx, status)
	if err != nil {
		h.logger.Error("failed to list escalations", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list escalations"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"escalations": escalations,
		"count":       len(escalations),
	})
}

// DecideEscalation applies a human verdict to a pending escalation.
// Approval executes the recommended action; the call is idempotent.
// POST /v1/escalations/:escalation_id/decide
func (h *Handler) DecideEscalation(c echo.Context) error {
	escalationID := c.Param("escalation_id")

	var req EscalationDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	decision := domain.EscalationStatus(strings.ToUpper(req.Decision))
	if decision != domain.EscalationStatusApproved && decision != domain.EscalationStatusRejected {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "decision must be APPROVED or REJECTED"})
	}

	ctx := c.Request().Context()

	esc, err := h.orchestrator.ResolveEscalation(ctx, escalationID, decision, req.DecidedBy, req.Reason)
	if err != nil {
		h.logger.Error("failed to decide escalation",
			zap.String("escalation_id", escalationID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to decide escalation"})
	}
	if esc == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "escalation not found"})
	}

	return c.JSON(http.StatusOK, esc)
}
