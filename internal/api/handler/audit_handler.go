package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

const auditPageSize = 50

// AuditHandler exposes the auth audit trail for the caller's own session.
type AuditHandler struct {
	repo ports.AuditRepository
}

func NewAuditHandler(repo ports.AuditRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

type auditResponse struct {
	Success bool                 `json:"success"`
	Events  []*domain.AuditEvent `json:"events"`
}

// List returns the most recent auth events for the current session.
//
// @Summary      Session audit trail
// @Tags         audit
// @Produce      json
// @Success      200  {object}  auditResponse
// @Failure      401  {object}  map[string]string
// @Router       /admin/audit [get]
func (h *AuditHandler) List(c echo.Context) error {
	sid, err := guardedSessionID(c)
	if err != nil {
		return err
	}

	events, err := h.repo.FindBySession(c.Request().Context(), sid, auditPageSize)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}
	return c.JSON(http.StatusOK, auditResponse{Success: true, Events: events})
}
