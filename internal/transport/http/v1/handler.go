// Package v1 provides the HTTP handlers for the assistant backend.
package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jarvishq/jarvisd/internal/domain"
	"github.com/jarvishq/jarvisd/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Tool API
	e.GET("/v1/tools", h.ListTools)
	e.POST("/v1/tools/:tool_name/invoke", h.InvokeTool)
	e.POST("/v1/tools/:tool_name/enabled", h.SetToolEnabled)

	// Run audit API
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:run_id", h.GetRun)

	// Approval API
	e.GET("/v1/approvals/pending", h.ListPendingApprovals)
	e.POST("/v1/approvals/:approval_id/decide", h.SubmitApprovalDecision)

	// Memory API
	e.POST("/v1/memories", h.WriteMemory)
	e.GET("/v1/memories", h.ListMemories)
	e.GET("/v1/memories/:memory_id", h.GetMemory)
	e.PATCH("/v1/memories/:memory_id", h.UpdateMemory)
	e.POST("/v1/memories/:memory_id/pin", h.PinMemory)
	e.DELETE("/v1/memories/:memory_id", h.ForgetMemory)
	e.POST("/v1/recall", h.Recall)
	e.POST("/v1/context", h.BuildContext)

	e.GET("/v1/stats", h.GetStats)
	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errJSON maps domain errors onto HTTP statuses.
func errJSON(c echo.Context, err error) error {
	var policyErr *domain.PolicyError
	if errors.As(err, &policyErr) {
		status := http.StatusForbidden
		switch {
		case errors.Is(err, domain.ErrToolNotFound), strings.HasSuffix(policyErr.Reason, "not found"):
			status = http.StatusNotFound
		case policyErr.Reason == "invalid input",
			strings.Contains(policyErr.Reason, "required"),
			strings.Contains(policyErr.Reason, "must be"):
			status = http.StatusBadRequest
		}
		return c.JSON(status, map[string]string{"error": err.Error()})
	}

	var consistencyErr *domain.ConsistencyError
	if errors.As(err, &consistencyErr) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
