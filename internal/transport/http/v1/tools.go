package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// InvokeTool handles tool invocation.
func (h *Handler) InvokeTool(c echo.Context) error {
	toolName := c.Param("tool_name")
	var req domain.InvokeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ctx := c.Request().Context()

	result, err := h.service.Invoke(ctx, toolName, req.Input)
	if err != nil {
		return errJSON(c, err)
	}

	status := http.StatusOK
	if result.Status == domain.RunStatusNeedsConfirm {
		status = http.StatusAccepted
	}
	return c.JSON(status, result)
}

// ListTools lists the tool catalog.
func (h *Handler) ListTools(c echo.Context) error {
	tools, err := h.service.Store().ListTools(c.Request().Context())
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tools": tools})
}

// SetToolEnabled flips a tool's enabled flag.
func (h *Handler) SetToolEnabled(c echo.Context) error {
	toolName := c.Param("tool_name")
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ok, err := h.service.Store().SetToolEnabled(c.Request().Context(), toolName, req.Enabled)
	if err != nil {
		return errJSON(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "tool not found"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tool_name": toolName, "enabled": req.Enabled})
}

// GetRun retrieves one audit record.
func (h *Handler) GetRun(c echo.Context) error {
	runID := c.Param("run_id")

	run, err := h.service.Store().GetRun(c.Request().Context(), runID)
	if err != nil {
		return errJSON(c, err)
	}
	if run == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, run)
}

// ListRuns lists recent runs, newest first.
func (h *Handler) ListRuns(c echo.Context) error {
	limit := 50
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 {
			limit = val
		}
	}

	runs, err := h.service.Store().ListRecentRuns(c.Request().Context(), limit)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetStats returns the operational snapshot.
func (h *Handler) GetStats(c echo.Context) error {
	stats, err := h.service.GetStats(c.Request().Context())
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
