package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// WriteMemory stores a new memory item.
func (h *Handler) WriteMemory(c echo.Context) error {
	var req domain.WriteMemoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	item, err := h.service.WriteMemory(c.Request().Context(), req)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

// GetMemory retrieves one memory item.
func (h *Handler) GetMemory(c echo.Context) error {
	memoryID := c.Param("memory_id")

	item, err := h.service.GetMemory(c.Request().Context(), memoryID)
	if err != nil {
		return errJSON(c, err)
	}
	if item == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "memory not found"})
	}
	return c.JSON(http.StatusOK, item)
}

// ListMemories lists live items matching the query filters.
func (h *Handler) ListMemories(c echo.Context) error {
	minImportance := 0
	if m := c.QueryParam("min_importance"); m != "" {
		if val, err := strconv.Atoi(m); err == nil {
			minImportance = val
		}
	}
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			limit = val
		}
	}

	items, err := h.service.QueryMemories(c.Request().Context(),
		domain.MemoryType(c.QueryParam("type")),
		c.QueryParam("tag"),
		c.QueryParam("text"),
		minImportance, limit)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"memories": items})
}

// UpdateMemory patches a memory item.
func (h *Handler) UpdateMemory(c echo.Context) error {
	memoryID := c.Param("memory_id")
	var req domain.UpdateMemoryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	item, err := h.service.UpdateMemory(c.Request().Context(), memoryID, req)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// PinMemory pins a memory item.
func (h *Handler) PinMemory(c echo.Context) error {
	memoryID := c.Param("memory_id")

	if err := h.service.PinMemory(c.Request().Context(), memoryID); err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"memory_id": memoryID, "pinned": true})
}

// ForgetMemory permanently deletes a memory item.
func (h *Handler) ForgetMemory(c echo.Context) error {
	memoryID := c.Param("memory_id")

	if err := h.service.ForgetMemory(c.Request().Context(), memoryID); err != nil {
		return errJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Recall runs hybrid retrieval and returns scored items.
func (h *Handler) Recall(c echo.Context) error {
	var req struct {
		Query string `json:"query"`
		K     int    `json:"k,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	results, err := h.service.Search(c.Request().Context(), req.Query, req.K)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

// BuildContext assembles a budget-bounded context block for a query.
func (h *Handler) BuildContext(c echo.Context) error {
	var req struct {
		Query  string `json:"query"`
		Budget int    `json:"budget,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	assembled, err := h.service.BuildContext(c.Request().Context(), req.Query, req.Budget)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, assembled)
}
