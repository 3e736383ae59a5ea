package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jarvishq/jarvisd/internal/domain"
)

// ListPendingApprovals lists approvals awaiting a decision.
func (h *Handler) ListPendingApprovals(c echo.Context) error {
	approvals, err := h.service.Store().ListPendingApprovals(c.Request().Context())
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"approvals": approvals})
}

// SubmitApprovalDecision records a decision on a pending approval and
// resumes the paused run: approve executes it, deny cancels it.
func (h *Handler) SubmitApprovalDecision(c echo.Context) error {
	approvalID := c.Param("approval_id")
	var req domain.ApprovalDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Decision != "approve" && req.Decision != "deny" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "decision must be approve or deny"})
	}

	ctx := c.Request().Context()

	approval, err := h.service.Gateway().Resolve(ctx, approvalID, req.Decision == "approve", req.Response)
	if err != nil {
		return errJSON(c, err)
	}

	result, err := h.service.ResumeRun(ctx, approval.RunID, approval.Decision)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"approval": approval,
		"result":   result,
	})
}
