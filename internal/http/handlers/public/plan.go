package public

import (
	"github.com/nutriplan/payments/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetPlans lists the active plan catalog.
func (h *Handler) GetPlans(c *gin.Context) {
	plans, err := h.PlanService.ListActivePlans(c.Request.Context())
	if err != nil {
		respondError(c, response.CodeInternal, "plan fetch failed", err)
		return
	}
	response.Success(c, plans)
}
