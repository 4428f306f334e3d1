package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cura-labs/cura/service"
)

// EligibilityHandlers serves bin membership computations
type EligibilityHandlers struct {
	eligibility *service.EligibilityService
	logger      *slog.Logger
}

// NewEligibilityHandlers creates new eligibility handlers
func NewEligibilityHandlers(eligibility *service.EligibilityService, logger *slog.Logger) *EligibilityHandlers {
	return &EligibilityHandlers{eligibility: eligibility, logger: logger}
}

// Membership classifies the posted attributes against the posted bins
func (h *EligibilityHandlers) Membership(c *gin.Context) {
	var req service.EligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "detail": err.Error()})
		return
	}

	report, err := h.eligibility.Evaluate(c.Request.Context(), c.GetString(userAddressKey), req)
	if err != nil {
		h.logger.InfoContext(c.Request.Context(), "eligibility schema rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid schema", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}
