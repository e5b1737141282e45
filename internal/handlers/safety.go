package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cheew/terratherm/internal/models"
)

const (
	statusSafeMode = "safe_mode"
	statusStopped  = "stopped"

	errRequestSafeMode = "failed to enter safe mode"
	errClearSafeMode   = "failed to clear safe mode"
)

// @Summary      Safety state
// @Tags         safety
// @Produce      json
// @Success      200  {object}  models.SafetyStatus
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/safety [get]
// @Security     BearerAuth
func (h *Handler) getSafety(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Safety.Status())
}

// @Summary      Request safe mode
// @Description  Forces all outputs off until an operator clears it; persists across reboots
// @Tags         safety
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/safety/safe-mode [post]
// @Security     BearerAuth
func (h *Handler) requestSafeMode(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Safety.RequestSafeMode(ctx, models.ReasonUserRequested); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errRequestSafeMode, "safe_mode_request_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSafeMode})
}

// @Summary      Clear safe mode
// @Description  Operator exit: resets the reason and boot counter, re-arms the watchdog
// @Tags         safety
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/safety/clear [post]
// @Security     BearerAuth
func (h *Handler) clearSafeMode(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.services.Safety.ClearSafeMode(ctx); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errClearSafeMode, "safe_mode_clear_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusCleared})
}

// @Summary      Emergency stop
// @Description  Sets every output's mode to off and power to zero immediately
// @Tags         safety
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/v1/safety/emergency-stop [post]
// @Security     BearerAuth
func (h *Handler) emergencyStop(c *gin.Context) {
	h.services.Control.EmergencyStop(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": statusStopped})
}
