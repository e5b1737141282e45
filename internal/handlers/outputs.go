package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cheew/terratherm/internal/models"
	"github.com/cheew/terratherm/internal/service"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK      = "ok"
	statusUpdated = "updated"
	statusCleared = "cleared"
	statusSaved   = "saved"

	errInvalidOutputID = "invalid output id"
	errSaveConfig      = "failed to save configuration"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a
// 400 JSON on failure. Returns false if the request was already handled.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if h.log != nil {
			h.log.Infow("bad_request_body", "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// outputID parses and validates the :id path parameter.
func (h *Handler) outputID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidOutputID})
		return 0, false
	}
	return id, true
}

// commandStatus maps a control-service error to the right HTTP response.
// Validation errors are 4xx; the state is guaranteed unmodified.
func (h *Handler) commandStatus(c *gin.Context, err error, logKey string) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"status": statusUpdated})
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidOutputIndex):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrFaultStillPresent):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		if h.log != nil {
			h.log.Infow(logKey, "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Full system status
// @Tags         system
// @Produce      json
// @Success      200  {object}  models.StatusSnapshot
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Snapshot(time.Now()))
}

// @Summary      List outputs
// @Tags         outputs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "outputs"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/outputs [get]
// @Security     BearerAuth
func (h *Handler) listOutputs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"outputs": h.services.Control.Outputs()})
}

// @Summary      Get one output
// @Tags         outputs
// @Produce      json
// @Param        id   path      int  true  "Output index"
// @Success      200  {object}  models.Output
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/outputs/{id} [get]
// @Security     BearerAuth
func (h *Handler) getOutput(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	o, err := h.services.Control.Output(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary      Output temperature/power history (newest first)
// @Tags         outputs
// @Produce      json
// @Param        id     path   int  true   "Output index"
// @Param        limit  query  int  false  "Max samples"
// @Success      200  {object}  map[string]interface{}  "samples"
// @Router       /api/v1/outputs/{id}/history [get]
// @Security     BearerAuth
func (h *Handler) getOutputHistory(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			limit = v
		}
	}
	samples, err := h.services.Control.History(id, limit)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(samples), "samples": samples})
}

// @Summary      Next schedule change today
// @Tags         outputs
// @Produce      json
// @Param        id   path  int  true  "Output index"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/outputs/{id}/next-change [get]
// @Security     BearerAuth
func (h *Handler) getNextChange(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	change, active, err := h.services.Control.NextChange(id, time.Now())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if !active {
		c.JSON(http.StatusOK, gin.H{"next": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"next": change})
}

// Request DTO for setting mode.
type modeRequest struct {
	Mode models.ControlMode `json:"mode" binding:"required"` // off | manual | pid | onoff | schedule
}

// @Summary      Set control mode
// @Description  Every mode transition resets the output's PID state
// @Tags         outputs
// @Accept       json
// @Produce      json
// @Param        id    path  int          true  "Output index"
// @Param        body  body  modeRequest  true  "Mode"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/outputs/{id}/mode [put]
// @Security     BearerAuth
func (h *Handler) setMode(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	var req modeRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	h.commandStatus(c, h.services.Control.SetMode(c.Request.Context(), id, req.Mode), "set_mode_rejected")
}

type targetRequest struct {
	TargetC float64 `json:"target_c" binding:"required"`
}

// @Summary      Set target temperature
// @Tags         outputs
// @Accept       json
// @Produce      json
// @Param        id    path  int            true  "Output index"
// @Param        body  body  targetRequest  true  "Target °C"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/outputs/{id}/target [put]
// @Security     BearerAuth
func (h *Handler) setTarget(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	var req targetRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	h.commandStatus(c, h.services.Control.SetTarget(id, req.TargetC), "set_target_rejected")
}

type powerRequest struct {
	Power *int `json:"power" binding:"required"` // 0..100, used in manual mode
}

// @Summary      Set manual power
// @Tags         outputs
// @Accept       json
// @Produce      json
// @Param        id    path  int           true  "Output index"
// @Param        body  body  powerRequest  true  "Power 0..100"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/outputs/{id}/power [put]
// @Security     BearerAuth
func (h *Handler) setManualPower(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	var req powerRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	h.commandStatus(c, h.services.Control.SetManualPower(id, *req.Power), "set_power_rejected")
}

// @Summary      Set PID gains
// @Description  Changing gains resets the integral accumulator
// @Tags         outputs
// @Accept       json
// @Produce      json
// @Param        id    path  int              true  "Output index"
// @Param        body  body  models.PIDGains  true  "Gain triple"
// @Success      200  {object}  map[string]string
// @Router       /api/v1/outputs/{id}/gains [put]
// @Security     BearerAuth
func (h *Handler) setGains(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	var req models.PIDGains
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	h.commandStatus(c, h.services.Control.SetGains(id, req), "set_gains_rejected")
}

type deviceRequest struct {
	Device models.DeviceType `json:"device" binding:"required"`
}

// @Summary      Set device type
// @Description  Rejected when the device class is incompatible with the channel's hardware
// @Tags         outputs
// @Accept       json
// @Produce      json
// @Param        id    path  int            true  "Output index"
// @Param        body  body  deviceRequest  true  "Device type"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/outputs/{id}/device [put]
// @Security     BearerAuth
func (h *Handler) setDevice(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	var req deviceRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	h.commandStatus(c, h.services.Control.SetDevice(id, req.Device), "set_device_rejected")
}

type scheduleRequest struct {
	Slots []models.ScheduleSlot `json:"slots" binding:"required"`
}

// @Summary      Replace schedule slots (max 8)
// @Tags         outputs
// @Accept       json
// @Produce      json
// @Param        id    path  int              true  "Output index"
// @Param        body  body  scheduleRequest  true  "Slot table"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/outputs/{id}/schedule [put]
// @Security     BearerAuth
func (h *Handler) setSchedule(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	var req scheduleRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	h.commandStatus(c, h.services.Control.SetSchedule(id, req.Slots), "set_schedule_rejected")
}

// @Summary      Update output settings
// @Description  Enablement, name, sensor assignment and safety limits
// @Tags         outputs
// @Accept       json
// @Produce      json
// @Param        id    path  int                     true  "Output index"
// @Param        body  body  service.OutputSettings  true  "Settings"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Router       /api/v1/outputs/{id}/settings [put]
// @Security     BearerAuth
func (h *Handler) setSettings(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	var req service.OutputSettings
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	h.commandStatus(c, h.services.Control.SetSettings(id, req), "set_settings_rejected")
}

// @Summary      Clear a latched fault
// @Description  Re-validates the fault condition is gone before clearing
// @Tags         outputs
// @Produce      json
// @Param        id   path  int  true  "Output index"
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  map[string]string  "fault condition still present"
// @Router       /api/v1/outputs/{id}/clear-fault [post]
// @Security     BearerAuth
func (h *Handler) clearFault(c *gin.Context) {
	id, ok := h.outputID(c)
	if !ok {
		return
	}
	if err := h.services.Control.ClearFault(c.Request.Context(), id); err != nil {
		h.commandStatus(c, err, "clear_fault_rejected")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusCleared})
}

// @Summary      Persist output configuration
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/config/save [post]
// @Security     BearerAuth
func (h *Handler) saveConfig(c *gin.Context) {
	if err := h.services.Config.Save(c.Request.Context()); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errSaveConfig, "config_save_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSaved})
}
