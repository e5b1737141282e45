package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const errScanSensors = "failed to scan sensor bus"

// @Summary      List temperature probes
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "sensors"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/sensors [get]
// @Security     BearerAuth
func (h *Handler) listSensors(c *gin.Context) {
	sensors := h.services.Sensors.List()
	c.JSON(http.StatusOK, gin.H{"count": len(sensors), "sensors": sensors})
}

// @Summary      Rescan the sensor bus
// @Description  Marks probes that stopped answering as undiscovered without dropping them
// @Tags         sensors
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sensors/scan [post]
// @Security     BearerAuth
func (h *Handler) scanSensors(c *gin.Context) {
	if err := h.services.Sensors.Scan(); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errScanSensors, "sensor_scan_failed", err)
		return
	}
	sensors := h.services.Sensors.List()
	c.JSON(http.StatusOK, gin.H{"count": len(sensors), "sensors": sensors})
}
