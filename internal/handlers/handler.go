package handlers

import (
	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/cheew/terratherm/internal/logger"
	"github.com/cheew/terratherm/internal/service"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// WebSocket live status (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.authMiddleware)
	{
		api.GET("/status", h.getStatus)

		h.registerOutputRoutes(api)
		h.registerSafetyRoutes(api)
		h.registerSensorRoutes(api)
		h.registerLogRoutes(api)

		api.POST("/config/save", h.saveConfig)
	}
}

func (h *Handler) registerOutputRoutes(api *gin.RouterGroup) {
	outputs := api.Group("/outputs")
	{
		outputs.GET("/", h.listOutputs)
		outputs.GET("/:id", h.getOutput)
		outputs.GET("/:id/history", h.getOutputHistory)
		outputs.GET("/:id/next-change", h.getNextChange)
		// Body example: {"mode":"pid"}
		outputs.PUT("/:id/mode", h.setMode)
		outputs.PUT("/:id/target", h.setTarget)
		outputs.PUT("/:id/power", h.setManualPower)
		outputs.PUT("/:id/gains", h.setGains)
		outputs.PUT("/:id/device", h.setDevice)
		outputs.PUT("/:id/schedule", h.setSchedule)
		outputs.PUT("/:id/settings", h.setSettings)
		outputs.POST("/:id/clear-fault", h.clearFault)
	}
}

func (h *Handler) registerSafetyRoutes(api *gin.RouterGroup) {
	safety := api.Group("/safety")
	{
		safety.GET("/", h.getSafety)
		safety.POST("/safe-mode", h.requestSafeMode)
		safety.POST("/clear", h.clearSafeMode)
		safety.POST("/emergency-stop", h.emergencyStop)
	}
}

func (h *Handler) registerSensorRoutes(api *gin.RouterGroup) {
	sensors := api.Group("/sensors")
	{
		sensors.GET("/", h.listSensors)
		sensors.POST("/scan", h.scanSensors)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
