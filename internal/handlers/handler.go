package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"mold_monitor/internal/logger"
	"mold_monitor/internal/service"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
}

type Option func(*Handler)

// WithMetrics exposes h (usually a promhttp handler) on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(hd *Handler) { hd.metrics = h }
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live feed: state snapshots plus samples, boundaries and finished cycles.
	// The token may be passed as ?access_token= on the handshake.
	router.GET("/ws", h.operatorMiddleware, h.wsConnect)

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
	api := r.Group("/api/v1", h.operatorMiddleware)
	{
		h.registerSessionRoutes(api)
		h.registerProfileRoutes(api)
		h.registerCycleRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerSessionRoutes(api *gin.RouterGroup) {
	sess := api.Group("/session")
	{
		sess.POST("/start", h.startSession)
		sess.POST("/stop", h.stopSession)
		sess.GET("/state", h.getState)
	}
	api.GET("/sessions/:id/csv", h.exportSessionCSV)
}

func (h *Handler) registerProfileRoutes(api *gin.RouterGroup) {
	api.GET("/profile", h.getProfile)
	// Body: profile as YAML or JSON, see configs/profile.yml
	api.PUT("/profile", h.putProfile)
}

func (h *Handler) registerCycleRoutes(api *gin.RouterGroup) {
	cycles := api.Group("/cycles")
	{
		cycles.GET("", h.listCycles)
		cycles.GET("/:id", h.getCycle)
		cycles.GET("/:id/csv", h.exportCycleCSV)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
