// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"dentallab/internal/domain/auth"
	"dentallab/internal/domain/inventory"
	"dentallab/internal/domain/orders"
	"dentallab/internal/domain/pricing"
	"dentallab/internal/domain/salary"
	"dentallab/internal/infrastructure/http/v1/handlers"
	"dentallab/internal/infrastructure/http/v1/middleware"
	"dentallab/pkg/logger"
)

// RouterConfig holds the router's dependencies.
type RouterConfig struct {
	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator
	Development  bool

	Orders    *orders.Service
	Inventory *inventory.Service
	Pricing   *pricing.Resolver
	Salary    *salary.Service

	// Idempotency, when set, makes order creation replayable via X-Idempotency-Key.
	Idempotency middleware.IdempotencyStore
	Health      *handlers.HealthHandler
}

// NewRouter creates and configures the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Order matters: Recovery registers panics as errors that ErrorHandler renders.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	if cfg.Health != nil {
		health := router.Group("/health")
		health.GET("/live", cfg.Health.Live)
		health.GET("/ready", cfg.Health.Ready)
		health.GET("/info", cfg.Health.Info)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))

	base := handlers.NewBaseHandler()
	registerOrderRoutes(api, base, cfg)
	registerMaterialRoutes(api, base, cfg)
	registerPricingRoutes(api, base, cfg)
	registerSalaryRoutes(api, base, cfg)

	return router
}

func registerOrderRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Orders == nil {
		return
	}
	h := handlers.NewOrderHandler(base, cfg.Orders)
	stages := handlers.NewStageHandler(base, cfg.Orders)

	g := rg.Group("/orders")
	create := []gin.HandlerFunc{h.Create}
	if cfg.Idempotency != nil {
		create = append([]gin.HandlerFunc{middleware.Idempotency(cfg.Idempotency)}, create...)
	}
	g.POST("", create...)
	g.GET("", h.List)
	g.GET("/kanban", h.Kanban)
	g.GET("/dashboard", h.Dashboard)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Cancel)
	g.PUT("/:id/items", h.ReplaceItems)
	g.POST("/:id/comments", h.AddComment)
	g.POST("/:id/write-off", h.WriteOff)

	st := g.Group("/:id/stages/:stageId")
	st.POST("/start", stages.Start)
	st.POST("/complete", stages.Complete)
	st.POST("/skip", stages.Skip)
	st.PUT("/assignee", stages.Assign)
}

func registerMaterialRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Inventory == nil {
		return
	}
	h := handlers.NewMaterialHandler(base, cfg.Inventory)
	privileged := middleware.RequireRole(auth.PrivilegedRoles...)

	g := rg.Group("/materials")
	g.GET("", h.List)
	g.GET("/:id/movements", h.Movements)
	g.POST("/:id/receipts", privileged, h.Receive)
	g.POST("/:id/deductions", privileged, h.Deduct)
	g.POST("/:id/inventory", privileged, h.Inventory)
}

func registerPricingRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Pricing == nil {
		return
	}
	h := handlers.NewPricingHandler(base, cfg.Pricing)
	rg.GET("/pricing/resolve", h.Resolve)
}

func registerSalaryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Salary == nil {
		return
	}
	h := handlers.NewSalaryHandler(base, cfg.Salary)
	privileged := middleware.RequireRole(auth.PrivilegedRoles...)

	g := rg.Group("/salary")
	g.POST("/accruals", privileged, h.Accrue)
	g.GET("/records", privileged, h.Records)
}
