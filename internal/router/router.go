package router

import (
	"context"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/config"
	"github.com/FedeEstrubia/imanager-argentina/internal/handler"
	"github.com/FedeEstrubia/imanager-argentina/internal/infra"
	"github.com/FedeEstrubia/imanager-argentina/internal/middleware"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"
	"github.com/FedeEstrubia/imanager-argentina/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// queue may be nil; failed stock writes are then picked up by the retry cron only.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, queue service.ReconciliationQueue, reconCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.AllowedOrigins()...))
	r.Use(middleware.ErrorHandler())

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	reconciliationRepo := repository.NewStockReconciliationRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	settingsSvc := service.NewSettingsService(settingsRepo, rdb,
		time.Duration(cfg.SettingsCacheTTLSeconds)*time.Second,
		service.SettingsDefaults{
			USDRate:      decimal.NewFromFloat(cfg.DefaultUSDRate),
			WarrantyDays: cfg.DefaultWarrantyDays,
		})
	ledger := service.NewStockLedger(productRepo, movementRepo)
	settlementSvc := service.NewSettlementService(transactionRepo, productRepo, customerRepo,
		reconciliationRepo, settingsSvc, ledger, queue)
	productSvc := service.NewProductService(productRepo, movementRepo, transactionRepo, ledger, settingsSvc)
	customerSvc := service.NewCustomerService(customerRepo, transactionRepo)
	warrantySvc := service.NewWarrantyService(transactionRepo, customerRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	settlementsH := handler.NewSettlementsHandler(settlementSvc)
	productsH := handler.NewProductsHandler(productSvc)
	customersH := handler.NewCustomersHandler(customerSvc)
	settingsH := handler.NewSettingsHandler(settingsSvc)
	warrantiesH := handler.NewWarrantiesHandler(warrantySvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, reconCB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes: every record is scoped to the token's subject
	v1 := r.Group("/v1",
		middleware.JWTAuth(cfg.JWTSecret),
		middleware.RequireRole(middleware.RoleAuthenticated),
		middleware.RateLimiter(ctx, cfg.RateLimitPerMin, time.Minute),
	)
	Register(v1, settlementsH, productsH, customersH, settingsH, warrantiesH)

	return r
}

// Register mounts the /v1 resource routes on g. Split out so handler tests
// can mount the same table behind a stub auth middleware.
func Register(
	g *gin.RouterGroup,
	settlementsH *handler.SettlementsHandler,
	productsH *handler.ProductsHandler,
	customersH *handler.CustomersHandler,
	settingsH *handler.SettingsHandler,
	warrantiesH *handler.WarrantiesHandler,
) {
	settlements := g.Group("/settlements")
	{
		settlements.POST("", settlementsH.Settle)
		settlements.GET("", settlementsH.List)
		settlements.POST("/import", settlementsH.Import)
		settlements.GET("/:id", settlementsH.Get)
		settlements.POST("/:id/reverse", settlementsH.Reverse)
	}

	products := g.Group("/products")
	{
		products.GET("", productsH.List)
		products.POST("", productsH.Create)
		products.POST("/bulk", productsH.Bulk)
		products.GET("/:id", productsH.Get)
		products.PUT("/:id", productsH.Update)
		products.DELETE("/:id", productsH.Delete)
		products.PATCH("/:id/stock", productsH.AdjustStock)
		products.GET("/:id/movements", productsH.Movements)
	}

	customers := g.Group("/customers")
	{
		customers.GET("", customersH.List)
		customers.POST("", customersH.Create)
		customers.POST("/quick", customersH.QuickAdd)
		customers.POST("/bulk", customersH.Bulk)
		customers.GET("/:id", customersH.Get)
		customers.PUT("/:id", customersH.Update)
		customers.DELETE("/:id", customersH.Delete)
		customers.GET("/:id/detail", customersH.Detail)
		customers.GET("/:id/credit", customersH.Credit)
	}

	g.GET("/settings", settingsH.Get)
	g.PUT("/settings", settingsH.Update)
	g.GET("/warranties", warrantiesH.List)
}
