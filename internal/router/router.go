package router

import (
	"time"

	"stockledger/internal/config"
	"stockledger/internal/handler"
	"stockledger/internal/middleware"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, notifier service.LowStockNotifier) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	txManager := repository.NewTxManager(db)
	balanceRepo := repository.NewStockBalanceRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	adjustmentRepo := repository.NewStockAdjustmentRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	numberingSvc := service.NewNumberingService(sequenceRepo)
	ledgerSvc := service.NewLedgerService(
		txManager, balanceRepo, movementRepo, reservationRepo,
		adjustmentRepo, catalogRepo, warehouseRepo, numberingSvc, notifier,
	)
	reservationSvc := service.NewReservationService(
		txManager, balanceRepo, reservationRepo, warehouseRepo, catalogRepo, numberingSvc,
	)
	reportSvc := service.NewReportService(balanceRepo, movementRepo)

	// ── Handlers ─────────────────────────────────────────────────────────────
	movementsH := handler.NewMovementHandler(ledgerSvc)
	reservationsH := handler.NewReservationHandler(reservationSvc)
	balancesH := handler.NewBalanceHandler(reportSvc)
	reportsH := handler.NewReportHandler(reportSvc)
	healthH := handler.NewHealthHandler(db, rdb)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", healthH.Check)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: operator, supervisor, admin — declared per-endpoint
		operate := middleware.RequireRole("operator", "supervisor", "admin")
		approve := middleware.RequireRole("supervisor", "admin")

		mov := v1.Group("/movements")
		{
			mov.POST("/receipts", operate, movementsH.Receipt)
			mov.POST("/issues", operate, movementsH.Issue)
			mov.POST("/transfers", operate, movementsH.Transfer)
			// Corrections are privileged: they can write stock out of existence.
			mov.POST("/adjustments", approve, movementsH.Adjustment)

			mov.GET("", operate, movementsH.List)
			mov.GET("/history", operate, movementsH.History)
			mov.GET("/:id", operate, movementsH.Get)

			mov.POST("/:id/approve", approve, movementsH.Approve)
			mov.POST("/:id/reject", approve, movementsH.Reject)
			mov.POST("/:id/complete", approve, movementsH.Complete)
			mov.POST("/:id/cancel", operate, movementsH.Cancel)
		}

		res := v1.Group("/reservations")
		{
			res.POST("", operate, reservationsH.Reserve)
			res.GET("", operate, reservationsH.ListByReference)
			res.GET("/:id", operate, reservationsH.Get)
			res.POST("/:id/fulfill", operate, reservationsH.Fulfill)
			res.POST("/:id/cancel", operate, reservationsH.Cancel)
		}

		v1.GET("/balances", operate, balancesH.List)
		v1.GET("/balances/low-stock", operate, balancesH.LowStock)

		rep := v1.Group("/reports", middleware.RequireRole("supervisor", "admin"))
		{
			rep.GET("/movement-summary", reportsH.MovementSummary)
			rep.GET("/reconciliation", reportsH.Reconcile)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
