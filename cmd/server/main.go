package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/allocation"
	"github.com/boostpool/boostpool/internal/claims"
	"github.com/boostpool/boostpool/internal/config"
	"github.com/boostpool/boostpool/internal/db"
	"github.com/boostpool/boostpool/internal/identity"
	"github.com/boostpool/boostpool/internal/logger"
	"github.com/boostpool/boostpool/internal/settlement"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zlog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer zlog.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		zlog.Fatal("migrations failed", zap.Error(err))
	}
	db.EnsureRuntimeColumns(ctx, pool, zlog)

	dir := identity.NewDirectory(pool)
	allocSvc := allocation.NewService(pool, zlog)
	claimSvc := claims.NewService(pool, dir, zlog, cfg.ClaimRetries)
	settleSvc := settlement.NewService(pool, zlog)

	// Approvals roll order progress up after commit, best-effort.
	claimSvc.OnApproval(func(ctx context.Context, orderID string) {
		if _, err := allocSvc.SyncOrderProgress(ctx, orderID); err != nil {
			zlog.Warn("order progress sync failed",
				zap.String("order_id", orderID), zap.Error(err))
		}
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	// Health and root routes
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "boostpool"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	// Protected routes
	api := e.Group("")
	api.Use(identity.JWTMiddleware([]byte(cfg.JWTSecret)))

	allocation.NewHandler(allocSvc).Register(api)
	claims.NewHandler(claimSvc).Register(api)
	settlement.NewHandler(settleSvc).Register(api)

	// Admin routes
	admin := e.Group("/admin")
	admin.Use(identity.JWTMiddleware([]byte(cfg.JWTSecret)))
	admin.Use(identity.AdminGuard)
	settlement.NewHandler(settleSvc).RegisterAdmin(admin)

	if err := e.Start(":" + cfg.Port); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}
