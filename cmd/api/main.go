package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lertxundi/anchorage/internal/adapters/http"
	natsadapter "github.com/lertxundi/anchorage/internal/adapters/nats"
	"github.com/lertxundi/anchorage/internal/adapters/postgres"
	"github.com/lertxundi/anchorage/internal/adapters/tracking"
	"github.com/lertxundi/anchorage/internal/adapters/valkey"
	"github.com/lertxundi/anchorage/internal/core/ports"
	"github.com/lertxundi/anchorage/internal/core/usecases"
	"github.com/lertxundi/anchorage/internal/pkg/config"
	"github.com/lertxundi/anchorage/internal/pkg/logging"
	"github.com/lertxundi/anchorage/internal/pkg/metrics"
	"github.com/lertxundi/anchorage/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("anchorage-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database. A dead database is not fatal: the service keeps serving
	// frames in a degraded mode where anchors live only in memory.
	var (
		stores   ports.AnchorStoreProvider
		queries  ports.AnchorQueryRepository
		sessRepo ports.SessionRepository
	)
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		slog.Warn("database unavailable, anchors will not survive restarts", "error", err)
		db = nil
	} else {
		defer db.Close()
		anchorRepo := postgres.NewAnchorRepo(db)
		stores = anchorRepo
		queries = anchorRepo
		sessRepo = postgres.NewSessionRepo(db)

		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					metrics.UpdateDBPoolMetrics(db.Pool.Stat())
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS. The publisher doubles as the device UI channel: marker updates,
	// status text, and error snackbars all ride ar.ui.<session>.
	var (
		markers ports.MarkerView
		events  ports.EventPublisher
	)
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		markers = pub
		events = pub
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Sessions
	sessions := usecases.NewSessionService(stores, sessRepo, cacheSvc, markers, events,
		func() ports.DeviceTracker { return tracking.NewDevice() })

	// Evict sessions the janitor has reaped on other instances
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats subscriber unavailable", "error", err)
	} else {
		defer sub.Close()
		err = sub.SubscribeSessionExpired(ctx, func(ctx context.Context, sessionID string) error {
			sessions.Evict(sessionID)
			metrics.SessionsPurged.Inc()
			metrics.LiveSessions.Set(float64(sessions.Count()))
			slog.Info("session evicted", "session", sessionID)
			return nil
		})
		if err != nil {
			slog.Warn("session expiry subscription failed", "error", err)
		}
	}

	deps := &http.Dependencies{
		Sessions: sessions,
		Anchors:  queries,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    256 * 1024, // frames are tiny; 256 KB is generous
		AppName:      "Anchorage API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
