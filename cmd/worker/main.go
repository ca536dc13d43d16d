package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/db"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/metrics"
	"github.com/pet-rehoming/backend/internal/payments"
	"github.com/pet-rehoming/backend/internal/repositories"
	"github.com/pet-rehoming/backend/internal/services"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)
	if cfg.UseMemoryStorage() {
		log.Fatal("worker needs postgres; with STORAGE_DRIVER=memory the api runs the sweeper itself")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	st := repositories.NewPGStore(pool)

	var gateway payments.Gateway = payments.NewSandbox()
	if cfg.PaymentGatewayURL != "" {
		gateway = payments.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey, log)
	}

	requestService := services.NewRequestService(st, cfg, log)
	escrowService := services.NewEscrowService(st, gateway, cfg, log)
	sweeper := services.NewSweeper(st, requestService, escrowService, cfg, log)
	relay := events.NewRelay(st, events.NewRedisPublisher(rdb, log), cfg.OutboxBatchSize, log)

	// Metrics endpoint
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	log.Info("worker started",
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Duration("outbox_poll_interval", cfg.OutboxPollInterval))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Run(gctx, cfg.SweepInterval)
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx, cfg.OutboxPollInterval)
	})
	g.Go(func() error {
		metrics.StartPoolStatsCollector(gctx, pool, 15*time.Second)
		return nil
	})
	g.Go(func() error {
		addr := fmt.Sprintf(":%s", cfg.WorkerPort)
		if err := app.Listen(addr); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error("worker stopped", zap.Error(err))
		return
	}
	log.Info("worker stopped")
}
