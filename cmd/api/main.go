package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pet-rehoming/backend/internal/arbitration"
	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/db"
	"github.com/pet-rehoming/backend/internal/events"
	apphttp "github.com/pet-rehoming/backend/internal/http"
	"github.com/pet-rehoming/backend/internal/http/handlers"
	"github.com/pet-rehoming/backend/internal/memstore"
	"github.com/pet-rehoming/backend/internal/metrics"
	"github.com/pet-rehoming/backend/internal/payments"
	"github.com/pet-rehoming/backend/internal/repositories"
	"github.com/pet-rehoming/backend/internal/services"
	"github.com/pet-rehoming/backend/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		st         store.Store
		pool       *pgxpool.Pool
		rdb        *redis.Client
		publisher  events.Publisher
		subscriber events.Subscriber
	)

	if cfg.UseMemoryStorage() {
		// Single process: the outbox relay and sweeper run here, events stay in memory.
		log.Warn("STORAGE_DRIVER=memory, state is lost on restart")
		st = memstore.New()
		bus := events.NewMemoryBus(log)
		publisher, subscriber = bus, bus
	} else {
		var err error
		pool, err = db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}

		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()

		st = repositories.NewPGStore(pool)
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
	}

	// Collaborators
	var gateway payments.Gateway = payments.NewSandbox()
	if cfg.PaymentGatewayURL != "" {
		gateway = payments.NewHTTPGateway(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey, log)
	}
	var arb arbitration.Service = arbitration.NewManualDesk(log)
	if cfg.ArbitrationURL != "" {
		arb = arbitration.NewHTTPClient(cfg.ArbitrationURL, cfg.ArbitrationToken, log)
	}

	// Services
	listingService := services.NewListingService(st, log)
	requestService := services.NewRequestService(st, cfg, log)
	escrowService := services.NewEscrowService(st, gateway, cfg, log)
	transferService := services.NewTransferService(st, escrowService, log)
	disputeService := services.NewDisputeService(st, escrowService, arb, log)

	// Handlers
	petHandler := handlers.NewPetHandler(listingService, log)
	requestHandler := handlers.NewRequestHandler(requestService, escrowService, log)
	transactionHandler := handlers.NewTransactionHandler(escrowService, transferService, disputeService, log)
	internalHandler := handlers.NewInternalHandler(listingService, escrowService, disputeService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	if cfg.UseMemoryStorage() {
		relay := events.NewRelay(st, publisher, cfg.OutboxBatchSize, log)
		go func() {
			if err := relay.Run(ctx, cfg.OutboxPollInterval); err != nil && ctx.Err() == nil {
				log.Error("outbox relay stopped", zap.Error(err))
			}
		}()
		sweeper := services.NewSweeper(st, requestService, escrowService, cfg, log)
		go sweeper.Run(ctx, cfg.SweepInterval)
	}

	go metrics.StartPoolStatsCollector(ctx, pool, 15*time.Second)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(log),
	})

	apphttp.SetupRouter(app, cfg, log, rdb, petHandler, requestHandler, transactionHandler, internalHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.String("storage", cfg.StorageDriver))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
