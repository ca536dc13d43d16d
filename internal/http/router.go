package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/http/handlers"
	"github.com/pet-rehoming/backend/internal/metrics"
	"github.com/pet-rehoming/backend/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SetupRouter mounts every route. rdb may be nil, which disables rate limiting.
func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	petHandler *handlers.PetHandler,
	requestHandler *handlers.RequestHandler,
	transactionHandler *handlers.TransactionHandler,
	internalHandler *handlers.InternalHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(metrics.Middleware())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api/v1")

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler(cfg)
	api.Get("/meta/species", metaHandler.GetSpecies)
	api.Get("/meta/adoption-types", metaHandler.GetAdoptionTypes)
	api.Get("/meta/fees", metaHandler.GetFees)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))
	protected.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	// Pets
	protected.Post("/pets", petHandler.CreatePet)
	protected.Get("/pets", petHandler.ListPets)
	protected.Get("/pets/my", petHandler.MyPets)
	protected.Get("/pets/:id", petHandler.GetPet)
	protected.Put("/pets/:id", petHandler.UpdatePet)
	protected.Delete("/pets/:id", petHandler.DeletePet)
	protected.Get("/pets/:id/events", petHandler.GetPetEvents)

	// Adoption requests
	protected.Post("/pets/:id/adoption-requests", requestHandler.CreateRequest)
	protected.Get("/pets/:id/adoption-requests", requestHandler.ListForPet)
	protected.Get("/adoption-requests", requestHandler.ListMine)
	protected.Get("/adoption-requests/:id", requestHandler.GetRequest)
	protected.Post("/adoption-requests/:id/respond", requestHandler.Respond)
	protected.Post("/adoption-requests/:id/withdraw", requestHandler.Withdraw)
	protected.Post("/adoption-requests/:id/complete", requestHandler.Complete)
	protected.Post("/adoption-requests/:id/payments", requestHandler.InitiatePayment)

	// Transactions
	protected.Get("/transactions", transactionHandler.ListMine)
	protected.Get("/transactions/:id", transactionHandler.GetTransaction)
	protected.Get("/transactions/:id/events", transactionHandler.GetEvents)
	protected.Post("/transactions/:id/confirm-transfer", transactionHandler.ConfirmTransfer)
	protected.Get("/transactions/:id/confirmations", transactionHandler.GetConfirmations)
	protected.Post("/transactions/:id/disputes", transactionHandler.OpenDispute)
	protected.Get("/transactions/:id/dispute", transactionHandler.GetDispute)

	// Internal: arbitration callbacks, moderation, operators
	internal := app.Group("/internal", middleware.InternalMiddleware(cfg, log))
	internal.Post("/transactions/:id/release", internalHandler.Release)
	internal.Post("/transactions/:id/refund", internalHandler.Refund)
	internal.Post("/transactions/:id/dispute/resolve", internalHandler.ResolveDispute)
	internal.Post("/pets/:id/verify", internalHandler.VerifyPet)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
