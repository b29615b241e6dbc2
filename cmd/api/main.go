package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/stays-ledger/internal/config"
	"github.com/fairyhunter13/stays-ledger/internal/handler"
	"github.com/fairyhunter13/stays-ledger/internal/middleware"
	"github.com/fairyhunter13/stays-ledger/internal/notify"
	"github.com/fairyhunter13/stays-ledger/internal/payment"
	"github.com/fairyhunter13/stays-ledger/internal/repository"
	"github.com/fairyhunter13/stays-ledger/internal/service"
	"github.com/fairyhunter13/stays-ledger/internal/validator"
	"github.com/fairyhunter13/stays-ledger/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if cfg.DB.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
		log.Info().Msg("schema applied")
	}

	stores := service.Stores{
		Listings: repository.NewListingRepository(),
		Bookings: repository.NewBookingRepository(),
		Coupons:  repository.NewCouponRepository(),
		Accounts: repository.NewAccountRepository(),
		Ledger:   repository.NewLedgerRepository(),
		Points:   repository.NewPointsRepository(),
		Platform: repository.NewPlatformLedgerRepository(),
		Outbox:   repository.NewOutboxRepository(pool),
	}

	ledgerService := service.NewLedgerService(pool, stores)
	pointsService := service.NewPointsService(pool, stores)
	availabilityService := service.NewAvailabilityService(pool, stores)
	discountService := service.NewDiscountService(pool, stores)
	bookingService := service.NewBookingService(pool, stores)
	checkoutService := service.NewCheckoutService(pool, stores, payment.NewClient(cfg.Payment), cfg.Payment.Currency)

	checks := map[string]handler.Pinger{"database": pool}

	// Notifications go to Redis when configured, otherwise to the log.
	var publisher notify.Publisher = notify.LogPublisher{}
	if cfg.Redis.Addr != "" {
		rdb := notify.NewRedisClient(cfg.Redis)
		defer rdb.Close()
		publisher = notify.NewRedisPublisher(rdb, cfg.Redis.ChannelPrefix)
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	dispatched := make(chan struct{})
	dispatcher := notify.NewDispatcher(repository.NewOutboxRepository(pool), publisher, cfg.Outbox)
	go func() {
		defer close(dispatched)
		dispatcher.Run(dispatchCtx)
	}()

	app := fiber.New(fiber.Config{
		AppName:      "Stays Ledger",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())

	validate := validator.New()

	healthHandler := handler.NewHealthHandler(checks)
	listingHandler := handler.NewListingHandler(availabilityService, discountService, validate)
	bookingHandler := handler.NewBookingHandler(bookingService, checkoutService, validate)
	accountHandler := handler.NewAccountHandler(ledgerService, pointsService, validate)

	app.Get("/health", healthHandler.Check)

	api := app.Group("/api", middleware.Auth(cfg.Auth.JWTSecret, cfg.Auth.Issuer))

	api.Get("/listings/:id/availability", listingHandler.Availability)
	api.Get("/listings/:id/calendar", listingHandler.Calendar)
	api.Post("/listings/:id/discount", listingHandler.Discount)

	api.Post("/bookings", bookingHandler.Create)
	api.Get("/bookings", bookingHandler.List)
	api.Get("/bookings/:id", bookingHandler.Get)
	api.Post("/bookings/:id/accept", bookingHandler.Accept)
	api.Post("/bookings/:id/reject", bookingHandler.Reject)
	api.Post("/bookings/:id/cancel", bookingHandler.Cancel)

	api.Get("/wallet", accountHandler.Wallet)
	api.Get("/points", accountHandler.Points)
	api.Post("/points/claim", accountHandler.ClaimReward)
	api.Post("/points/reviews", accountHandler.AwardReview)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	log.Info().Msg("waiting for in-flight requests to complete...")
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// The dispatcher still uses the pool, so stop it first.
	stopDispatch()
	select {
	case <-dispatched:
	case <-shutdownCtx.Done():
		log.Warn().Msg("outbox dispatcher did not stop before timeout")
	}

	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("database connections closed")
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
