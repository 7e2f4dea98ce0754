package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/maheshrc27/misepo-api/configs"
	"github.com/maheshrc27/misepo-api/internal/api/handlers"
	"github.com/maheshrc27/misepo-api/internal/api/middleware"
	"github.com/maheshrc27/misepo-api/internal/database"
	job "github.com/maheshrc27/misepo-api/internal/jobs"
	"github.com/maheshrc27/misepo-api/internal/queue"
	"github.com/maheshrc27/misepo-api/internal/repository"
	"github.com/maheshrc27/misepo-api/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}

	cfg := config.LoadConfig()
	setupLogging(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := database.Open(ctx, cfg.PostgresURI)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer closeDB(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // 1 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	entitlementRepo := repository.NewEntitlementRepository(db)
	redemptionRepo := repository.NewTrialRedemptionRepository(db)
	usageRepo := repository.NewUsageEventRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	billingService := service.NewBillingService(*cfg)
	planService := service.NewPlanService(*cfg, profileRepo, entitlementRepo, redemptionRepo, usageRepo, billingService)
	usageService := service.NewUsageService(*cfg, planService, usageRepo)
	authService := service.NewAuthService(*cfg, userRepo, profileRepo)
	userService := service.NewUserService(userRepo)

	//queue
	queueW := queue.NewQueue(client, planService)
	subscriptionService := service.NewSubscriptionService(*cfg, billingService, entitlementRepo, webhookEventRepo, planService, queueW)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)
	app.Post("/logout", auth.Logout)

	payment := handlers.NewPaymentHandler(subscriptionService)
	app.Post("/webhooks/stripe", payment.PaymentWebhook)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)

	plan := handlers.NewPlanHandler(*cfg, planService, usageService)
	api.Get("/me/plan", plan.GetPlan)
	api.Post("/generations", plan.CreateGeneration)

	// cron jobs
	billingSyncJob := job.NewBillingSyncJob(cfg.AppID, entitlementRepo, planService)

	c := cron.New()
	if err := c.AddFunc("@every "+cfg.BillingSyncInterval.String(), billingSyncJob.SyncEntitlements); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule billing sync")
	}
	c.Start()

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeReconcileEntitlement, queueW.HandleReconcileTask)

	log.Info().Msg("starting the asynq server")
	if err := server.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("could not start asynq server")
	}

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Str("addr", cfg.ListenAddr).Str("app_id", cfg.AppID).Msg("server is running")

	gracefulShutdown(app, server, c)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
		return
	}
	log.Info().Msg("database connection closed")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, c *cron.Cron) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Info().Msg("shutting down server")

	c.Stop()
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		log.Error().Err(err).Msg("failed to shut down http server")
	}
	server.Shutdown()

	log.Info().Msg("server shutdown complete")
}
