package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tripwise_backend/internal/config"
	"tripwise_backend/internal/handlers"
	"tripwise_backend/internal/llm"
	"tripwise_backend/internal/logger"
	"tripwise_backend/internal/middleware"
	"tripwise_backend/internal/models"
	"tripwise_backend/internal/notify"
	"tripwise_backend/internal/payment"
	"tripwise_backend/internal/ratelimit"
	"tripwise_backend/internal/repositories"
	"tripwise_backend/internal/routes"
	"tripwise_backend/internal/services"
	"tripwise_backend/internal/validator"
	"tripwise_backend/internal/workers"
	"tripwise_backend/pkg/redis"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	logger.Info("Connecting to database...")
	gormDB, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to GORM", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err := gormDB.AutoMigrate(
		&models.User{},
		&models.UserSubscription{},
		&models.PaymentTransaction{},
		&models.Conversation{},
		&models.Trip{},
	); err != nil {
		logger.Fatal("Migration failed", "error", err)
	}

	ginRouter, cleanup := SetupRouter(cfg, gormDB)
	defer cleanup()

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info(fmt.Sprintf("🚀 Server starting on %s", address))
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

// SetupRouter wires repositories, services and handlers onto a gin engine.
// The returned cleanup stops the background workers.
func SetupRouter(cfg *config.Config, gormDB *gorm.DB) (*gin.Engine, func()) {
	subscriptionRepo := repositories.NewSubscriptionRepository()
	conversationRepo := repositories.NewConversationRepository()
	tripRepo := repositories.NewTripRepository()

	burst := buildBurstPolicy(cfg)

	modelClient := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})

	dispatcher := notify.NewDispatcher(cfg.Notify.QueueSize, buildNotifiers(cfg)...)
	dispatcher.Start(cfg.Notify.Workers)

	gateway := payment.NewHTTPGateway(cfg.Payment.GatewayURL, cfg.Payment.Secret)

	admissionService := services.NewAdmissionService(subscriptionRepo, burst)
	flowService := services.NewFlowService(admissionService, modelClient, conversationRepo, tripRepo, dispatcher)
	paymentService := services.NewPaymentService(subscriptionRepo, gateway, admissionService)
	authService := services.NewAuthService(subscriptionRepo)

	customValidator := validator.New()
	baseHandler := handlers.NewBaseHandler(customValidator)

	appHandlers := &handlers.AppHandlers{
		AuthHandler:         handlers.NewAuthHandler(baseHandler, authService),
		ChatHandler:         handlers.NewChatHandler(baseHandler, flowService),
		SubscriptionHandler: handlers.NewSubscriptionHandler(baseHandler, admissionService, paymentService),
		TripHandler:         handlers.NewTripHandler(baseHandler, tripRepo),
	}

	ginRouter := initializeGinRouter(gormDB)
	routes.RegisterRoutes(ginRouter, appHandlers)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	subscriptionWorker := workers.NewSubscriptionWorker(gormDB, subscriptionRepo)
	subscriptionWorker.Start(workerCtx)

	cleanup := func() {
		cancelWorkers()
		dispatcher.Stop()
	}
	return ginRouter, cleanup
}

// buildBurstPolicy selects the limiter strategy from config: "redis" for
// multi-instance deployments, "bucket" in-memory for a single instance,
// "off" for local development.
func buildBurstPolicy(cfg *config.Config) ratelimit.Policy {
	refill := time.Duration(cfg.RateLimit.BurstRefillHours) * time.Hour

	switch cfg.RateLimit.Mode {
	case "off":
		logger.Warn("burst limiter disabled")
		return ratelimit.NewAlwaysAllow()
	case "redis":
		redisCfg := &redis.Config{
			URL:          cfg.Redis.URL,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			DialTimeout:  cfg.Redis.DialTimeout,
		}
		client, err := redisCfg.New()
		if err != nil {
			logger.Fatal("Failed to connect to Redis for burst limiting", "error", err)
		}
		logger.Info("Redis burst limiter initialized")
		return ratelimit.NewRedisBucket(client, cfg.RateLimit.BurstCapacity, refill)
	default:
		return ratelimit.NewTokenBucket(cfg.RateLimit.BurstCapacity, refill)
	}
}

func buildNotifiers(cfg *config.Config) []notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notify.WeatherURL != "" {
		notifiers = append(notifiers, notify.NewWeatherNotifier(cfg.Notify.WeatherURL))
	}
	if cfg.Notify.SafetyURL != "" {
		notifiers = append(notifiers, notify.NewSafetyNotifier(cfg.Notify.SafetyURL))
	}
	if cfg.Notify.RecommendationsURL != "" {
		notifiers = append(notifiers, notify.NewRecommendationsNotifier(cfg.Notify.RecommendationsURL))
	}
	return notifiers
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}
