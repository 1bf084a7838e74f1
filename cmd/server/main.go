package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/adapter"
	"github.com/storefront/service-checkout/internal/application"
	"github.com/storefront/service-checkout/internal/config"
	"github.com/storefront/service-checkout/internal/domain/discount"
	checkoutEvents "github.com/storefront/service-checkout/internal/events"
	"github.com/storefront/service-checkout/internal/handler"
	"github.com/storefront/service-checkout/internal/metrics"
	"github.com/storefront/service-checkout/internal/repository"
	"github.com/storefront/service-checkout/migrations"
	"github.com/storefront/service-checkout/pkg/auth"
	"github.com/storefront/service-checkout/pkg/database"
	"github.com/storefront/service-checkout/pkg/health"
	"github.com/storefront/service-checkout/pkg/kafka"
	"github.com/storefront/service-checkout/pkg/logger"
	"github.com/storefront/service-checkout/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, "service-checkout")
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting service-checkout",
		zap.String("port", cfg.Port),
		zap.String("processor", cfg.ProcessorConfig.Provider),
		zap.Bool("auto_capture", cfg.AutoCapture),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	db, err := database.Connect(dbConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.ServiceModel{},
			&repository.CouponModel{},
			&repository.CouponReservationModel{},
			&repository.ReferralCodeModel{},
			&repository.OrderModel{},
			&repository.CommissionModel{},
		); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, ".", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("redis unavailable, coupon cache will fall through to the database", zap.Error(err))
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWTConfig.Secret, cfg.JWTConfig.Issuer, 15*time.Minute)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()

	// Initialize payment processor
	var (
		processor adapter.PaymentProcessor
		verifier  adapter.WebhookVerifier
	)
	switch cfg.ProcessorConfig.Provider {
	case config.ProviderStripe:
		processor = adapter.NewStripeProcessor(cfg.ProcessorConfig.SecretKey, zapLogger)
		verifier = adapter.NewStripeWebhookVerifier(cfg.ProcessorConfig.WebhookSecret)
	default:
		processor = adapter.NewMockProcessor(zapLogger)
		verifier = adapter.MockWebhookVerifier{}
	}
	processor = adapter.NewResilientProcessor(processor, cfg.ProcessorConfig.Timeout, zapLogger).
		WithObserver(appMetrics.ObserveProcessorCall)

	// Initialize repositories
	serviceRepo := repository.NewGormServiceRepository(db)
	couponRepo := repository.NewCachedCouponRepository(
		repository.NewGormCouponRepository(db),
		redisClient,
		cfg.RedisConfig.TTL,
		zapLogger,
	)
	referralRepo := repository.NewGormReferralRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	commissionRepo := repository.NewGormCommissionRepository(db)

	// Initialize application services
	ledger := application.NewCommissionLedger(commissionRepo, referralRepo, kafkaProducer, appMetrics, zapLogger)
	lifecycle := application.NewLifecycleManager(orderRepo, couponRepo, ledger, kafkaProducer, appMetrics, zapLogger)
	gateway := application.NewPaymentGateway(orderRepo, lifecycle, processor, zapLogger)
	checkoutService := application.NewCheckoutService(
		serviceRepo,
		discount.NewResolver(couponRepo, referralRepo),
		orderRepo,
		lifecycle,
		gateway,
		application.CheckoutOptions{Currency: cfg.Currency, AutoCapture: cfg.AutoCapture},
		zapLogger,
	)
	promotionService := application.NewPromotionService(serviceRepo, couponRepo, referralRepo, zapLogger)

	// Initialize Kafka consumer for processor callbacks
	consumerGroupID := cfg.KafkaConfig.GroupPrefix + "checkout-service"
	processorConsumer := checkoutEvents.NewProcessorEventConsumer(
		cfg.KafkaConfig.Brokers,
		consumerGroupID,
		gateway,
		zapLogger,
	)
	defer processorConsumer.Close()

	// Start Kafka consumer in a goroutine
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	go func() {
		zapLogger.Info("starting processor event consumer")
		if err := processorConsumer.Start(consumerCtx); err != nil {
			if consumerCtx.Err() == nil {
				zapLogger.Error("processor event consumer failed", zap.Error(err))
			}
		}
	}()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.MetricsMiddleware(appMetrics.HTTPDuration))

	// Register health check and metrics routes
	healthHandler := health.NewHandler(db, "service-checkout", health.Checker{
		Name:  "redis",
		Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Register API routes
	apiV1 := router.Group("/api/v1")
	handler.NewOrderHandler(checkoutService).RegisterRoutes(apiV1, jwtManager)
	handler.NewPromotionHandler(promotionService).RegisterRoutes(apiV1)
	handler.NewWebhookHandler(verifier, gateway, zapLogger).RegisterRoutes(apiV1)
	handler.NewAdminHandler(checkoutService, promotionService, ledger).RegisterRoutes(apiV1, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down service-checkout...")

	// Cancel Kafka consumer
	consumerCancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("service-checkout stopped")
}
