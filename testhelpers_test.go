//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/storefront/service-checkout/internal/adapter"
	"github.com/storefront/service-checkout/internal/application"
	"github.com/storefront/service-checkout/internal/contracts"
	"github.com/storefront/service-checkout/internal/domain/catalog"
	"github.com/storefront/service-checkout/internal/domain/discount"
	checkoutEvents "github.com/storefront/service-checkout/internal/events"
	"github.com/storefront/service-checkout/internal/metrics"
	"github.com/storefront/service-checkout/internal/repository"
	"github.com/storefront/service-checkout/migrations"
	"github.com/storefront/service-checkout/pkg/database"
	"github.com/storefront/service-checkout/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	Redis        *redis.Client
	KafkaBrokers []string
	Cleanup      func()
}

// checkoutStack holds wired-up checkout service components.
type checkoutStack struct {
	Checkout        *application.CheckoutService
	Promotions      *application.PromotionService
	Ledger          *application.CommissionLedger
	Processor       *adapter.MockProcessor
	Consumer        *checkoutEvents.ProcessorEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL, Redis and Kafka testcontainers, applies
// the embedded migrations and returns connected clients.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_checkout",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pgConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_checkout",
		SSLMode:  "disable",
	}

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(pgConfig, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(pgConfig.DatabaseURL(), migrations.FS, ".", logger))

	// Start Redis container.
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")

	redisEndpoint, err := redisContainer.Endpoint(ctx, "")
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: redisEndpoint})
	require.NoError(t, rdb.Ping(ctx).Err())

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, contracts.TopicPaymentProcessorEvents, contracts.TopicCheckoutEvents)

	cleanup := func() {
		_ = rdb.Close()
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		Redis:        rdb,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupCheckoutStack wires up the full checkout service stack against real
// infrastructure and the mock processor.
func setupCheckoutStack(t *testing.T, infra *testInfra) *checkoutStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	m := metrics.NewNop()

	producer := kafka.NewProducer(infra.KafkaBrokers, logger)
	mockProcessor := adapter.NewMockProcessor(logger)
	processor := adapter.NewResilientProcessor(mockProcessor, 5*time.Second, logger).
		WithRetryInterval(10 * time.Millisecond).
		WithObserver(m.ObserveProcessorCall)

	serviceRepo := repository.NewGormServiceRepository(infra.DB)
	couponRepo := repository.NewCachedCouponRepository(repository.NewGormCouponRepository(infra.DB), infra.Redis, time.Minute, logger)
	referralRepo := repository.NewGormReferralRepository(infra.DB)
	orderRepo := repository.NewOrderRepository(infra.DB)
	commissionRepo := repository.NewGormCommissionRepository(infra.DB)

	ledger := application.NewCommissionLedger(commissionRepo, referralRepo, producer, m, logger)
	lifecycle := application.NewLifecycleManager(orderRepo, couponRepo, ledger, producer, m, logger)
	gateway := application.NewPaymentGateway(orderRepo, lifecycle, processor, logger)
	checkout := application.NewCheckoutService(
		serviceRepo,
		discount.NewResolver(couponRepo, referralRepo),
		orderRepo,
		lifecycle,
		gateway,
		application.CheckoutOptions{Currency: "usd"},
		logger,
	)

	groupID := fmt.Sprintf("test-checkout-%s", uuid.New().String()[:8])
	consumer := checkoutEvents.NewProcessorEventConsumer(infra.KafkaBrokers, groupID, gateway, logger)

	return &checkoutStack{
		Checkout:        checkout,
		Promotions:      application.NewPromotionService(serviceRepo, couponRepo, referralRepo, logger),
		Ledger:          ledger,
		Processor:       mockProcessor,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedService inserts an active catalog entry.
func seedService(t *testing.T, db *gorm.DB, priceMinorUnits int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	repo := repository.NewGormServiceRepository(db)
	require.NoError(t, repo.Upsert(context.Background(), catalog.Service{
		ID:                  id,
		Name:                "Consultation " + id.String()[:8],
		UnitPriceMinorUnits: priceMinorUnits,
		Active:              true,
	}))
	return id
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForOrderState polls the orders table until state matches.
func waitForOrderState(t *testing.T, db *gorm.DB, orderID uuid.UUID, expectedState string, timeout time.Duration) repository.OrderModel {
	t.Helper()
	var result repository.OrderModel
	require.Eventually(t, func() bool {
		var model repository.OrderModel
		err := db.Where("id = ?", orderID).First(&model).Error
		if err != nil {
			return false
		}
		if model.State == expectedState {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "order did not transition to %s", expectedState)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the
// expected type about subject.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType, subject string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType && ce.Subject == subject {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
