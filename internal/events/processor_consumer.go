package events

import (
	"context"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/storefront/service-checkout/internal/adapter"
	"github.com/storefront/service-checkout/internal/contracts"
	"github.com/storefront/service-checkout/pkg/kafka"
)

// ProcessorEventHandler is implemented by application.PaymentGateway.
type ProcessorEventHandler interface {
	HandleProcessorEvent(ctx context.Context, ev adapter.ProcessorEvent) error
}

// ProcessorEventConsumer listens to payment processor callbacks relayed over Kafka.
type ProcessorEventConsumer struct {
	consumer *kafka.Consumer
	handler  ProcessorEventHandler
	logger   *zap.Logger
}

// NewProcessorEventConsumer creates a new consumer for processor callbacks.
func NewProcessorEventConsumer(
	brokers []string,
	groupID string,
	handler ProcessorEventHandler,
	logger *zap.Logger,
) *ProcessorEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, contracts.TopicPaymentProcessorEvents, logger)
	return &ProcessorEventConsumer{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
	}
}

// Start begins consuming processor events. It blocks until the context is cancelled.
func (c *ProcessorEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage decodes one message. Malformed messages are dropped since a
// retry cannot fix them.
func (c *ProcessorEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from processor topic",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
		return nil
	}

	if !strings.EqualFold(cloudEvent.Type, contracts.ProcessorCallback) {
		c.logger.Debug("ignoring unhandled processor event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}

	var ev adapter.ProcessorEvent
	if err := cloudEvent.ParseData(&ev); err != nil {
		c.logger.Error("failed to parse processor event data", zap.Error(err))
		return nil
	}
	if err := ev.Validate(); err != nil {
		c.logger.Warn("dropping invalid processor event", zap.Error(err))
		return nil
	}
	if ev.ID == "" {
		ev.ID = cloudEvent.ID
	}

	c.logger.Info("received processor event",
		zap.String("type", string(ev.Type)),
		zap.String("id", ev.ID),
		zap.String("authorization_id", ev.AuthorizationID),
	)
	return c.handler.HandleProcessorEvent(ctx, ev)
}

// Close closes the underlying Kafka consumer.
func (c *ProcessorEventConsumer) Close() error {
	return c.consumer.Close()
}
