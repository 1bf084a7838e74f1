package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/storefront/service-checkout/pkg/config"
)

// Processor providers.
const (
	ProviderMock   = "mock"
	ProviderStripe = "stripe"
)

// ProcessorConfig selects and configures the payment processor.
type ProcessorConfig struct {
	Provider      string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// ServiceConfig holds all configuration for the checkout service.
type ServiceConfig struct {
	Port            string
	AppEnv          string
	Currency        string
	AutoCapture     bool
	DBConfig        config.DatabaseConfig
	JWTConfig       config.JWTConfig
	KafkaConfig     config.KafkaConfig
	RedisConfig     config.RedisConfig
	ProcessorConfig ProcessorConfig
}

// Load reads configuration from environment variables and returns a ServiceConfig.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("checkout")
	if err != nil {
		return nil, err
	}
	v.SetDefault("CURRENCY", "usd")
	v.SetDefault("AUTO_CAPTURE", false)
	v.SetDefault("COUPON_CACHE_TTL", "5m")
	v.SetDefault("PROCESSOR_PROVIDER", ProviderMock)
	v.SetDefault("PROCESSOR_TIMEOUT", "10s")

	cfg := &ServiceConfig{
		Port:            config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:          config.GetAppEnv(v),
		Currency:        strings.ToLower(v.GetString("CURRENCY")),
		AutoCapture:     v.GetBool("AUTO_CAPTURE"),
		DBConfig:        config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:       config.LoadJWTConfig(v),
		KafkaConfig:     config.LoadKafkaConfig(v),
		RedisConfig:     config.LoadRedisConfig(v, "COUPON_CACHE_TTL"),
		ProcessorConfig: loadProcessorConfig(v),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadProcessorConfig extracts payment processor configuration from Viper.
func loadProcessorConfig(v *viper.Viper) ProcessorConfig {
	return ProcessorConfig{
		Provider:      strings.ToLower(v.GetString("PROCESSOR_PROVIDER")),
		SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		Timeout:       v.GetDuration("PROCESSOR_TIMEOUT"),
	}
}

func (c *ServiceConfig) validate() error {
	if c.JWTConfig.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.ProcessorConfig.Provider {
	case ProviderMock:
		if c.AppEnv != "development" {
			return fmt.Errorf("PROCESSOR_PROVIDER=mock is only allowed when APP_ENV=development (got %q)", c.AppEnv)
		}
	case ProviderStripe:
		if c.ProcessorConfig.SecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when PROCESSOR_PROVIDER=stripe")
		}
		if c.ProcessorConfig.WebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when PROCESSOR_PROVIDER=stripe")
		}
	default:
		return fmt.Errorf("unknown PROCESSOR_PROVIDER %q", c.ProcessorConfig.Provider)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a three letter ISO code, got %q", c.Currency)
	}
	return nil
}
