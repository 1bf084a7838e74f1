package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "usd", cfg.Currency)
	assert.False(t, cfg.AutoCapture)
	assert.Equal(t, ProviderMock, cfg.ProcessorConfig.Provider)
	assert.Equal(t, 10*time.Second, cfg.ProcessorConfig.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.RedisConfig.TTL)
	assert.Equal(t, "checkout", cfg.DBConfig.DBName)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaConfig.Brokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SERVICE_PORT", ":9090")
	t.Setenv("CURRENCY", "EUR")
	t.Setenv("AUTO_CAPTURE", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PROCESSOR_PROVIDER", "Stripe")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_1")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "eur", cfg.Currency)
	assert.True(t, cfg.AutoCapture)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, ProviderStripe, cfg.ProcessorConfig.Provider)
	assert.Equal(t, "production", cfg.AppEnv)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET"},
		{"stripe without key", map[string]string{"PROCESSOR_PROVIDER": "stripe", "STRIPE_WEBHOOK_SECRET": "whsec"}, "STRIPE_SECRET_KEY"},
		{"stripe without webhook secret", map[string]string{"PROCESSOR_PROVIDER": "stripe", "STRIPE_SECRET_KEY": "sk"}, "STRIPE_WEBHOOK_SECRET"},
		{"mock outside development", map[string]string{"APP_ENV": "production"}, "PROCESSOR_PROVIDER=mock"},
		{"unknown provider", map[string]string{"PROCESSOR_PROVIDER": "paypal"}, "PROCESSOR_PROVIDER"},
		{"bad currency", map[string]string{"CURRENCY": "dollars"}, "CURRENCY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
