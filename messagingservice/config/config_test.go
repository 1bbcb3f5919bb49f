// --- File: messagingservice/config/config_test.go ---
package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-messaging/internal/message"
	"github.com/tinywideclouds/go-fcm-messaging/messagingservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// clearEnv blanks every key the loader reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PROJECT_ID", "FIREBASE_PROJECT_ID", "FIREBASE_CREDENTIALS", "APP_URL", "PORT",
		"TOKEN_BACKEND", "FCM_TOKENS_TABLE", "DATABASE_URL",
		"SUBSCRIPTION_ID", "SUBSCRIPTION_DLQ_TOPIC_ID", "TOPIC_ID", "NUM_PIPELINE_WORKERS",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_ENABLED",
		"FCM_ANDROID_TTL", "FCM_ANDROID_PRIORITY", "FCM_ANDROID_COLOR", "FCM_ANDROID_SOUND",
		"FCM_APNS_PRIORITY", "FCM_APNS_BADGE", "FCM_APNS_SOUND",
		"CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:          "base-project",
			ListenAddr:         ":8080",
			NumPipelineWorkers: 2,
			Tokens: config.TokenStoreConfig{
				Backend:     config.BackendPostgres,
				DatabaseURL: "postgres://base",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		clearEnv(t)
		cfg := baseConfig()

		t.Setenv("FIREBASE_PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("APP_URL", "https://app.example.com")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("TOKEN_BACKEND", "firestore")
		t.Setenv("FCM_TOKENS_TABLE", "device_tokens")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("FCM_ANDROID_PRIORITY", "high")
		t.Setenv("FCM_APNS_BADGE", "0")
		t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.com, http://b.com,")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "https://app.example.com", finalCfg.AppURL)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.True(t, finalCfg.PipelineEnabled())
		require.NotNil(t, finalCfg.PubsubConsumerConfig)
		assert.Equal(t, config.BackendFirestore, finalCfg.Tokens.Backend)
		assert.Equal(t, "device_tokens", finalCfg.Tokens.Table)
		assert.True(t, finalCfg.Redis.Enabled)
		assert.Equal(t, "high", finalCfg.Defaults.Android.Priority)
		require.NotNil(t, finalCfg.Defaults.APNS.Badge)
		assert.Equal(t, 0, *finalCfg.Defaults.APNS.Badge)
		assert.Equal(t, []string{"http://a.com", "http://b.com"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Success - Defaults filled", func(t *testing.T) {
		clearEnv(t)
		cfg := &config.Config{
			ProjectID: "p",
			Tokens:    config.TokenStoreConfig{DatabaseURL: "postgres://x"},
		}

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, ":8080", finalCfg.ListenAddr)
		assert.Equal(t, "https://localhost", finalCfg.AppURL)
		assert.Equal(t, "fcm_tokens", finalCfg.Tokens.Table)
		assert.Equal(t, config.BackendPostgres, finalCfg.Tokens.Backend)
		assert.Equal(t, 1, finalCfg.NumPipelineWorkers)
		assert.Equal(t, 24*time.Hour, finalCfg.Redis.TTL)
		assert.False(t, finalCfg.PipelineEnabled())
		assert.Nil(t, finalCfg.PubsubConsumerConfig)
	})

	t.Run("Validation Failure - Missing ProjectID", func(t *testing.T) {
		clearEnv(t)
		cfg := &config.Config{Tokens: config.TokenStoreConfig{DatabaseURL: "postgres://x"}}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Postgres without a DSN", func(t *testing.T) {
		clearEnv(t)
		cfg := &config.Config{ProjectID: "p"}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database_url")
	})

	t.Run("Validation Failure - Unknown backend", func(t *testing.T) {
		clearEnv(t)
		cfg := &config.Config{ProjectID: "p", Tokens: config.TokenStoreConfig{Backend: "mysql"}}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Plain http app url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_URL", "http://localhost")
		cfg := &config.Config{ProjectID: "p", Tokens: config.TokenStoreConfig{Backend: config.BackendFirestore}}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app_url")
	})

	t.Run("Validation Failure - Bad platform defaults", func(t *testing.T) {
		clearEnv(t)
		cfg := &config.Config{
			ProjectID: "p",
			Tokens:    config.TokenStoreConfig{Backend: config.BackendFirestore},
			Defaults:  message.Defaults{Android: message.AndroidDefaults{Priority: "urgent"}},
		}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid platform defaults")
	})

	t.Run("Validation Failure - Non-numeric badge", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("FCM_APNS_BADGE", "many")
		_, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		assert.Error(t, err)
	})
}
