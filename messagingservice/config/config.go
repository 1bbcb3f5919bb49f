// --- File: messagingservice/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-fcm-messaging/internal/message"
	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

const (
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"

	DefaultTokensTable = "fcm_tokens"
	DefaultAppURL      = "https://localhost"
	DefaultListenAddr  = ":8080"
	DefaultCacheTTL    = 24 * time.Hour
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// TokenStoreConfig selects where device tokens live.
type TokenStoreConfig struct {
	Backend     string
	Table       string
	DatabaseURL string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID       string
	ListenAddr      string
	AppURL          string
	CredentialsFile string

	// The ingestion pipeline only runs when SubscriptionID is set.
	SubscriptionID         string
	SubscriptionDLQTopicID string
	TopicID                string
	NumPipelineWorkers     int

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Tokens     TokenStoreConfig
	Defaults   message.Defaults

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// PipelineEnabled reports whether a subscription is configured.
func (c *Config) PipelineEnabled() bool {
	return c.SubscriptionID != ""
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	override := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*dst = val
		}
	}

	override("PROJECT_ID", &cfg.ProjectID)
	override("FIREBASE_PROJECT_ID", &cfg.ProjectID)
	override("FIREBASE_CREDENTIALS", &cfg.CredentialsFile)
	override("APP_URL", &cfg.AppURL)
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}

	// Token storage
	override("TOKEN_BACKEND", &cfg.Tokens.Backend)
	override("FCM_TOKENS_TABLE", &cfg.Tokens.Table)
	override("DATABASE_URL", &cfg.Tokens.DatabaseURL)

	// Pub/Sub
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	override("SUBSCRIPTION_DLQ_TOPIC_ID", &cfg.SubscriptionDLQTopicID)
	override("TOPIC_ID", &cfg.TopicID)
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// Platform defaults
	override("FCM_ANDROID_TTL", &cfg.Defaults.Android.TTL)
	override("FCM_ANDROID_PRIORITY", &cfg.Defaults.Android.Priority)
	override("FCM_ANDROID_COLOR", &cfg.Defaults.Android.Color)
	override("FCM_ANDROID_SOUND", &cfg.Defaults.Android.Sound)
	override("FCM_APNS_PRIORITY", &cfg.Defaults.APNS.Priority)
	override("FCM_APNS_SOUND", &cfg.Defaults.APNS.Sound)
	if val := os.Getenv("FCM_APNS_BADGE"); val != "" {
		badge, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("FCM_APNS_BADGE must be an integer: %w", err)
		}
		logger.Debug("Overriding config value", "key", "FCM_APNS_BADGE", "source", "env")
		cfg.Defaults.APNS.Badge = &badge
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or FIREBASE_PROJECT_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.AppURL == "" {
		cfg.AppURL = DefaultAppURL
	}
	if err := dispatch.ValidateLink(cfg.AppURL); err != nil {
		return nil, fmt.Errorf("invalid app_url (set via YAML or APP_URL env var): %w", err)
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = DefaultCacheTTL
	}

	if cfg.Tokens.Table == "" {
		cfg.Tokens.Table = DefaultTokensTable
	}
	switch cfg.Tokens.Backend {
	case "":
		cfg.Tokens.Backend = BackendPostgres
		fallthrough
	case BackendPostgres:
		if cfg.Tokens.DatabaseURL == "" {
			return nil, fmt.Errorf("database_url is required for the postgres token backend (set via YAML or DATABASE_URL env var)")
		}
	case BackendFirestore:
	default:
		return nil, fmt.Errorf("unknown token backend %q (want %s or %s)", cfg.Tokens.Backend, BackendPostgres, BackendFirestore)
	}

	if err := cfg.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid platform defaults: %w", err)
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
