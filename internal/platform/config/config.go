package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL  string
	Port         string
	IsProduction bool
	JWTSecret    string

	// Extraction engine
	EngineURL          string
	ExtractTimeout     time.Duration
	ExtractionCacheTTL time.Duration

	// Worker pool and retry policy
	Workers     int
	QueueSize   int
	MaxAttempts int
	BackoffBase time.Duration

	// Review routing
	ReviewThreshold float64

	// Synchronous submit
	SyncWaitTimeout time.Duration

	// Broadcasting
	HeartbeatInterval time.Duration
	SubscriberBuffer  int
	JobRetention      time.Duration

	// Document storage
	BlobDir string

	// Rate limiting on the submit endpoints
	SubmitRateLimit string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("ENGINE_URL", "http://localhost:5000")
	viper.SetDefault("EXTRACT_TIMEOUT", "90s")
	viper.SetDefault("EXTRACTION_CACHE_TTL", "1h")
	viper.SetDefault("WORKERS", 4)
	viper.SetDefault("QUEUE_SIZE", 64)
	viper.SetDefault("MAX_ATTEMPTS", 3)
	viper.SetDefault("BACKOFF_BASE", "1s")
	viper.SetDefault("REVIEW_THRESHOLD", 0.6)
	viper.SetDefault("SYNC_WAIT_TIMEOUT", "2m")
	viper.SetDefault("HEARTBEAT_INTERVAL", "30s")
	viper.SetDefault("SUBSCRIBER_BUFFER", 32)
	viper.SetDefault("JOB_RETENTION", "24h")
	viper.SetDefault("BLOB_DIR", "./data/blobs")
	viper.SetDefault("SUBMIT_RATE_LIMIT", "60-M")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	cfg.EngineURL = viper.GetString("ENGINE_URL")
	cfg.ExtractTimeout = durationOrDefault("EXTRACT_TIMEOUT", 90*time.Second)
	cfg.ExtractionCacheTTL = durationOrDefault("EXTRACTION_CACHE_TTL", time.Hour)

	cfg.Workers = viper.GetInt("WORKERS")
	cfg.QueueSize = viper.GetInt("QUEUE_SIZE")
	cfg.MaxAttempts = viper.GetInt("MAX_ATTEMPTS")
	cfg.BackoffBase = durationOrDefault("BACKOFF_BASE", time.Second)

	cfg.ReviewThreshold = viper.GetFloat64("REVIEW_THRESHOLD")

	cfg.SyncWaitTimeout = durationOrDefault("SYNC_WAIT_TIMEOUT", 2*time.Minute)
	cfg.HeartbeatInterval = durationOrDefault("HEARTBEAT_INTERVAL", 30*time.Second)
	cfg.SubscriberBuffer = viper.GetInt("SUBSCRIBER_BUFFER")
	cfg.JobRetention = durationOrDefault("JOB_RETENTION", 24*time.Hour)

	cfg.BlobDir = viper.GetString("BLOB_DIR")
	cfg.SubmitRateLimit = viper.GetString("SUBMIT_RATE_LIMIT")

	return cfg, nil
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback)
		}
		return fallback
	}
	return d
}
