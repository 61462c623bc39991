package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// JWT (operator identity only; tokens are issued elsewhere)
	JWTSecret string

	// Background Workers
	WorkerCount  int
	BatchWorkers int

	// CORS
	AllowedOrigins []string

	// Sentry
	SentryDSN string

	// Redis (distributed locks). Empty address means in-process locking.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Storage
	Storage StorageConfig

	// Reconciliation engine
	Matcher                    MatcherConfig
	ConsistencyTolerance       decimal.Decimal
	ReconcileTolerance         decimal.Decimal
	AutoReconcileThreshold     float64
	SyncIntervalMinutes        int
	ConsistencyIntervalMinutes int
}

// StorageConfig selects and configures the document store
type StorageConfig struct {
	Driver      string // local, s3
	Path        string
	PublicURL   string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
	S3Region    string
}

// MatcherConfig holds the bank matching weights and window
type MatcherConfig struct {
	WindowDays           int
	WeightExact          float64
	WeightNear           float64
	WeightDate           float64
	WeightDescription    float64
	NearTolerancePercent float64
	MaxSuggestions       int
}

// DefaultMatcherConfig returns the default matching parameters
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		WindowDays:           15,
		WeightExact:          50,
		WeightNear:           25,
		WeightDate:           30,
		WeightDescription:    20,
		NearTolerancePercent: 0.05,
		MaxSuggestions:       10,
	}
}

// Validate rejects weight assignments that would break score monotonicity
func (m MatcherConfig) Validate() error {
	if m.WindowDays <= 0 {
		return fmt.Errorf("MATCH_WINDOW_DAYS must be positive")
	}
	if m.WeightExact < 0 || m.WeightNear < 0 || m.WeightDate < 0 || m.WeightDescription < 0 {
		return fmt.Errorf("match weights must not be negative")
	}
	if m.WeightNear > m.WeightExact {
		return fmt.Errorf("MATCH_WEIGHT_NEAR must not exceed MATCH_WEIGHT_EXACT")
	}
	if m.NearTolerancePercent < 0 || m.NearTolerancePercent >= 1 {
		return fmt.Errorf("MATCH_NEAR_TOLERANCE_PERCENT must be in [0, 1)")
	}
	if m.MaxSuggestions <= 0 {
		return fmt.Errorf("MATCH_MAX_SUGGESTIONS must be positive")
	}
	return nil
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	defaults := DefaultMatcherConfig()
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 5),
		BatchWorkers:   getEnvAsInt("BATCH_WORKERS", 4),
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		SentryDSN:      getEnv("SENTRY_DSN", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		Storage: StorageConfig{
			Driver:      getEnv("STORAGE_DRIVER", "local"),
			Path:        getEnv("STORAGE_PATH", "./storage"),
			PublicURL:   getEnv("STORAGE_PUBLIC_URL", "/files"),
			S3Endpoint:  getEnv("S3_ENDPOINT", ""),
			S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey: getEnv("S3_SECRET_KEY", ""),
			S3Bucket:    getEnv("S3_BUCKET", "documentos"),
			S3UseSSL:    getEnvAsBool("S3_USE_SSL", true),
			S3Region:    getEnv("S3_REGION", "us-east-1"),
		},
		Matcher: MatcherConfig{
			WindowDays:           getEnvAsInt("MATCH_WINDOW_DAYS", defaults.WindowDays),
			WeightExact:          getEnvAsFloat("MATCH_WEIGHT_EXACT", defaults.WeightExact),
			WeightNear:           getEnvAsFloat("MATCH_WEIGHT_NEAR", defaults.WeightNear),
			WeightDate:           getEnvAsFloat("MATCH_WEIGHT_DATE", defaults.WeightDate),
			WeightDescription:    getEnvAsFloat("MATCH_WEIGHT_DESCRIPTION", defaults.WeightDescription),
			NearTolerancePercent: getEnvAsFloat("MATCH_NEAR_TOLERANCE_PERCENT", defaults.NearTolerancePercent),
			MaxSuggestions:       getEnvAsInt("MATCH_MAX_SUGGESTIONS", defaults.MaxSuggestions),
		},
		ConsistencyTolerance:       getEnvAsDecimal("CONSISTENCY_TOLERANCE", decimal.Zero),
		ReconcileTolerance:         getEnvAsDecimal("RECONCILE_TOLERANCE", decimal.Zero),
		AutoReconcileThreshold:     getEnvAsFloat("AUTO_RECONCILE_THRESHOLD", 95),
		SyncIntervalMinutes:        getEnvAsInt("SYNC_INTERVAL_MINUTES", 60),
		ConsistencyIntervalMinutes: getEnvAsInt("CONSISTENCY_INTERVAL_MINUTES", 360),
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	if err := cfg.Matcher.Validate(); err != nil {
		return nil, err
	}

	if cfg.ConsistencyTolerance.IsNegative() || cfg.ReconcileTolerance.IsNegative() {
		return nil, fmt.Errorf("tolerances must not be negative")
	}

	if cfg.Storage.Driver != "local" && cfg.Storage.Driver != "s3" {
		return nil, fmt.Errorf("STORAGE_DRIVER must be local or s3")
	}

	if cfg.BatchWorkers < 1 {
		cfg.BatchWorkers = 1
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDecimal reads a currency amount, e.g. CONSISTENCY_TOLERANCE=0.01
func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
