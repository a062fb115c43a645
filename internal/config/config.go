package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds the whole application configuration, populated from
// environment variables (optionally loaded from .env by godotenv).
type Config struct {
	App     AppConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Storage StorageConfig
	MinIO   MinIOConfig
	Queue   QueueConfig
	Jobs    JobConfig
}

type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Port        string
	Version     string
	// PublicBaseURL prefixes image URLs, e.g. http://localhost:4000.
	// Empty means "derive from the incoming request".
	PublicBaseURL string
	AutoMigrate   bool
	CORSOrigins   []string
}

type RedisConfig struct {
	Host     string
	Password string
	DB       int
	Enabled  bool
}

type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type StorageConfig struct {
	Driver         string // local | minio
	LocalDir       string
	MaxUploadBytes int64
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type QueueConfig struct {
	Enabled     bool
	Concurrency int
}

type JobConfig struct {
	OrphanSweepCron   string
	OrphanGracePeriod time.Duration
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:          getEnv("APP_NAME", "Grimoire API"),
			Environment:   getEnv("APP_ENV", "development"),
			Port:          getEnv("APP_PORT", "4000"),
			Version:       getEnv("APP_VERSION", "1.0.0"),
			PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
			AutoMigrate:   getEnvBool("DB_AUTO_MIGRATE", false),
			CORSOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", defaultJWTSecret),
			TokenTTL: time.Duration(getEnvInt("JWT_TTL_HOURS", 24)) * time.Hour,
		},
		Storage: StorageConfig{
			Driver:         getEnv("STORAGE_DRIVER", "local"),
			LocalDir:       getEnv("STORAGE_LOCAL_DIR", "images"),
			MaxUploadBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 5*1024*1024)),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "grimoire"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Queue: QueueConfig{
			Enabled:     getEnvBool("QUEUE_ENABLED", false),
			Concurrency: getEnvInt("QUEUE_CONCURRENCY", 5),
		},
		Jobs: JobConfig{
			OrphanSweepCron:   getEnv("JOB_ORPHAN_SWEEP_CRON", "@every 1h"),
			OrphanGracePeriod: getEnvDuration("JOB_ORPHAN_GRACE_PERIOD", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be local or minio, got %q", c.Storage.Driver)
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.JWT.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL_HOURS must be positive")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("QUEUE_ENABLED requires REDIS_ENABLED")
	}

	if c.App.Environment == "production" {
		if c.JWT.Secret == defaultJWTSecret || c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
	}

	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
