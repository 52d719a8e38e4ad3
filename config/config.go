package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Registry backends accepted in REGISTRY_BACKEND.
const (
	RegistryMemory   = "memory"
	RegistryRedis    = "redis"
	RegistrySQLite   = "sqlite"
	RegistryPostgres = "postgres"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server      ServerConfig
	Stream      StreamConfig
	Registry    RegistryConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	SQLite      SQLiteConfig
	AWS         AWSConfig
	Schedule    ScheduleConfig
	LiveSession LiveSessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	PublicBaseURL      string // used to build share links, e.g. https://webinars.example.com
}

// StreamConfig holds the video provider credentials and token policy.
// APIKey and APISecret may be empty: every capability that needs them fails with a
// configuration error instead of the process refusing to start.
type StreamConfig struct {
	APIKey      string
	APISecret   string
	BaseURL     string // coordinator endpoint user connections join through
	APIBaseURL  string // server SDK endpoint; empty keeps the SDK default
	CallType    string
	TokenTTLSec int
	TimeoutSec  int
}

// RegistryConfig selects the webinar registry backend.
type RegistryConfig struct {
	Backend string // memory | redis | sqlite | postgres
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/webinar?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PoolSize       int // 0 keeps the go-redis default
	DialTimeoutSec int
}

// SQLiteConfig holds the embedded registry file location.
type SQLiteConfig struct {
	Path string
}

// AWSConfig holds AWS credentials and the thumbnail bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ThumbnailsBucket     string
	PresignExpireMinutes int
}

// ScheduleConfig controls how date/time/period are turned into an instant.
type ScheduleConfig struct {
	Timezone string // IANA name, or "Local"
}

// LiveSessionConfig holds live page polling and reaping settings.
type LiveSessionConfig struct {
	PollIntervalSec int
	IdleTimeoutSec  int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// TokenTTL returns the default token lifetime.
func (c StreamConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSec) * time.Second
}

// Timeout returns the per-request provider timeout (0 means transport default).
func (c StreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Location resolves the schedule timezone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// PollInterval returns how often connected sessions re-query the provider.
func (c LiveSessionConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// IdleTimeout returns how long a session may go without refresh before it is reaped.
func (c LiveSessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
			PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		Stream: StreamConfig{
			APIKey:      firstEnv("STREAM_API_KEY", "NEXT_PUBLIC_GETSTREAM_API_KEY", ""),
			APISecret:   firstEnv("STREAM_API_SECRET", "GETSTREAM_API_SECRET", ""),
			BaseURL:     strings.TrimRight(getEnv("STREAM_BASE_URL", "https://video.stream-io-api.com"), "/"),
			APIBaseURL:  strings.TrimRight(getEnv("STREAM_API_BASE_URL", ""), "/"),
			CallType:    getEnv("STREAM_CALL_TYPE", "livestream"),
			TokenTTLSec: getEnvInt("STREAM_TOKEN_TTL_SEC", 86400),
			TimeoutSec:  getEnvInt("STREAM_TIMEOUT_SEC", 0),
		},
		Registry: RegistryConfig{
			Backend: strings.ToLower(getEnv("REGISTRY_BACKEND", RegistryRedis)),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "webinar"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "localhost:6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvInt("REDIS_DB", 0),
			PoolSize:       getEnvInt("REDIS_POOL_SIZE", 0),
			DialTimeoutSec: getEnvInt("REDIS_DIAL_TIMEOUT_SEC", 5),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "webinars.db"),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ThumbnailsBucket:     getEnv("AWS_S3_THUMBNAILS_BUCKET", "webinar-thumbnails-bucket"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Schedule: ScheduleConfig{
			Timezone: getEnv("SCHEDULE_TIMEZONE", "Local"),
		},
		LiveSession: LiveSessionConfig{
			PollIntervalSec: getEnvInt("STREAM_POLL_INTERVAL_SEC", 5),
			IdleTimeoutSec:  getEnvInt("LIVE_SESSION_IDLE_SEC", 300),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural settings. Missing stream credentials are deliberately not checked.
func (c *Config) Validate() error {
	switch c.Registry.Backend {
	case RegistryMemory, RegistryRedis, RegistrySQLite, RegistryPostgres:
	default:
		return fmt.Errorf("config: unknown REGISTRY_BACKEND %q", c.Registry.Backend)
	}
	if c.Stream.TokenTTLSec <= 0 {
		return errors.New("config: STREAM_TOKEN_TTL_SEC must be positive")
	}
	if c.Stream.CallType == "" {
		return errors.New("config: STREAM_CALL_TYPE is required")
	}
	if c.LiveSession.PollIntervalSec <= 0 {
		return errors.New("config: STREAM_POLL_INTERVAL_SEC must be positive")
	}
	if _, err := c.Schedule.Location(); err != nil {
		return fmt.Errorf("config: SCHEDULE_TIMEZONE: %w", err)
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
