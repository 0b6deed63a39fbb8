package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	StorageDriverLocal = "local"
	StorageDriverGCS   = "gcs"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Auth      AuthConfig
	Catalog   CatalogConfig
	Storage   StorageConfig
	Dashboard DashboardConfig
	Jobs      JobsConfig
	Tracing   TracingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig holds sign-up policy.
type AuthConfig struct {
	AdminSignupCode   string
	MinPasswordLength int
	SessionPurgeEvery time.Duration
}

// CatalogConfig tunes the catalog filter engine and live views.
type CatalogConfig struct {
	SearchDebounce time.Duration
	CacheTTL       time.Duration
	ViewIdleTTL    time.Duration
	ViewSweepEvery time.Duration
}

// StorageConfig selects and configures the object store for course assets.
type StorageConfig struct {
	Driver           string
	LocalDir         string
	PublicBaseURL    string
	GCSBucket        string
	GCSCDNDomain     string
	GCSCredentials   string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// JobsConfig sizes the background asset cleanup queue.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// TracingConfig toggles OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	Endpoint     string
	Insecure     bool
	SampleRatio  float64
	ShutdownWait time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Auth = AuthConfig{
		AdminSignupCode:   v.GetString("ADMIN_SIGNUP_CODE"),
		MinPasswordLength: v.GetInt("MIN_PASSWORD_LENGTH"),
		SessionPurgeEvery: parseDuration(v.GetString("SESSION_PURGE_INTERVAL"), time.Hour),
	}

	cfg.Catalog = CatalogConfig{
		SearchDebounce: parseDuration(v.GetString("CATALOG_SEARCH_DEBOUNCE"), 300*time.Millisecond),
		CacheTTL:       parseDuration(v.GetString("CATALOG_CACHE_TTL"), time.Minute),
		ViewIdleTTL:    parseDuration(v.GetString("CATALOG_VIEW_IDLE_TTL"), 15*time.Minute),
		ViewSweepEvery: parseDuration(v.GetString("CATALOG_VIEW_SWEEP_INTERVAL"), time.Minute),
	}

	maxFileSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 50 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Driver:           strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:         v.GetString("STORAGE_LOCAL_DIR"),
		PublicBaseURL:    strings.TrimRight(v.GetString("STORAGE_PUBLIC_BASE_URL"), "/"),
		GCSBucket:        v.GetString("GCS_BUCKET_NAME"),
		GCSCDNDomain:     v.GetString("GCS_CDN_DOMAIN"),
		GCSCredentials:   v.GetString("GCS_CREDENTIALS_FILE"),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Tracing = TracingConfig{
		Enabled:      v.GetBool("OTEL_ENABLED"),
		ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		Endpoint:     v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Insecure:     v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		SampleRatio:  clampRatio(v.GetFloat64("OTEL_SAMPLER_RATIO")),
		ShutdownWait: parseDuration(v.GetString("OTEL_SHUTDOWN_TIMEOUT"), 5*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "learning_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "learning-portal")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADMIN_SIGNUP_CODE", "ADMIN2024")
	v.SetDefault("MIN_PASSWORD_LENGTH", 6)
	v.SetDefault("SESSION_PURGE_INTERVAL", "1h")

	v.SetDefault("CATALOG_SEARCH_DEBOUNCE", "300ms")
	v.SetDefault("CATALOG_CACHE_TTL", "1m")
	v.SetDefault("CATALOG_VIEW_IDLE_TTL", "15m")
	v.SetDefault("CATALOG_VIEW_SWEEP_INTERVAL", "1m")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/files")
	v.SetDefault("GCS_BUCKET_NAME", "")
	v.SetDefault("GCS_CDN_DOMAIN", "")
	v.SetDefault("GCS_CREDENTIALS_FILE", "")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 50*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "image/png,image/jpeg,image/webp,application/pdf,video/mp4")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "5s")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "learning-portal-api")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 0.1)
	v.SetDefault("OTEL_SHUTDOWN_TIMEOUT", "5s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

func clampRatio(ratio float64) float64 {
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
