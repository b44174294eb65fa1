package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/gomerchant/infra/validate"
)

type CKey string

// Config holds process-wide helpers shared by the HTTP layer
type Config struct {
	Validator *validator.Validate
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port             string
	APIKey           string
	Environment      string
	SQLitePath       string
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableOpenSearch bool
	EnableSystemSink bool
	LoggingLevel     string
	EncryptionKey    string
	HTTPTimeout      time.Duration
	HTTPRetryMax     int
	GatewayCacheSize int
	GatewayCacheTTL  time.Duration
	TransactionLimit int
	ShutdownTimeout  time.Duration
	AllowedOrigins   string
	IPWhitelist      string
	TrustedProxies   string
	RateLimit        int
}

var (
	instance          *Config
	instanceOnce      sync.Once
	appConfigInstance *AppConfig
	appConfigOnce     sync.Once
)

func App() *Config {
	instanceOnce.Do(func() {
		v := validator.New()
		validate.CustomValidate(v)
		instance = &Config{
			Validator: v,
		}
	})
	return instance
}

// GetAppConfig returns the application configuration, read once from the environment
func GetAppConfig() *AppConfig {
	appConfigOnce.Do(func() {
		appConfigInstance = LoadAppConfig()
	})
	return appConfigInstance
}

// LoadAppConfig reads the application configuration from the environment
func LoadAppConfig() *AppConfig {
	return &AppConfig{
		Port:             GetEnv("APP_PORT", "9999"),
		APIKey:           GetEnv("API_KEY", ""),
		Environment:      GetEnv("APP_ENV", "development"),
		SQLitePath:       GetEnv("SQLITE_PATH", "./data/gomerchant.db"),
		OpenSearchURL:    GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchUser:   GetEnv("OPENSEARCH_USER", ""),
		OpenSearchPass:   GetEnv("OPENSEARCH_PASSWORD", ""),
		EnableOpenSearch: GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
		EnableSystemSink: GetBoolEnv("ENABLE_OPENSEARCH_SYSTEM_LOGS", false),
		LoggingLevel:     GetEnv("LOGGING_LEVEL", "info"),
		EncryptionKey:    GetEnv("CONFIG_ENCRYPTION_KEY", ""),
		HTTPTimeout:      GetDurationEnv("GATEWAY_HTTP_TIMEOUT", 60*time.Second),
		HTTPRetryMax:     GetIntEnv("GATEWAY_HTTP_RETRY_MAX", 2),
		GatewayCacheSize: GetIntEnv("GATEWAY_CACHE_SIZE", 100),
		GatewayCacheTTL:  GetDurationEnv("GATEWAY_CACHE_TTL", time.Hour),
		TransactionLimit: GetIntEnv("TRANSACTION_LIST_LIMIT", 50),
		ShutdownTimeout:  GetDurationEnv("SHUTDOWN_TIMEOUT", 15*time.Second),
		AllowedOrigins:   GetEnv("CORS_ALLOWED_ORIGINS", "*"),
		IPWhitelist:      GetEnv("IP_WHITELIST", ""),
		TrustedProxies:   GetEnv("TRUSTED_PROXIES", ""),
		RateLimit:        GetIntEnv("RATE_LIMIT_PER_MINUTE", 100),
	}
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetDurationEnv accepts Go durations ("30s") or plain seconds
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
