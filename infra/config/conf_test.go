package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp(t *testing.T) {
	config1 := App()
	config2 := App()

	require.NotNil(t, config1)
	assert.Same(t, config1, config2, "App() should return singleton instance")
	assert.NotNil(t, config1.Validator, "Validator should be initialized")
}

func TestLoadAppConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, c *AppConfig)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, "9999", c.Port)
				assert.Equal(t, "development", c.Environment)
				assert.Equal(t, "./data/gomerchant.db", c.SQLitePath)
				assert.Equal(t, "http://localhost:9200", c.OpenSearchURL)
				assert.False(t, c.EnableOpenSearch)
				assert.Equal(t, "info", c.LoggingLevel)
				assert.Equal(t, 60*time.Second, c.HTTPTimeout)
				assert.Equal(t, 2, c.HTTPRetryMax)
				assert.Equal(t, 100, c.GatewayCacheSize)
				assert.Equal(t, time.Hour, c.GatewayCacheTTL)
				assert.Equal(t, "*", c.AllowedOrigins)
				assert.Equal(t, 100, c.RateLimit)
				assert.Empty(t, c.IPWhitelist)
				assert.Empty(t, c.TrustedProxies)
			},
		},
		{
			name: "custom_values",
			envVars: map[string]string{
				"APP_PORT":                  "8080",
				"API_KEY":                   "secret-api-key",
				"APP_ENV":                   "production",
				"SQLITE_PATH":               "/var/lib/gomerchant.db",
				"ENABLE_OPENSEARCH_LOGGING": "true",
				"CONFIG_ENCRYPTION_KEY":     "passphrase",
				"GATEWAY_HTTP_TIMEOUT":      "30s",
				"GATEWAY_HTTP_RETRY_MAX":    "0",
				"GATEWAY_CACHE_TTL":         "120",
				"TRUSTED_PROXIES":           "10.0.0.0/8",
			},
			validate: func(t *testing.T, c *AppConfig) {
				assert.Equal(t, "8080", c.Port)
				assert.Equal(t, "secret-api-key", c.APIKey)
				assert.Equal(t, "production", c.Environment)
				assert.Equal(t, "/var/lib/gomerchant.db", c.SQLitePath)
				assert.True(t, c.EnableOpenSearch)
				assert.Equal(t, "passphrase", c.EncryptionKey)
				assert.Equal(t, 30*time.Second, c.HTTPTimeout)
				assert.Equal(t, 0, c.HTTPRetryMax)
				assert.Equal(t, 2*time.Minute, c.GatewayCacheTTL)
				assert.Equal(t, "10.0.0.0/8", c.TrustedProxies)
			},
		},
		{
			name: "invalid_values_fall_back",
			envVars: map[string]string{
				"ENABLE_OPENSEARCH_LOGGING": "maybe",
				"GATEWAY_HTTP_RETRY_MAX":    "many",
				"GATEWAY_HTTP_TIMEOUT":      "soon",
			},
			validate: func(t *testing.T, c *AppConfig) {
				assert.False(t, c.EnableOpenSearch)
				assert.Equal(t, 2, c.HTTPRetryMax)
				assert.Equal(t, 60*time.Second, c.HTTPTimeout)
			},
		},
	}

	keys := []string{
		"APP_PORT", "API_KEY", "APP_ENV", "SQLITE_PATH", "OPENSEARCH_URL", "ENABLE_OPENSEARCH_LOGGING",
		"LOGGING_LEVEL", "CONFIG_ENCRYPTION_KEY", "GATEWAY_HTTP_TIMEOUT", "GATEWAY_HTTP_RETRY_MAX",
		"GATEWAY_CACHE_SIZE", "GATEWAY_CACHE_TTL", "CORS_ALLOWED_ORIGINS", "IP_WHITELIST", "TRUSTED_PROXIES",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range keys {
				t.Setenv(key, "")
			}
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}
			tt.validate(t, LoadAppConfig())
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "value")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty-two")
	t.Setenv("TEST_DURATION", "1m30s")

	assert.Equal(t, "value", GetEnv("TEST_STRING", "default"))
	assert.Equal(t, "default", GetEnv("TEST_MISSING", "default"))
	assert.True(t, GetBoolEnv("TEST_BOOL", false))
	assert.True(t, GetBoolEnv("TEST_MISSING", true))
	assert.Equal(t, 42, GetIntEnv("TEST_INT", 0))
	assert.Equal(t, 7, GetIntEnv("TEST_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, GetDurationEnv("TEST_DURATION", 0))
	assert.Equal(t, time.Second, GetDurationEnv("TEST_MISSING", time.Second))
}
