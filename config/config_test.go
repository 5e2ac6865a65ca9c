package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBase() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Address:           ":8080",
			ReadTimeout:       time.Second,
			WriteTimeout:      time.Second,
			IdleTimeout:       time.Second,
			ReadHeaderTimeout: time.Second,
			ShutdownTimeout:   time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
		},
		Dispatch: DispatchConfig{
			PushTimeout:  time.Second,
			SendBuffer:   64,
			WriteTimeout: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.PushTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	configContent := `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		},
		"dispatch": {
			"push_timeout": 1000000000
		}
	}`

	tmpFile, err := os.CreateTemp("", "config_test_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	tmpFile.Close()

	cfg, err := LoadFromFile(tmpFile.Name())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, time.Second, cfg.Dispatch.PushTimeout)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("NOTIFYKIT_SERVER_ADDR", ":7070")
	t.Setenv("NOTIFYKIT_STORAGE_ADAPTER", "file")
	t.Setenv("NOTIFYKIT_STORAGE_FILE_PATH", "/tmp/notify.json")
	t.Setenv("NOTIFYKIT_DISPATCH_PUSH_TIMEOUT", "500ms")
	t.Setenv("NOTIFYKIT_SECURITY_API_KEYS", "k1, k2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "file", cfg.Storage.Adapter)
	assert.Equal(t, "/tmp/notify.json", cfg.Storage.File.Path)
	assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.PushTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid config", func(*Config) {}, false},
		{"invalid environment", func(c *Config) { c.Environment = "" }, true},
		{"invalid server timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, true},
		{"unknown adapter", func(c *Config) { c.Storage.Adapter = "mongo" }, true},
		{"file adapter without path", func(c *Config) { c.Storage.Adapter = "file" }, true},
		{"zero push timeout", func(c *Config) { c.Dispatch.PushTimeout = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"rate limit enabled without rpm", func(c *Config) {
			c.Security.EnableRateLimit = true
			c.Security.RateLimit.BurstSize = 10
		}, true},
		{"empty webhook endpoint", func(c *Config) {
			c.Integrations.WebhookEndpoints = []string{"  "}
			c.Integrations.WebhookTimeout = time.Second
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validBase()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if tt.expectConfig {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				assert.Equal(t, tt.environment, cfg.Environment)
			} else {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			}
		})
	}
}

func TestSecrets(t *testing.T) {
	store := NewEnvironmentSecretStore()

	testKey := "TEST_SECRET_KEY"
	testValue := "test_secret_value"
	t.Setenv(testKey, testValue)

	ctx := context.Background()

	value, err := store.Get(ctx, testKey)
	assert.NoError(t, err)
	assert.Equal(t, testValue, value)

	defaultValue := "default"
	value = store.GetWithDefault(ctx, "NONEXISTENT_KEY", defaultValue)
	assert.Equal(t, defaultValue, value)

	value = store.GetWithDefault(ctx, testKey, defaultValue)
	assert.Equal(t, testValue, value)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	t.Setenv("NOTIFYKIT_REDIS_PASSWORD", "hunter2")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadSecretsFromEnv(context.Background()))
	assert.Equal(t, "hunter2", cfg.Storage.Redis.Password)

	cfg.Storage.Adapter = "sql"
	cfg.Storage.SQL.DSN = ""
	assert.Error(t, cfg.LoadSecretsFromEnv(context.Background()))
}

func TestValidateConfigPath(t *testing.T) {
	tmpJSON, err := os.CreateTemp("", "config_test_*.json")
	require.NoError(t, err)
	tmpJSON.WriteString("{}")
	tmpJSON.Close()
	defer os.Remove(tmpJSON.Name())

	tmpTxt, err := os.CreateTemp("", "config_test_*.txt")
	require.NoError(t, err)
	tmpTxt.WriteString("{}")
	tmpTxt.Close()
	defer os.Remove(tmpTxt.Name())

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"valid json file", tmpJSON.Name(), false},
		{"empty path", "", true},
		{"path traversal", "../../../etc/passwd", true},
		{"non-json file", tmpTxt.Name(), true},
		{"nonexistent file", "nonexistent.json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
