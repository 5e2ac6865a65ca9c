package config

import (
	"context"
	"fmt"
	"os"
)

// SecretStore resolves secret values at startup. The environment
// implementation is the default; deployments with a vault implement this
// against it.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, fallback string) string
}

// EnvironmentSecretStore reads secrets from process environment variables.
type EnvironmentSecretStore struct{}

func NewEnvironmentSecretStore() *EnvironmentSecretStore {
	return &EnvironmentSecretStore{}
}

func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret %s not set", key)
	}
	return value, nil
}

func (s *EnvironmentSecretStore) GetWithDefault(ctx context.Context, key, fallback string) string {
	value, err := s.Get(ctx, key)
	if err != nil {
		return fallback
	}
	return value
}

// LoadSecretsFromEnv overlays secret material onto the config. Called in
// production so credentials never live in config files.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	store := NewEnvironmentSecretStore()

	c.Storage.Redis.Password = store.GetWithDefault(ctx, "NOTIFYKIT_REDIS_PASSWORD", c.Storage.Redis.Password)
	c.Storage.SQL.DSN = store.GetWithDefault(ctx, "NOTIFYKIT_SQL_DSN", c.Storage.SQL.DSN)

	if c.Storage.Adapter == "sql" && c.Storage.SQL.DSN == "" {
		return fmt.Errorf("sql adapter selected but NOTIFYKIT_SQL_DSN is not set")
	}
	return nil
}
