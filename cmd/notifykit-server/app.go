package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	jsonfileAdapter "notifykit/adapters/jsonfile"
	mem "notifykit/adapters/memory"
	redisAdapter "notifykit/adapters/redis"
	sqlxAdapter "notifykit/adapters/sqlx"
	"notifykit/api/httpapi"
	"notifykit/config"
	"notifykit/engine"
	"notifykit/integrations/webhook"
	"notifykit/membership"
	"notifykit/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *realtime.Registry
	Service  *engine.NotifyService
	Handler  http.Handler
	Server   *http.Server
}

func provideConfig(ctx context.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if profile := os.Getenv("NOTIFYKIT_PROFILE"); profile != "" {
		cfg, err = config.LoadProfile(profile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if cfg.Environment == config.EnvProduction {
		if err := cfg.LoadSecretsFromEnv(ctx); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideRegistry() *realtime.Registry {
	return realtime.NewRegistry()
}

func provideDispatcher(cfg *config.Config, registry *realtime.Registry) *realtime.Dispatcher {
	return realtime.NewDispatcher(registry, realtime.WithPushTimeout(cfg.Dispatch.PushTimeout))
}

func provideLedger(ctx context.Context, cfg *config.Config) (engine.Ledger, error) {
	return setupLedger(ctx, cfg)
}

// provideDirectory returns the in-process community directory. Deployments
// embedding notifykit replace this with an implementation backed by their
// community store.
func provideDirectory() *membership.MemoryDirectory {
	return membership.NewMemoryDirectory()
}

func provideResolver(dir *membership.MemoryDirectory) *membership.Resolver {
	return membership.NewResolver(dir)
}

func provideBus() *engine.EventBus {
	return engine.NewEventBus(engine.DispatchAsync)
}

func provideService(cfg *config.Config, ledger engine.Ledger, dispatcher *realtime.Dispatcher, resolver *membership.Resolver, bus *engine.EventBus) *engine.NotifyService {
	svc := engine.NewNotifyService(ledger, dispatcher, resolver, bus)
	if len(cfg.Integrations.WebhookEndpoints) > 0 {
		sink := webhook.New(cfg.Integrations.WebhookEndpoints, webhook.WithTimeout(cfg.Integrations.WebhookTimeout))
		svc.SubscribeAll(sink.OnEvent)
	}
	return svc
}

func provideHandler(svc *engine.NotifyService, registry *realtime.Registry, cfg *config.Config) http.Handler {
	return httpapi.NewMux(svc, registry, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		WSSendBuffer:     cfg.Dispatch.SendBuffer,
		WSWriteTimeout:   cfg.Dispatch.WriteTimeout,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// convertAttributes converts map[string]string to []slog.Attr.
func convertAttributes(attrs map[string]string) []slog.Attr {
	var result []slog.Attr
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}

// setupLedger creates the appropriate storage adapter based on configuration.
func setupLedger(_ context.Context, cfg *config.Config) (engine.Ledger, error) {
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), nil
	case "redis":
		return redisAdapter.New(cfg.Storage.Redis)
	case "sql":
		store, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return store, nil
	case "file":
		return jsonfileAdapter.New(cfg.Storage.File.Path)
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}
