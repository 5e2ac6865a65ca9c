package main

import (
	"context"
	"testing"

	"notifykit/config"
)

func TestProvideConfigAppliesProfile(t *testing.T) {
	t.Setenv("NOTIFYKIT_PROFILE", "development")

	cfg, err := provideConfig(context.Background())
	if err != nil {
		t.Fatalf("provide config: %v", err)
	}
	if cfg.Profile != "development" || cfg.Environment != config.EnvDevelopment {
		t.Fatalf("profile preset not applied: profile=%q env=%q", cfg.Profile, cfg.Environment)
	}
	// the development preset switches logging away from the JSON default
	if cfg.Logging.Format != "text" || cfg.Logging.Level != "debug" {
		t.Fatalf("development logging preset not applied: %+v", cfg.Logging)
	}
}

func TestProvideConfigRejectsUnknownProfile(t *testing.T) {
	t.Setenv("NOTIFYKIT_PROFILE", "nope")

	if _, err := provideConfig(context.Background()); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestProvideConfigDefaultsWithoutProfile(t *testing.T) {
	t.Setenv("NOTIFYKIT_PROFILE", "")

	cfg, err := provideConfig(context.Background())
	if err != nil {
		t.Fatalf("provide config: %v", err)
	}
	if cfg.Profile != "default" || cfg.Storage.Adapter != "memory" {
		t.Fatalf("unexpected defaults: profile=%q adapter=%q", cfg.Profile, cfg.Storage.Adapter)
	}
}
