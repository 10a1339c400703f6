package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "")
	t.Setenv("HTTP_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HeartbeatWindow != 90*time.Second {
		t.Errorf("HeartbeatWindow = %v, want 90s", cfg.HeartbeatWindow)
	}
	if cfg.PK.DefaultDuration != 180*time.Second {
		t.Errorf("PK.DefaultDuration = %v, want 180s", cfg.PK.DefaultDuration)
	}
	if cfg.HTTPPort != "8090" {
		t.Errorf("HTTPPort = %q, want 8090", cfg.HTTPPort)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("HEARTBEAT_WINDOW", "30s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != "9000" {
		t.Errorf("HTTPPort = %q, want 9000", cfg.HTTPPort)
	}
	if cfg.HeartbeatWindow != 30*time.Second {
		t.Errorf("HeartbeatWindow = %v, want 30s", cfg.HeartbeatWindow)
	}
	if len(cfg.Notify.KafkaBrokers) != 2 || cfg.Notify.KafkaBrokers[1] != "b:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.Notify.KafkaBrokers)
	}
}

func TestValidate_RejectsDefaultOutsideBounds(t *testing.T) {
	t.Setenv("PK_DEFAULT_DURATION", "10s")
	cfg, _ := Load()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail when default duration is below the minimum")
	}
}

func TestValidate_ProductionNeedsMediaSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("MEDIA_APP_ID", "app")
	t.Setenv("MEDIA_APP_SECRET", "")
	cfg, _ := Load()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail in production without MEDIA_APP_SECRET")
	}
}
