package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.LockTimeout != 3*time.Second {
		t.Fatalf("expected 3s lock timeout, got %v", cfg.LockTimeout)
	}
	if cfg.GraceDays != 1 {
		t.Fatalf("expected grace days 1, got %d", cfg.GraceDays)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "kafka:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SWEEP_INTERVAL", "1h")
	t.Setenv("GRACE_DAYS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.SweepInterval != time.Hour {
		t.Fatalf("expected 1h sweep interval, got %v", cfg.SweepInterval)
	}
	if cfg.GraceDays != 3 {
		t.Fatalf("expected grace days 3, got %d", cfg.GraceDays)
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is empty")
	}
}
