package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate default config: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("address = %q, want :8080", cfg.Server.Address)
	}
	if cfg.Identifier.Prefix == "" {
		t.Error("expected default identifier prefix")
	}
}

func TestConfigValidate_RejectsInvalidTokenTTL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.AccessTokenTTL = "not-a-duration"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid auth.access_token_ttl")
	}
}

func TestConfigValidate_RequiresEZIDUsername(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EZID.Enabled = true
	cfg.EZID.Username = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when ezid is enabled without username")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := []byte(`
server:
  address: ":9000"
storage:
  path: /tmp/bcid-test.db
auth:
  access_token_ttl: "1h"
identifier:
  prefix: "ark:/99999/fk4"
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Address != ":9000" {
		t.Errorf("address = %q, want :9000", cfg.Server.Address)
	}
	if cfg.Identifier.Prefix != "ark:/99999/fk4" {
		t.Errorf("prefix = %q, want ark:/99999/fk4", cfg.Identifier.Prefix)
	}
	// Defaults still fill unset fields.
	if cfg.Server.MetricsAddress != ":9090" {
		t.Errorf("metrics address = %q, want :9090", cfg.Server.MetricsAddress)
	}
	if cfg.AccessTokenTTL().Hours() != 1 {
		t.Errorf("token ttl = %v, want 1h", cfg.AccessTokenTTL())
	}
}
