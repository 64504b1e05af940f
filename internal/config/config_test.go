package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("MICROBLOG_SESSION_TTL", "2h")
	t.Setenv("MICROBLOG_MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("MICROBLOG_ALLOWED_EXTENSIONS", ".png, .gif")

	cfgPath := writeConfig(t, `
port: "8080"
logLevel: "info"
redisAddr: "localhost:6379"
sessionTTL: "24h"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SessionStrategy != "redis" {
		t.Fatalf("sessionStrategy = %q, want redis default", cfg.SessionStrategy)
	}
	if cfg.SessionTTL != "2h" {
		t.Fatalf("sessionTTL = %q, want env override 2h", cfg.SessionTTL)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Fatalf("maxUploadBytes = %d, want 1048576", cfg.MaxUploadBytes)
	}
	if len(cfg.AllowedExtensions) != 2 || cfg.AllowedExtensions[0] != ".png" || cfg.AllowedExtensions[1] != ".gif" {
		t.Fatalf("allowedExtensions = %v", cfg.AllowedExtensions)
	}
	if cfg.HTMLDir != "./web/templates" {
		t.Fatalf("htmlDir default missing: %q", cfg.HTMLDir)
	}

	ttl, err := ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		t.Fatalf("parse ttl: %v", err)
	}
	if ttl != 2*time.Hour {
		t.Fatalf("ttl = %v, want 2h", ttl)
	}
}

func TestLoadRejectsMissingPort(t *testing.T) {
	cfgPath := writeConfig(t, `
logLevel: "info"
redisAddr: "localhost:6379"
`)
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected error for missing port")
	}
}

func TestLoadValidatesSessionStrategy(t *testing.T) {
	cfgPath := writeConfig(t, `
port: "8080"
sessionStrategy: "jwt"
`)
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("jwt strategy without secret must fail")
	}

	cfgPath = writeConfig(t, `
port: "8080"
sessionStrategy: "jwt"
jwtSecret: "s3cret"
`)
	if _, err := Load(cfgPath); err != nil {
		t.Fatalf("jwt strategy with secret: %v", err)
	}

	cfgPath = writeConfig(t, `
port: "8080"
sessionStrategy: "carrier-pigeon"
`)
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("unknown strategy must fail")
	}
}

func TestParseSessionTTLRejectsGarbage(t *testing.T) {
	if _, err := ParseSessionTTL("not-a-duration"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := ParseSessionTTL("-5m"); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
}
