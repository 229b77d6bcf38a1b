package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCoreConfig(t *testing.T) {
	tmp := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmp, "config", "dev"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	setting := "environment=dev\nlog_level=debug\nlisten_addr=:9000\n"
	if err := os.WriteFile(filepath.Join(tmp, "config", "setting.ini"), []byte(setting), 0o644); err != nil {
		t.Fatalf("write setting: %v", err)
	}
	content := "admin_addr=:9001\nrestrictive_enforcement=false\npricing_file=config/custom-pricing.yaml\n"
	if err := os.WriteFile(filepath.Join(tmp, "config", "dev", "budgetcore.ini"), []byte(content), 0o644); err != nil {
		t.Fatalf("write env config: %v", err)
	}

	cfg, err := LoadCoreConfig(tmp)
	if err != nil {
		t.Fatalf("LoadCoreConfig: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("unexpected listen addr %s", cfg.ListenAddr)
	}
	if cfg.AdminAddr != ":9001" {
		t.Fatalf("unexpected admin addr %s", cfg.AdminAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from base config, got %s", cfg.LogLevel)
	}
	if cfg.RestrictiveEnforcement {
		t.Fatalf("expected restrictive enforcement disabled by env override")
	}
	if cfg.PricingFile != "config/custom-pricing.yaml" {
		t.Fatalf("unexpected pricing file %s", cfg.PricingFile)
	}
}

func TestLoadCoreConfigMissingFiles(t *testing.T) {
	tmp := t.TempDir()
	cfg, err := LoadCoreConfig(tmp)
	if err != nil {
		t.Fatalf("LoadCoreConfig: %v", err)
	}
	if cfg.Environment != "dev" {
		t.Fatalf("expected default environment, got %s", cfg.Environment)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected default listen addr %s", cfg.ListenAddr)
	}
	if !cfg.RestrictiveEnforcement {
		t.Fatalf("expected restrictive enforcement default true")
	}
}

func TestLoadSecrets(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-jwt-secret")
	os.Setenv("IC_TOKEN_SECRET", "test-ic-secret")
	os.Setenv("IP_TOKEN_KEY", "test-ip-key")
	os.Setenv("DEPLOYMENT_MODE", "production")
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("IC_TOKEN_SECRET")
		os.Unsetenv("IP_TOKEN_KEY")
		os.Unsetenv("DEPLOYMENT_MODE")
	})

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if secrets.JWTSecret != "test-jwt-secret" {
		t.Fatalf("unexpected jwt secret %s", secrets.JWTSecret)
	}
	if secrets.Mode() != ModeProduction {
		t.Fatalf("expected production mode, got %s", secrets.Mode())
	}
}
