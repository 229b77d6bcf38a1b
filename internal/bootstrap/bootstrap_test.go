package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCreatesConfigFiles(t *testing.T) {
	tmp := t.TempDir()
	opts := InitOptions{
		Root:                   tmp,
		Email:                  "agent@example.com",
		ListenAddr:             ":9090",
		RestrictiveEnforcement: true,
	}
	if err := Init(opts); err != nil {
		t.Fatalf("Init: %v", err)
	}

	settingBytes, err := os.ReadFile(filepath.Join(tmp, "config", "setting.ini"))
	if err != nil {
		t.Fatalf("read setting: %v", err)
	}
	content := string(settingBytes)
	if !strings.Contains(content, "environment=dev") {
		t.Fatalf("missing environment: %s", content)
	}
	if !strings.Contains(content, "email=agent@example.com") {
		t.Fatalf("missing email: %s", content)
	}

	coreBytes, err := os.ReadFile(filepath.Join(tmp, "config", "dev", "budgetcore.ini"))
	if err != nil {
		t.Fatalf("read budgetcore.ini: %v", err)
	}
	coreContent := string(coreBytes)
	if !strings.Contains(coreContent, "listen_addr=:9090") {
		t.Fatalf("missing listen_addr: %s", coreContent)
	}
	if !strings.Contains(coreContent, "restrictive_enforcement=true") {
		t.Fatalf("unexpected enforcement setting: %s", coreContent)
	}
	if !strings.Contains(coreContent, "lease_ttl_seconds=120") {
		t.Fatalf("unexpected lease ttl: %s", coreContent)
	}
}

func TestInitRespectsForce(t *testing.T) {
	tmp := t.TempDir()
	opts := InitOptions{Root: tmp, Email: "a@b.com"}
	if err := Init(opts); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(opts); err == nil {
		t.Fatalf("expected error when files exist")
	}
	opts.Force = true
	if err := Init(opts); err != nil {
		t.Fatalf("Init with force: %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(InitOptions{Email: "invalid"}); err == nil {
		t.Fatalf("expected invalid email error")
	}
	if err := Validate(InitOptions{Email: "valid@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
