// Package bootstrap scaffolds the INI config files internal/config reads:
// config/setting.ini plus one config/<env>/budgetcore.ini per environment.
// It never touches secrets — those are bound from the environment only,
// per internal/config.LoadSecrets.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// InitOptions configures the files Init writes.
type InitOptions struct {
	Root                   string
	Environment            string
	Email                  string
	ListenAddr             string
	AdminAddr              string
	PricingFile            string
	RestrictiveEnforcement bool
	LeaseTTLSeconds        int
	Force                  bool
}

// Init scaffolds config/setting.ini and config/<env>/budgetcore.ini.
func Init(opts InitOptions) error {
	applyDefaults(&opts)
	if err := ensureDir(filepath.Join(opts.Root, "config", opts.Environment)); err != nil {
		return err
	}

	settingPath := filepath.Join(opts.Root, "config", "setting.ini")
	if err := writeFile(settingPath, settingTemplate(opts), opts.Force); err != nil {
		return err
	}

	corePath := filepath.Join(opts.Root, "config", opts.Environment, "budgetcore.ini")
	if err := writeFile(corePath, coreTemplate(opts), opts.Force); err != nil {
		return err
	}

	return nil
}

func applyDefaults(opts *InitOptions) {
	if strings.TrimSpace(opts.Root) == "" {
		opts.Root = "."
	}
	if strings.TrimSpace(opts.Environment) == "" {
		opts.Environment = "dev"
	}
	if strings.TrimSpace(opts.Email) == "" {
		opts.Email = "dev@example.com"
	}
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = ":8080"
	}
	if strings.TrimSpace(opts.AdminAddr) == "" {
		opts.AdminAddr = ":8081"
	}
	if strings.TrimSpace(opts.PricingFile) == "" {
		opts.PricingFile = "config/pricing.yaml"
	}
	if opts.LeaseTTLSeconds <= 0 {
		opts.LeaseTTLSeconds = 120
	}
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

func writeFile(path, contents string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

func settingTemplate(opts InitOptions) string {
	return fmt.Sprintf(`# budgetcore settings
environment=%s
email=%s
`, opts.Environment, opts.Email)
}

func coreTemplate(opts InitOptions) string {
	return fmt.Sprintf(`# Environment specific overrides for %s
listen_addr=%s
admin_addr=%s
log_level=info
log_file=logs/budgetcored.log
log_format=json
pricing_file=%s
restrictive_enforcement=%t
lease_ttl_seconds=%d
lease_reconcile_interval=30s
`, opts.Environment, opts.ListenAddr, opts.AdminAddr, opts.PricingFile, opts.RestrictiveEnforcement, opts.LeaseTTLSeconds)
}

// Validate ensures required fields are present without writing any files.
func Validate(opts InitOptions) error {
	applyDefaults(&opts)
	if strings.TrimSpace(opts.Email) == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(opts.Email, "@") {
		return errors.New("email must contain '@'")
	}
	return nil
}
