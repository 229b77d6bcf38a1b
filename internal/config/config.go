// Package config loads runtime configuration for the budget control core.
// Non-secret defaults come from a layered pair of INI settings files
// (config/setting.ini + config/<env>/budgetcore.ini); secrets and
// deployment-mode are bound directly from the environment via caarlos0/env
// so they can never silently fall back to a file-committed value.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/ini.v1"
)

const (
	settingsFile     = "config/setting.ini"
	defaultEnv       = "dev"
	envConfigPattern = "config/%s/budgetcore.ini"
)

// DeploymentMode gates the Boot Guard's secret-default checks.
type DeploymentMode string

const (
	ModeDevelopment            DeploymentMode = "development"
	ModeProduction             DeploymentMode = "production"
	ModeProductionUnconfirmed  DeploymentMode = "production_unconfirmed"
)

// Secrets holds every credential-bearing environment variable. It is bound
// directly from the process environment; nothing here is ever read from an
// INI file, so there is no file-committed fallback to find.
type Secrets struct {
	JWTSecret      string `env:"JWT_SECRET"`
	ICTokenSecret  string `env:"IC_TOKEN_SECRET"`
	IPTokenKey     string `env:"IP_TOKEN_KEY"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DeploymentMode string `env:"DEPLOYMENT_MODE" envDefault:"development"`
}

// LoadSecrets binds Secrets from the process environment.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return Secrets{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return s, nil
}

// Mode normalizes DeploymentMode into the DeploymentMode enum, defaulting to
// the most conservative "production_unconfirmed" for unrecognized values.
func (s Secrets) Mode() DeploymentMode {
	switch strings.ToLower(strings.TrimSpace(s.DeploymentMode)) {
	case "development", "dev":
		return ModeDevelopment
	case "production", "prod":
		return ModeProduction
	default:
		return ModeProductionUnconfirmed
	}
}

// Settings carries the environment selector and raw key/value defaults read
// from config/setting.ini.
type Settings struct {
	Environment string
	Defaults    map[string]string
}

// CoreConfig describes non-secret runtime options for budgetcored.
type CoreConfig struct {
	Environment string
	ListenAddr  string
	AdminAddr   string
	LogLevel    string
	LogFile     string
	LogFormat   string // "console" or "json"
	PricingFile string
	// RestrictiveEnforcement is loaded from restrictive_enforcement (or
	// BUDGETCORE_RESTRICTIVE_ENFORCEMENT) and written by budgetcored init;
	// no component reads it at run time. Whether exhaustion denies a
	// reservation is decided by each budget node's own Enforcement.
	RestrictiveEnforcement bool
	LeaseDefaultTTLSeconds int
	LeaseReconcileInterval string // duration string, e.g. "30s"
}

// LoadCoreConfig reads config/setting.ini and config/<env>/budgetcore.ini,
// merging environment-specific values over the shared defaults.
func LoadCoreConfig(root string) (CoreConfig, error) {
	if root == "" {
		root = "."
	}
	s, err := loadSettings(root)
	if err != nil {
		return CoreConfig{}, err
	}

	envValues, err := parseINI(filepath.Join(root, fmt.Sprintf(envConfigPattern, s.Environment)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			envValues = map[string]string{}
		} else {
			return CoreConfig{}, err
		}
	}

	merged := make(map[string]string)
	for k, v := range s.Defaults {
		merged[k] = v
	}
	for k, v := range envValues {
		merged[k] = v
	}

	cfg := CoreConfig{
		Environment:            s.Environment,
		ListenAddr:             firstNonEmpty(os.Getenv("BUDGETCORE_LISTEN_ADDR"), merged["listen_addr"], ":8080"),
		AdminAddr:              firstNonEmpty(os.Getenv("BUDGETCORE_ADMIN_ADDR"), merged["admin_addr"], ":8081"),
		LogLevel:               firstNonEmpty(os.Getenv("BUDGETCORE_LOG_LEVEL"), merged["log_level"], "info"),
		LogFile:                firstNonEmpty(os.Getenv("BUDGETCORE_LOG_FILE"), merged["log_file"]),
		LogFormat:              firstNonEmpty(os.Getenv("BUDGETCORE_LOG_FORMAT"), merged["log_format"], "json"),
		PricingFile:            firstNonEmpty(os.Getenv("BUDGETCORE_PRICING_FILE"), merged["pricing_file"], "config/pricing.yaml"),
		RestrictiveEnforcement: parseOptionalBool(firstNonEmpty(os.Getenv("BUDGETCORE_RESTRICTIVE_ENFORCEMENT"), merged["restrictive_enforcement"]), true),
		LeaseReconcileInterval: firstNonEmpty(os.Getenv("BUDGETCORE_LEASE_RECONCILE_INTERVAL"), merged["lease_reconcile_interval"], "30s"),
	}
	cfg.LeaseDefaultTTLSeconds = parseOptionalInt(firstNonEmpty(os.Getenv("BUDGETCORE_LEASE_TTL_SECONDS"), merged["lease_ttl_seconds"]), 120)
	return cfg, nil
}

func loadSettings(root string) (Settings, error) {
	values, err := parseINI(filepath.Join(root, settingsFile))
	if errors.Is(err, os.ErrNotExist) {
		return Settings{Environment: defaultEnv, Defaults: map[string]string{}}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	env := values["environment"]
	if env == "" {
		env = defaultEnv
	}
	defaults := make(map[string]string)
	for k, v := range values {
		if k == "environment" {
			continue
		}
		defaults[k] = v
	}
	return Settings{Environment: env, Defaults: defaults}, nil
}

// parseINI reads path with gopkg.in/ini.v1 and flattens every section's keys
// (lower-cased) into one map; section headers themselves are discarded since
// this codebase's INI files never nest settings under a named section.
func parseINI(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	values := make(map[string]string)
	for _, section := range file.Sections() {
		for _, key := range section.Keys() {
			values[strings.ToLower(key.Name())] = key.Value()
		}
	}
	return values, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseOptionalBool(v string, fallback bool) bool {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return parseBool(v)
}

func parseOptionalInt(v string, fallback int) int {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return parsed
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
