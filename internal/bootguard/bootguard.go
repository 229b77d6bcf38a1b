// Package bootguard refuses to start the process when security-critical
// secrets still hold a known default or empty value outside development
// mode, turning a silent insecure fallback into an explicit, fatal
// rejection.
package bootguard

import (
	"fmt"
	"strings"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/config"
)

// knownDefaults lists secret values that must never reach production. Keys
// are lower-cased for comparison.
var knownDefaults = map[string]struct{}{
	"":                 {},
	"dev-secret":       {},
	"development":      {},
	"changeme":         {},
	"change-me":        {},
	"secret":           {},
	"budgetcore-dev":   {},
	"insecure-default": {},
	"test-secret":      {},
}

// Violation describes one rejected secret.
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Reason)
}

// Check inspects the given secrets for known-default values. In
// development mode it returns no violations regardless of content, since
// local iteration should not require provisioning real secrets.
func Check(mode config.DeploymentMode, secrets config.Secrets) []Violation {
	if mode == config.ModeDevelopment {
		return nil
	}

	var violations []Violation
	checks := []struct {
		field string
		value string
	}{
		{"JWT_SECRET", secrets.JWTSecret},
		{"IC_TOKEN_SECRET", secrets.ICTokenSecret},
		{"IP_TOKEN_KEY", secrets.IPTokenKey},
	}
	for _, c := range checks {
		if isDefault(c.value) {
			violations = append(violations, Violation{
				Field:  c.field,
				Reason: "holds an empty or known-default value; generate a replacement with `openssl rand -hex 32`",
			})
		}
	}
	if mode == config.ModeProductionUnconfirmed {
		violations = append(violations, Violation{
			Field:  "DEPLOYMENT_MODE",
			Reason: `must be explicitly set to "production" or "development", got an unrecognized value`,
		})
	}
	if len(secrets.DatabaseURL) == 0 {
		violations = append(violations, Violation{
			Field:  "DATABASE_URL",
			Reason: "must be set outside development mode",
		})
	}
	return violations
}

func isDefault(v string) bool {
	_, known := knownDefaults[strings.ToLower(strings.TrimSpace(v))]
	return known
}

// Enforce calls Check and returns an error combining every violation found,
// wrapping bcerrors.ErrConfigurationRefused. Callers at process startup
// should treat a non-nil error as fatal.
func Enforce(mode config.DeploymentMode, secrets config.Secrets) error {
	violations := Check(mode, secrets)
	if len(violations) == 0 {
		return nil
	}
	lines := make([]string, 0, len(violations))
	for _, v := range violations {
		lines = append(lines, v.String())
	}
	return fmt.Errorf("bootguard: refusing to start in %s mode: %w:\n  %s", mode, bcerrors.ErrConfigurationRefused, strings.Join(lines, "\n  "))
}
