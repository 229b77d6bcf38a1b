// Package idgen mints opaque, typed-prefix identifiers. Every entity ID in
// the system carries a prefix naming its kind (user_, agent_, proj_, ...) so
// that an ID found in a log line or URL is self-describing, mirroring the
// key_prefix convention used for API keys.
package idgen

import "github.com/google/uuid"

const (
	PrefixUser       = "user_"
	PrefixAgent      = "agent_"
	PrefixProject    = "proj_"
	PrefixOrgUnit    = "org_"
	PrefixBudget     = "bud_"
	PrefixLease      = "lease_"
	PrefixICToken    = "ic_"
	PrefixIPToken    = "ip_"
	PrefixGateway    = "gw_"
	PrefixPrincipal  = "principal_"
	PrefixUsageEvent = "evt_"
)

// New mints a new identifier of the given kind as prefix + a UUIDv4 in its
// canonical (hyphenated) string form.
func New(prefix string) string {
	return prefix + uuid.NewString()
}

// NewAgent, NewUser, ... are thin conveniences over New for call sites that
// want a named constructor instead of a raw prefix constant.
func NewAgent() string     { return New(PrefixAgent) }
func NewUser() string      { return New(PrefixUser) }
func NewProject() string   { return New(PrefixProject) }
func NewOrgUnit() string   { return New(PrefixOrgUnit) }
func NewBudget() string    { return New(PrefixBudget) }
func NewLease() string     { return New(PrefixLease) }
func NewGateway() string   { return New(PrefixGateway) }
func NewPrincipal() string { return New(PrefixPrincipal) }
func NewUsageEvent() string { return New(PrefixUsageEvent) }
