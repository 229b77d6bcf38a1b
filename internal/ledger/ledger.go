// Package ledger implements the budget ledger: the four-level budget
// hierarchy (master -> provider -> project -> agent), lease records, and
// append-only usage events, exposed through transactional reserve, commit
// and refund operations plus the ancestor walk-up each of them runs.
package ledger

import "context"

// Scope names a level of the budget tree. The budget model gives
// Restrictive enforcement to agent nodes; CreateBudgetNode stores whatever
// Enforcement it is given and does not reject a Restrictive node at another
// scope.
type Scope string

const (
	ScopeMaster   Scope = "master"
	ScopeProvider Scope = "provider"
	ScopeProject  Scope = "project"
	ScopeAgent    Scope = "agent"
)

// Enforcement controls whether a node's exhaustion blocks admission.
type Enforcement string

const (
	Restrictive Enforcement = "restrictive"
	Informative Enforcement = "informative"
)

// BudgetNode is one node of the fixed-depth budget tree.
type BudgetNode struct {
	ID            string
	Scope         Scope
	ParentID      *string
	MaxMicroUSD   int64
	SpentMicroUSD int64
	Enforcement   Enforcement
	CreatedAtMs   int64
}

// LeaseState tracks a lease's lifecycle.
type LeaseState string

const (
	LeaseActive LeaseState = "active"
	LeaseClosed LeaseState = "closed"
)

// Lease is a runtime's transferable right to spend a slice of an agent
// budget node. Invariant: ConsumedMicroUSD + ReservedMicroUSD <= GrantedMicroUSD.
type Lease struct {
	ID                       string
	AgentID                  string
	BudgetNodeID             string
	GrantedMicroUSD          int64
	ConsumedMicroUSD         int64
	ReservedMicroUSD         int64
	State                    LeaseState
	RefreshWatermarkMicroUSD int64
	CreatedAtMs              int64
	LastReportAtMs           int64
}

// Remaining is the capacity a new Reserve against this lease could still
// claim: GrantedMicroUSD - ConsumedMicroUSD - ReservedMicroUSD.
func (l Lease) Remaining() int64 {
	return l.GrantedMicroUSD - l.ConsumedMicroUSD - l.ReservedMicroUSD
}

// Reservation is a pre-call hold on lease capacity created by Reserve and
// resolved exactly once, by either Commit or Refund.
type Reservation struct {
	ID          string
	LeaseID     string
	MicroUSD    int64
	Settled     bool
	CreatedAtMs int64
}

// UsageEvent is an append-only record of one billed model call, keyed by
// RequestID so duplicate reports are idempotent.
type UsageEvent struct {
	ID               string
	RequestID        string
	LeaseID          string
	AgentID          string
	Provider         string
	PromptTokens     int64
	CompletionTokens int64
	CostMicroUSD     int64
	CreatedAtMs      int64
}

// UsageLimit is the secondary, owner-scoped monthly throttle record. The
// request gate neither reads nor increments it; only the Store methods
// below touch it.
type UsageLimit struct {
	ID                           string
	OwnerID                      string
	MaxCostPerMonthMicroUSD      int64
	CurrentCostMicroUSDThisMonth int64
	ResetAtMs                    int64
}

// Store is the ledger's persistence contract. Reserve, Commit and Refund must
// each run inside their own transaction per call (two transactions bracket
// a forwarded request: one to reserve, one to commit or refund), never
// sharing one across the network hop to the upstream provider.
type Store interface {
	CreateBudgetNode(ctx context.Context, scope Scope, parentID *string, maxMicroUSD int64, enforcement Enforcement) (*BudgetNode, error)
	GetBudgetNode(ctx context.Context, id string) (*BudgetNode, error)
	UpdateBudgetNodeMax(ctx context.Context, id string, maxMicroUSD int64) error

	CreateLease(ctx context.Context, agentID, budgetNodeID string, grantedMicroUSD, refreshWatermarkMicroUSD int64) (*Lease, error)
	GetLease(ctx context.Context, id string) (*Lease, error)
	// RefreshLease adds deltaMicroUSD to GrantedMicroUSD, re-opening a lease
	// that has run down to its refresh watermark.
	RefreshLease(ctx context.Context, id string, deltaMicroUSD int64) (*Lease, error)
	// CloseLease marks a lease closed and returns any still-reserved
	// capacity to its budget node's headroom; a closed lease Reserves
	// ErrLeaseClosed forever after.
	CloseLease(ctx context.Context, id string) error

	// Reserve holds microUSD of capacity against lease and, via walk_up,
	// every ancestor budget node up to master. It denies with
	// ErrBudgetExceeded if any Restrictive node on the path lacks headroom,
	// without mutating anything on a denial.
	Reserve(ctx context.Context, leaseID string, microUSD int64) (*Reservation, error)
	// Commit settles reservationID as actually spent, appends a UsageEvent
	// keyed by requestID, and is a no-op returning the original event when
	// requestID has already been committed.
	Commit(ctx context.Context, reservationID, requestID, provider string, promptTokens, completionTokens, actualMicroUSD int64) (*UsageEvent, error)
	// Refund releases a reservation's hold without recording spend, for a
	// forward call that failed before producing a billable response.
	Refund(ctx context.Context, reservationID string) error

	GetOrCreateUsageLimit(ctx context.Context, ownerID string, maxCostPerMonthMicroUSD int64, resetAtMs int64) (*UsageLimit, error)
	// IncrementUsageLimit adds microUSD to the owner's running monthly
	// total; it does not itself enforce the cap, and the request gate does
	// not check the cap before calling Reserve.
	IncrementUsageLimit(ctx context.Context, ownerID string, microUSD int64) error

	Close() error
}
