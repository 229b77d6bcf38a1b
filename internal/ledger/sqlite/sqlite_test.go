package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// buildTree creates master -> provider -> project -> agent, with the
// restrictive cap living on the agent node.
func buildTree(t *testing.T, store *Store, agentMax int64) (*ledger.BudgetNode, *ledger.Lease) {
	t.Helper()
	ctx := context.Background()

	master, err := store.CreateBudgetNode(ctx, ledger.ScopeMaster, nil, 1_000_000_000, ledger.Informative)
	require.NoError(t, err)
	provider, err := store.CreateBudgetNode(ctx, ledger.ScopeProvider, &master.ID, 500_000_000, ledger.Informative)
	require.NoError(t, err)
	project, err := store.CreateBudgetNode(ctx, ledger.ScopeProject, &provider.ID, 100_000_000, ledger.Informative)
	require.NoError(t, err)
	agent, err := store.CreateBudgetNode(ctx, ledger.ScopeAgent, &project.ID, agentMax, ledger.Restrictive)
	require.NoError(t, err)

	lease, err := store.CreateLease(ctx, "agent_test", agent.ID, agentMax, 0)
	require.NoError(t, err)
	return agent, lease
}

func TestReserveCommitWalksUpTree(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	agent, lease := buildTree(t, store, 1000)

	resv, err := store.Reserve(ctx, lease.ID, 400)
	require.NoError(t, err)

	leased, err := store.GetLease(ctx, lease.ID)
	require.NoError(t, err)
	require.Equal(t, int64(400), leased.ReservedMicroUSD)

	node, err := store.GetBudgetNode(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, int64(400), node.SpentMicroUSD)

	ev, err := store.Commit(ctx, resv.ID, "req-1", "openai", 100, 50, 380)
	require.NoError(t, err)
	require.Equal(t, int64(380), ev.CostMicroUSD)

	leased, err = store.GetLease(ctx, lease.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), leased.ReservedMicroUSD)
	require.Equal(t, int64(380), leased.ConsumedMicroUSD)

	node, err = store.GetBudgetNode(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, int64(380), node.SpentMicroUSD)
}

func TestCommitIsIdempotentByRequestID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, lease := buildTree(t, store, 1000)

	resv, err := store.Reserve(ctx, lease.ID, 200)
	require.NoError(t, err)

	first, err := store.Commit(ctx, resv.ID, "req-dup", "openai", 10, 10, 200)
	require.NoError(t, err)

	// A second attempt to commit under the same request_id must
	// not double-charge: report the original event unchanged.
	second, err := store.Commit(ctx, resv.ID, "req-dup", "openai", 10, 10, 200)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	leased, err := store.GetLease(ctx, lease.ID)
	require.NoError(t, err)
	require.Equal(t, int64(200), leased.ConsumedMicroUSD)
}

func TestReserveDeniedOnRestrictiveNode(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, lease := buildTree(t, store, 100)

	_, err := store.Reserve(ctx, lease.ID, 101)
	require.Error(t, err)
	require.True(t, errors.Is(err, bcerrors.ErrBudgetExceeded))

	// A denial must not have mutated anything: the lease holds no reservation.
	leased, err := store.GetLease(ctx, lease.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), leased.ReservedMicroUSD)
}

func TestRefundReleasesReservation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	agent, lease := buildTree(t, store, 1000)

	resv, err := store.Reserve(ctx, lease.ID, 300)
	require.NoError(t, err)

	require.NoError(t, store.Refund(ctx, resv.ID))

	leased, err := store.GetLease(ctx, lease.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), leased.ReservedMicroUSD)
	require.Equal(t, int64(0), leased.ConsumedMicroUSD)

	node, err := store.GetBudgetNode(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), node.SpentMicroUSD)

	err = store.Refund(ctx, resv.ID)
	require.True(t, errors.Is(err, bcerrors.ErrConflict))
}

func TestCloseLeaseReturnsOutstandingReservation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	agent, lease := buildTree(t, store, 1000)

	_, err := store.Reserve(ctx, lease.ID, 250)
	require.NoError(t, err)

	require.NoError(t, store.CloseLease(ctx, lease.ID))

	node, err := store.GetBudgetNode(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), node.SpentMicroUSD)

	_, err = store.Reserve(ctx, lease.ID, 1)
	require.True(t, errors.Is(err, bcerrors.ErrLeaseClosed))
}

func TestUsageLimitTracksMonthlySpend(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	limit, err := store.GetOrCreateUsageLimit(ctx, "user_abc", 1_000_000, 0)
	require.NoError(t, err)
	require.Equal(t, int64(0), limit.CurrentCostMicroUSDThisMonth)

	require.NoError(t, store.IncrementUsageLimit(ctx, "user_abc", 400))
	got, err := store.GetOrCreateUsageLimit(ctx, "user_abc", 1_000_000, 0)
	require.NoError(t, err)
	require.Equal(t, int64(400), got.CurrentCostMicroUSDThisMonth)
}
