package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/credential"
	"github.com/budgetgate/budgetcore/internal/identity"
	identitysqlite "github.com/budgetgate/budgetcore/internal/identity/sqlite"
	"github.com/budgetgate/budgetcore/internal/ledger"
	ledgersqlite "github.com/budgetgate/budgetcore/internal/ledger/sqlite"
	"github.com/budgetgate/budgetcore/internal/pricing"
)

type fixture struct {
	gate         *Gate
	agentID      string
	ownerID      string
	leaseID      string
	credentialID string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	idStore, err := identitysqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idStore.Close() })

	sealer, err := identity.NewSealer("test-master-key-0123456789abcdef")
	require.NoError(t, err)

	user, err := idStore.CreateUser(ctx, "owner@example.com", "hash", identity.RoleNormal)
	require.NoError(t, err)
	agent, err := idStore.CreateAgent(ctx, user.ID, "test-agent")
	require.NoError(t, err)

	translator := credential.New(idStore, sealer)
	devCred, err := translator.Mint(ctx, agent.ID, user.ID, time.Hour)
	require.NoError(t, err)

	plaintextKey := []byte("sk-upstream-test-key")
	ciphertext, nonce, err := sealer.Seal(plaintextKey)
	require.NoError(t, err)
	_, err = idStore.CreateUpstreamCredential(ctx, user.ID, "openai", ciphertext, nonce)
	require.NoError(t, err)

	ledgerStore, err := ledgersqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledgerStore.Close() })

	master, err := ledgerStore.CreateBudgetNode(ctx, ledger.ScopeMaster, nil, 1_000_000_000, ledger.Informative)
	require.NoError(t, err)
	agentNode, err := ledgerStore.CreateBudgetNode(ctx, ledger.ScopeAgent, &master.ID, 10_000, ledger.Restrictive)
	require.NoError(t, err)
	lease, err := ledgerStore.CreateLease(ctx, agent.ID, agentNode.ID, 10_000, 0)
	require.NoError(t, err)

	priceTable := pricing.NewStore()
	priceTable.LoadEntries([]pricing.Entry{
		{Model: "gpt-test", Provider: "openai", PromptMicroUSDPer1K: 1000, CompletionMicroUSDPer1K: 2000},
	})

	g := New(translator, ledgerStore, priceTable, nil, nil)

	return fixture{gate: g, agentID: agent.ID, ownerID: user.ID, leaseID: lease.ID, credentialID: devCred.ID}
}

func TestAdmitAndReportHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.gate.Admit(ctx, f.credentialID, f.leaseID, "gpt-test", 100, 100)
	require.NoError(t, err)
	require.Equal(t, f.agentID, result.Translation.AgentID)
	require.Greater(t, result.EstimatedMicroUSD, int64(0))

	ev, err := f.gate.Report(ctx, result.Reservation.ID, "req-1", "openai", "gpt-test", 100, 100)
	require.NoError(t, err)
	require.Equal(t, result.EstimatedMicroUSD, ev.CostMicroUSD)
}

func TestAdmitDeniesWhenLeaseBelongsToAnotherAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledgerStore := f.gate.Ledger
	master, err := ledgerStore.CreateBudgetNode(ctx, ledger.ScopeMaster, nil, 1_000_000_000, ledger.Informative)
	require.NoError(t, err)
	otherNode, err := ledgerStore.CreateBudgetNode(ctx, ledger.ScopeAgent, &master.ID, 10_000, ledger.Restrictive)
	require.NoError(t, err)
	otherLease, err := ledgerStore.CreateLease(ctx, "agent_someone_else", otherNode.ID, 10_000, 0)
	require.NoError(t, err)

	_, err = f.gate.Admit(ctx, f.credentialID, otherLease.ID, "gpt-test", 10, 10)
	require.True(t, errors.Is(err, bcerrors.ErrForbidden))
}

func TestAdmitDeniedOverBudgetLeavesLeaseUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gate.Admit(ctx, f.credentialID, f.leaseID, "gpt-test", 1_000_000, 1_000_000)
	require.True(t, errors.Is(err, bcerrors.ErrBudgetExceeded))

	lease, err := f.gate.Ledger.GetLease(ctx, f.leaseID)
	require.NoError(t, err)
	require.Equal(t, int64(0), lease.ReservedMicroUSD)
}

func TestRefundReleasesHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.gate.Admit(ctx, f.credentialID, f.leaseID, "gpt-test", 10, 10)
	require.NoError(t, err)

	require.NoError(t, f.gate.Refund(ctx, result.Reservation.ID, f.agentID))

	lease, err := f.gate.Ledger.GetLease(ctx, f.leaseID)
	require.NoError(t, err)
	require.Equal(t, int64(0), lease.ReservedMicroUSD)
}
