package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/budgetgate/budgetcore/internal/credential"
	"github.com/budgetgate/budgetcore/internal/gate"
	"github.com/budgetgate/budgetcore/internal/identity"
	identitysqlite "github.com/budgetgate/budgetcore/internal/identity/sqlite"
	"github.com/budgetgate/budgetcore/internal/ledger"
	ledgersqlite "github.com/budgetgate/budgetcore/internal/ledger/sqlite"
	"github.com/budgetgate/budgetcore/internal/pricing"
	"github.com/budgetgate/budgetcore/internal/webauth"
)

type testServer struct {
	srv          *httptest.Server
	agentID      string
	ownerID      string
	leaseID      string
	credentialID string
}

func newTestServer(t *testing.T) testServer {
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

	g := gate.New(translator, ledgerStore, priceTable, nil, nil)
	webauthMgr, err := webauth.New("test-jwt-secret", time.Hour)
	require.NoError(t, err)
	server := New(idStore, ledgerStore, sealer, g, nil, webauthMgr, nil, zerolog.Nop())

	return testServer{
		srv:          httptest.NewServer(server.Router()),
		agentID:      agent.ID,
		ownerID:      user.ID,
		leaseID:      lease.ID,
		credentialID: devCred.ID,
	}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	defer ts.srv.Close()

	resp, err := http.Get(ts.srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmitReportFlow(t *testing.T) {
	ts := newTestServer(t)
	defer ts.srv.Close()

	resp := postJSON(t, ts.srv.URL+"/v1/admit", admitRequest{
		DeveloperCredentialID: ts.credentialID,
		LeaseID:               ts.leaseID,
		Model:                 "gpt-test",
		EstPromptTokens:       100,
		EstCompletionTokens:   100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var admitResp admitResponse
	decodeJSON(t, resp, &admitResp)
	require.NotEmpty(t, admitResp.ReservationID)
	require.Equal(t, "openai", admitResp.Provider)

	reportResp := postJSON(t, ts.srv.URL+"/v1/report", reportRequest{
		ReservationID:    admitResp.ReservationID,
		RequestID:        "req-1",
		Provider:         "openai",
		Model:            "gpt-test",
		PromptTokens:     100,
		CompletionTokens: 100,
	})
	require.Equal(t, http.StatusOK, reportResp.StatusCode)
	var ev ledger.UsageEvent
	decodeJSON(t, reportResp, &ev)
	require.Equal(t, admitResp.EstimatedMicroUSD, ev.CostMicroUSD)
}

func TestAdmitOverBudgetReturns402(t *testing.T) {
	ts := newTestServer(t)
	defer ts.srv.Close()

	resp := postJSON(t, ts.srv.URL+"/v1/admit", admitRequest{
		DeveloperCredentialID: ts.credentialID,
		LeaseID:               ts.leaseID,
		Model:                 "gpt-test",
		EstPromptTokens:       1_000_000,
		EstCompletionTokens:   1_000_000,
	})
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
}

func TestRefundEndpoint(t *testing.T) {
	ts := newTestServer(t)
	defer ts.srv.Close()

	resp := postJSON(t, ts.srv.URL+"/v1/admit", admitRequest{
		DeveloperCredentialID: ts.credentialID,
		LeaseID:               ts.leaseID,
		Model:                 "gpt-test",
		EstPromptTokens:       10,
		EstCompletionTokens:   10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var admitResp admitResponse
	decodeJSON(t, resp, &admitResp)

	refundResp := postJSON(t, ts.srv.URL+"/v1/refund", refundRequest{
		ReservationID: admitResp.ReservationID,
		AgentID:       ts.agentID,
	})
	require.Equal(t, http.StatusOK, refundResp.StatusCode)
}

func TestAdminLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	defer ts.srv.Close()

	challengeResp := postJSON(t, ts.srv.URL+"/v1/admin/login/challenge", loginChallengeRequest{Email: "admin@example.com"})
	require.Equal(t, http.StatusCreated, challengeResp.StatusCode)
	var challenge loginChallengeResponse
	decodeJSON(t, challengeResp, &challenge)
	require.NotEmpty(t, challenge.ChallengeID)

	// Unauthenticated whoami is rejected before a session exists.
	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/v1/admin/whoami", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Wrong code is rejected.
	verifyResp := postJSON(t, ts.srv.URL+"/v1/admin/login/verify", loginVerifyRequest{
		ChallengeID: challenge.ChallengeID,
		Code:        "000000",
	})
	require.Equal(t, http.StatusUnauthorized, verifyResp.StatusCode)
}
