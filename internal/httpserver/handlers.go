package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/credential"
	"github.com/budgetgate/budgetcore/internal/ledger"
)

const defaultCredentialTTL = 24 * time.Hour

type createAgentRequest struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "decode body: %v", err))
		return
	}
	agent, err := s.identity.CreateAgent(r.Context(), req.OwnerID, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.identity.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

type mintCredentialRequest struct {
	OwnerID string `json:"owner_id"`
	TTLMs   int64  `json:"ttl_ms"`
}

type mintCredentialResponse struct {
	CredentialID string `json:"credential_id"`
	ExpiresAtMs  int64  `json:"expires_at_ms"`
}

func (s *Server) handleMintCredential(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	var req mintCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "decode body: %v", err))
		return
	}
	ttl := defaultCredentialTTL
	if req.TTLMs > 0 {
		ttl = time.Duration(req.TTLMs) * time.Millisecond
	}
	translator := credential.New(s.identity, s.sealer)
	cred, err := translator.Mint(r.Context(), agentID, req.OwnerID, ttl)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, mintCredentialResponse{CredentialID: cred.ID, ExpiresAtMs: cred.ExpiresAtMs})
}

type createBudgetNodeRequest struct {
	Scope       ledger.Scope       `json:"scope"`
	ParentID    *string            `json:"parent_id"`
	MaxMicroUSD int64              `json:"max_micro_usd"`
	Enforcement ledger.Enforcement `json:"enforcement"`
}

func (s *Server) handleCreateBudgetNode(w http.ResponseWriter, r *http.Request) {
	var req createBudgetNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "decode body: %v", err))
		return
	}
	node, err := s.ledger.CreateBudgetNode(r.Context(), req.Scope, req.ParentID, req.MaxMicroUSD, req.Enforcement)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, node)
}

type createLeaseRequest struct {
	AgentID                  string `json:"agent_id"`
	BudgetNodeID             string `json:"budget_node_id"`
	GrantedMicroUSD          int64  `json:"granted_micro_usd"`
	RefreshWatermarkMicroUSD int64  `json:"refresh_watermark_micro_usd"`
}

func (s *Server) handleCreateLease(w http.ResponseWriter, r *http.Request) {
	var req createLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "decode body: %v", err))
		return
	}
	lease, err := s.ledger.CreateLease(r.Context(), req.AgentID, req.BudgetNodeID, req.GrantedMicroUSD, req.RefreshWatermarkMicroUSD)
	if err != nil {
		respondError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.LeasesInFlight.Inc()
	}
	respondJSON(w, http.StatusCreated, lease)
}

func (s *Server) handleGetLease(w http.ResponseWriter, r *http.Request) {
	lease, err := s.ledger.GetLease(r.Context(), chi.URLParam(r, "leaseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, lease)
}

func (s *Server) handleCloseLease(w http.ResponseWriter, r *http.Request) {
	leaseID := chi.URLParam(r, "leaseID")
	if err := s.ledger.CloseLease(r.Context(), leaseID); err != nil {
		respondError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.LeasesInFlight.Dec()
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

type admitRequest struct {
	DeveloperCredentialID string `json:"developer_credential_id"`
	LeaseID               string `json:"lease_id"`
	Model                 string `json:"model"`
	EstPromptTokens       int64  `json:"est_prompt_tokens"`
	EstCompletionTokens   int64  `json:"est_completion_tokens"`
}

type admitResponse struct {
	ReservationID     string `json:"reservation_id"`
	Provider          string `json:"provider"`
	EstimatedMicroUSD int64  `json:"estimated_micro_usd"`
}

func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "decode body: %v", err))
		return
	}
	result, err := s.gate.Admit(r.Context(), req.DeveloperCredentialID, req.LeaseID, req.Model, req.EstPromptTokens, req.EstCompletionTokens)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, admitResponse{
		ReservationID:     result.Reservation.ID,
		Provider:          result.Translation.Provider,
		EstimatedMicroUSD: result.EstimatedMicroUSD,
	})
}

type reportRequest struct {
	ReservationID    string `json:"reservation_id"`
	RequestID        string `json:"request_id"`
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	PromptTokens     int64  `json:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "decode body: %v", err))
		return
	}
	event, err := s.gate.Report(r.Context(), req.ReservationID, req.RequestID, req.Provider, req.Model, req.PromptTokens, req.CompletionTokens)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

type refundRequest struct {
	ReservationID string `json:"reservation_id"`
	AgentID       string `json:"agent_id"`
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "decode body: %v", err))
		return
	}
	if err := s.gate.Refund(r.Context(), req.ReservationID, req.AgentID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "refunded"})
}

type loginChallengeRequest struct {
	Email string `json:"email"`
}

type loginChallengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

// handleLoginChallenge issues a verification code for an admin login. The
// response carries only the challenge id and expiry; the code itself is
// neither returned here nor emailed out, since this codebase has no mail
// transport wired in.
func (s *Server) handleLoginChallenge(w http.ResponseWriter, r *http.Request) {
	var req loginChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "decode body: %v", err))
		return
	}
	id, _, expires, err := s.webauth.CreateChallenge(req.Email)
	if err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "%v", err))
		return
	}
	respondJSON(w, http.StatusCreated, loginChallengeResponse{ChallengeID: id, ExpiresAtMs: expires.UnixMilli()})
}

type loginVerifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type loginVerifyResponse struct {
	SessionToken string `json:"session_token"`
}

func (s *Server) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	var req loginVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "decode body: %v", err))
		return
	}
	email, err := s.webauth.VerifyChallenge(req.ChallengeID, req.Code)
	if err != nil {
		respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidCredential, "%v", err))
		return
	}
	token, err := s.webauth.IssueSession(email)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, loginVerifyResponse{SessionToken: token})
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"email": sessionEmailFromContext(r.Context())})
}

