// Package httpserver exposes the budget control core's admission path over
// HTTP: agent/lease management backed by the identity and ledger stores,
// and the admit/report/refund endpoints that drive the request gate.
// Handlers are lowercase handleX methods on Server, registered directly on
// the chi router, and answer through the respondJSON/respondError pair.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/gate"
	"github.com/budgetgate/budgetcore/internal/health"
	"github.com/budgetgate/budgetcore/internal/identity"
	"github.com/budgetgate/budgetcore/internal/ledger"
	"github.com/budgetgate/budgetcore/internal/metrics"
	"github.com/budgetgate/budgetcore/internal/webauth"
)

// Server wires the identity store, ledger store and request gate behind a
// chi router.
type Server struct {
	identity identity.Store
	ledger   ledger.Store
	sealer   *identity.Sealer
	gate     *gate.Gate
	metrics  *metrics.Collector
	webauth  *webauth.Manager
	health   *health.Checker
	log      zerolog.Logger
}

// New builds a Server. metrics may be nil to disable the /metrics route.
// webauthMgr may be nil to disable the admin login/session routes. checker
// may be nil, in which case /healthz reports a bare liveness "ok" instead of
// checking store connectivity.
func New(identityStore identity.Store, ledgerStore ledger.Store, sealer *identity.Sealer, g *gate.Gate, collector *metrics.Collector, webauthMgr *webauth.Manager, checker *health.Checker, log zerolog.Logger) *Server {
	return &Server{identity: identityStore, ledger: ledgerStore, sealer: sealer, gate: g, metrics: collector, webauth: webauthMgr, health: checker, log: log}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/agents", s.handleCreateAgent)
		r.Get("/agents/{agentID}", s.handleGetAgent)
		r.Post("/agents/{agentID}/credentials", s.handleMintCredential)

		r.Post("/budget-nodes", s.handleCreateBudgetNode)
		r.Post("/leases", s.handleCreateLease)
		r.Get("/leases/{leaseID}", s.handleGetLease)
		r.Post("/leases/{leaseID}/close", s.handleCloseLease)

		r.Post("/admit", s.handleAdmit)
		r.Post("/report", s.handleReport)
		r.Post("/refund", s.handleRefund)

		if s.webauth != nil {
			r.Post("/admin/login/challenge", s.handleLoginChallenge)
			r.Post("/admin/login/verify", s.handleLoginVerify)
			r.With(s.requireSession).Get("/admin/whoami", s.handleWhoami)
		}
	})

	return r
}

// requireSession rejects requests lacking a valid "Bearer <session token>"
// Authorization header, stashing the authenticated email in the request
// context under sessionEmailKey.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(authz) <= len(prefix) || authz[:len(prefix)] != prefix {
			respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidCredential, "missing bearer session token"))
			return
		}
		email, err := s.webauth.ValidateSession(authz[len(prefix):])
		if err != nil {
			respondError(w, bcerrors.Wrap(bcerrors.ErrInvalidCredential, "session: %v", err))
			return
		}
		ctx := contextWithSessionEmail(r.Context(), email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(r.URL.Path, r.Method).Inc()
			s.metrics.RequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
			if ww.Status() >= 400 {
				s.metrics.RequestErrors.WithLabelValues(r.URL.Path, http.StatusText(ww.Status())).Inc()
			}
		}
		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).Msg("http request")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	result := s.health.Check(r.Context())
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, result)
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondError maps the bcerrors taxonomy to an HTTP status code. A prior
// authorization denial has already distinguished 403 from 404 by the time
// an error reaches here; this layer only translates the sentinel.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errIs(err, bcerrors.ErrNotFound), errIs(err, bcerrors.ErrLeaseNotFound):
		status = http.StatusNotFound
	case errIs(err, bcerrors.ErrForbidden):
		status = http.StatusForbidden
	case errIs(err, bcerrors.ErrInvalidCredential), errIs(err, bcerrors.ErrCredentialExpired),
		errIs(err, bcerrors.ErrCredentialRevoked), errIs(err, bcerrors.ErrCredentialSealBroken),
		errIs(err, bcerrors.ErrCredentialBindingMismatch), errIs(err, bcerrors.ErrInvalidAgentID):
		status = http.StatusUnauthorized
	case errIs(err, bcerrors.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errIs(err, bcerrors.ErrBudgetExceeded), errIs(err, bcerrors.ErrQuotaExceeded):
		status = http.StatusPaymentRequired
	case errIs(err, bcerrors.ErrLeaseClosed), errIs(err, bcerrors.ErrConflict):
		status = http.StatusConflict
	case errIs(err, bcerrors.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

type sessionEmailKeyType struct{}

var sessionEmailKey sessionEmailKeyType

func contextWithSessionEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, sessionEmailKey, email)
}

func sessionEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(sessionEmailKey).(string)
	return email
}

func errIs(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
