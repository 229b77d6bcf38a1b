// Package gate implements the request gate: the single entry point every
// inbound model call passes through before and after being forwarded
// upstream. Admit runs credential translation, the ownership check, and a
// budget reservation in that order; Report and Refund settle the
// reservation Admit opened once the forward call has returned or failed.
package gate

import (
	"context"
	"fmt"

	"github.com/budgetgate/budgetcore/internal/authz"
	"github.com/budgetgate/budgetcore/internal/bcerrors"
	"github.com/budgetgate/budgetcore/internal/credential"
	"github.com/budgetgate/budgetcore/internal/hooks"
	"github.com/budgetgate/budgetcore/internal/ledger"
	"github.com/budgetgate/budgetcore/internal/metrics"
	"github.com/budgetgate/budgetcore/internal/pricing"
)

// EventType aliases hooks.EventType so callers of this package never need
// to import hooks directly. The concrete event names live in hooks.
type EventType = hooks.EventType

const (
	EventLeaseReserved = hooks.EventLeaseReserved
	EventLeaseDenied   = hooks.EventLeaseDenied
	EventUsageReported = hooks.EventUsageReported
	EventLeaseRefunded = hooks.EventLeaseRefunded
)

// AdmitResult is what Admit hands back to the HTTP boundary so it can
// forward the call upstream and later report its outcome.
type AdmitResult struct {
	Translation       credential.Translation
	Reservation       *ledger.Reservation
	EstimatedMicroUSD int64
}

// Gate ties credential translation, authorization and the ledger together
// around a pricing table and an event dispatcher for audit/overage
// observability.
type Gate struct {
	Translator *credential.Translator
	Ledger     ledger.Store
	Pricing    *pricing.Store
	Hooks      *hooks.Dispatcher
	Metrics    *metrics.Collector
}

// New builds a Gate. hooksDispatcher and collector may be nil; Admit/Report
// skip emission when they are.
func New(translator *credential.Translator, store ledger.Store, priceTable *pricing.Store, hooksDispatcher *hooks.Dispatcher, collector *metrics.Collector) *Gate {
	return &Gate{Translator: translator, Ledger: store, Pricing: priceTable, Hooks: hooksDispatcher, Metrics: collector}
}

// Admit validates developerCredentialID, checks that leaseID belongs to the
// credential's agent, prices the estimated call, and reserves that estimate
// against the lease and its ancestor budget nodes. A denial at any step
// leaves the lease and budget tree untouched.
func (g *Gate) Admit(ctx context.Context, developerCredentialID, leaseID, model string, estPromptTokens, estCompletionTokens int64) (*AdmitResult, error) {
	translation, err := g.Translator.Translate(ctx, developerCredentialID)
	if err != nil {
		return nil, err
	}

	lease, err := g.Ledger.GetLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(authz.Principal{UserID: translation.AgentID}, lease.AgentID); err != nil {
		return nil, err
	}

	estimateMicroUSD, ok := g.Pricing.Cost(model, estPromptTokens, estCompletionTokens)
	if !ok {
		return nil, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "no price entry for model %q", model)
	}

	reservation, err := g.Ledger.Reserve(ctx, leaseID, estimateMicroUSD)
	if err != nil {
		g.emit(ctx, EventLeaseDenied, lease.AgentID, map[string]any{"lease_id": leaseID, "model": model, "estimate_micro_usd": estimateMicroUSD})
		if g.Metrics != nil {
			g.Metrics.LeaseReservations.WithLabelValues("denied").Inc()
		}
		return nil, err
	}
	g.emit(ctx, EventLeaseReserved, lease.AgentID, map[string]any{"lease_id": leaseID, "reservation_id": reservation.ID, "estimate_micro_usd": estimateMicroUSD})

	if g.Metrics != nil {
		g.Metrics.LeaseReservations.WithLabelValues("admitted").Inc()
		g.Metrics.CreditsReserved.Add(float64(estimateMicroUSD))
	}
	return &AdmitResult{Translation: translation, Reservation: reservation, EstimatedMicroUSD: estimateMicroUSD}, nil
}

// Report settles a reservation with the upstream call's actual token usage,
// pricing the real cost and appending an idempotent usage event keyed by
// requestID.
func (g *Gate) Report(ctx context.Context, reservationID, requestID, provider, model string, promptTokens, completionTokens int64) (*ledger.UsageEvent, error) {
	actualMicroUSD, ok := g.Pricing.Cost(model, promptTokens, completionTokens)
	if !ok {
		return nil, bcerrors.Wrap(bcerrors.ErrInvalidArgument, "no price entry for model %q", model)
	}
	ev, err := g.Ledger.Commit(ctx, reservationID, requestID, provider, promptTokens, completionTokens, actualMicroUSD)
	if err != nil {
		return nil, fmt.Errorf("gate: report: %w", err)
	}
	g.emit(ctx, EventUsageReported, ev.AgentID, map[string]any{"request_id": requestID, "cost_micro_usd": ev.CostMicroUSD})
	if g.Metrics != nil {
		g.Metrics.CreditsCommitted.Add(float64(ev.CostMicroUSD))
	}
	return ev, nil
}

// Refund releases a reservation when the forward call failed before
// producing a billable response.
func (g *Gate) Refund(ctx context.Context, reservationID, agentID string) error {
	if err := g.Ledger.Refund(ctx, reservationID); err != nil {
		return err
	}
	g.emit(ctx, EventLeaseRefunded, agentID, map[string]any{"reservation_id": reservationID})
	if g.Metrics != nil {
		g.Metrics.CreditsRefunded.Inc()
	}
	return nil
}

func (g *Gate) emit(ctx context.Context, eventType EventType, agentID string, metadata map[string]any) {
	if g.Hooks == nil {
		return
	}
	_ = g.Hooks.Emit(ctx, hooks.Event{
		Type:     eventType,
		ActorID:  agentID,
		UserID:   agentID,
		Metadata: metadata,
	})
}
