package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/session"
)

// Outcome classifies the result of a payment confirmation attempt.
type Outcome int

const (
	// OutcomePending means the gateway has not settled the payment yet;
	// the session stays in awaiting_payment.
	OutcomePending Outcome = iota
	// OutcomeSuccess means the payment settled now and the session has
	// just been marked paid; the caller must run issuance exactly once.
	OutcomeSuccess
	// OutcomeAlreadyConfirmed means this reference was confirmed
	// before; the caller must not re-run issuance or touch stock.
	OutcomeAlreadyConfirmed
	// OutcomeFailed means the gateway reported a non-success,
	// non-pending status.
	OutcomeFailed
)

// ErrReferenceMismatch is returned when a confirmation names a
// reference other than the one stored on the session. This blocks
// replayed or confused verification signals from foreign references.
var ErrReferenceMismatch = errors.New("payment reference does not match session")

// ticketProbe is the slice of the ticket repository the orchestrator
// needs for its secondary idempotency check.
type ticketProbe interface {
	ExistByReference(ctx context.Context, reference string) (bool, error)
}

// Orchestrator mints references, requests payment links and verifies
// payment status. Its Confirm path owns the idempotency contract: a
// session already observed as paid for a reference short-circuits to
// OutcomeAlreadyConfirmed, so an at-least-once "payment confirmed"
// signal can never issue tickets twice or decrement stock twice.
type Orchestrator struct {
	gateway Gateway
	store   session.Store
	tickets ticketProbe // optional, may be nil
}

// NewOrchestrator constructs an Orchestrator. The ticket probe may be
// nil; when present it adds a persisted-tickets check on top of the
// step=paid guard.
func NewOrchestrator(gateway Gateway, store session.Store, tickets ticketProbe) *Orchestrator {
	if gateway == nil || store == nil {
		panic("nil dependency passed to NewOrchestrator")
	}
	return &Orchestrator{gateway: gateway, store: store, tickets: tickets}
}

// Initiation is what Initiate hands back for display to the buyer.
type Initiation struct {
	Reference       string
	PayURL          string
	AmountFormatted string
}

// Initiate mints a fresh reference, requests a payment link for the
// session's total and transitions the session to awaiting_payment.
// Stock is not touched here: seats are reserved only once payment is
// confirmed, so a buyer who never pays cannot block them. On gateway
// failure the session is left unchanged so the user can retry.
func (o *Orchestrator) Initiate(ctx context.Context, key session.Key, sess *model.Session) (*Initiation, error) {
	reference, err := NewReference(time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("mint reference: %w", err)
	}
	description := fmt.Sprintf("Purchase of %d ticket(s) for %s - %s",
		sess.Quantity, sess.EventName, sess.CategoryName)
	link, err := o.gateway.CreateLink(ctx, sess.TotalPrice, description, reference)
	if err != nil {
		return nil, err
	}
	sess.PaymentReference = reference
	sess.PaymentURL = link.PayURL
	sess.Step = model.StepAwaitingPayment
	if err := o.store.Set(ctx, key, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &Initiation{
		Reference:       reference,
		PayURL:          link.PayURL,
		AmountFormatted: link.AmountFormatted,
	}, nil
}

// Confirm verifies the payment bound to reference. It rejects
// references that do not match the session, maps the gateway's status
// vocabulary onto an Outcome, and on success marks the session paid
// and persists it BEFORE returning, so a concurrent duplicate signal
// observes the paid step and short-circuits. Issuance itself is the
// caller's job and must run only on OutcomeSuccess.
func (o *Orchestrator) Confirm(ctx context.Context, key session.Key, sess *model.Session, reference string) (Outcome, *Status, error) {
	if sess.PaymentReference == "" || sess.PaymentReference != reference {
		return OutcomeFailed, nil, ErrReferenceMismatch
	}
	if sess.Step == model.StepPaid {
		return OutcomeAlreadyConfirmed, nil, nil
	}
	if o.tickets != nil {
		issued, err := o.tickets.ExistByReference(ctx, reference)
		if err != nil {
			log.Printf("payment: ticket probe failed for %s: %v", reference, err)
		} else if issued {
			return OutcomeAlreadyConfirmed, nil, nil
		}
	}
	status, err := o.gateway.GetStatus(ctx, reference)
	if err != nil {
		return OutcomeFailed, nil, err
	}
	switch classify(status.Status) {
	case OutcomeSuccess:
		sess.Step = model.StepPaid
		if err := o.store.Set(ctx, key, sess); err != nil {
			// The paid marker could not be persisted; report the
			// transient failure rather than risking double issuance
			// from a retried signal racing an unpersisted step.
			return OutcomeFailed, status, fmt.Errorf("store session: %w", err)
		}
		return OutcomeSuccess, status, nil
	case OutcomePending:
		return OutcomePending, status, nil
	default:
		return OutcomeFailed, status, nil
	}
}

// classify maps the gateway's status vocabulary onto an Outcome.
// Success synonyms and pending synonyms are matched case-insensitively;
// anything else is a failure.
func classify(raw string) Outcome {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "completed", "paid":
		return OutcomeSuccess
	case "pending", "processing", "initiated":
		return OutcomePending
	default:
		return OutcomeFailed
	}
}
