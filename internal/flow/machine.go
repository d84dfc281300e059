package flow

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/payment"
	"github.com/conakrylabs/ticket-bot/internal/repository"
	"github.com/conakrylabs/ticket-bot/internal/session"
	"github.com/conakrylabs/ticket-bot/internal/ticket"
)

// Payments is the slice of the payment orchestrator the machine uses.
type Payments interface {
	Initiate(ctx context.Context, key session.Key, sess *model.Session) (*payment.Initiation, error)
	Confirm(ctx context.Context, key session.Key, sess *model.Session, reference string) (payment.Outcome, *payment.Status, error)
}

// Issuing is the slice of the ticket issuer the machine uses.
type Issuing interface {
	Issue(ctx context.Context, key session.Key, sess *model.Session, reference string, deliver ticket.Deliverer) ([]model.Ticket, error)
}

// TicketLister backs the "tickets" conversational command.
type TicketLister interface {
	ListByBuyer(ctx context.Context, channel, phone string) ([]model.Ticket, error)
}

// Conduit is the outbound half of a channel adapter: proactive text
// sends for background notifications plus voucher delivery.
type Conduit interface {
	ticket.Deliverer
	SendText(ctx context.Context, recipient, text string) error
}

// Machine drives one purchase conversation per (channel, user) key
// through init → choosingEvent → choosingCategory → choosingQuantity
// → confirming → awaitingPayment → paid → init. All processing for a
// key is serialized through a keyed mutex, so the machine itself
// holds no per-session locks. Inputs that do not match the expected
// pattern for the current step re-prompt without advancing state.
type Machine struct {
	catalog  Catalog
	store    session.Store
	locks    *session.KeyMutex
	payments Payments
	issuer   Issuing
	tickets  TicketLister
	renderer ticket.Renderer
	poller   *payment.Poller // optional, may be nil
}

// NewMachine constructs a Machine. poller may be nil to disable
// background verification; every other dependency is required.
func NewMachine(catalog Catalog, store session.Store, payments Payments, issuer Issuing, tickets TicketLister, renderer ticket.Renderer, poller *payment.Poller) *Machine {
	if catalog == nil || store == nil || payments == nil || issuer == nil || tickets == nil || renderer == nil {
		panic("nil dependency passed to NewMachine")
	}
	return &Machine{
		catalog:  catalog,
		store:    store,
		locks:    session.NewKeyMutex(),
		payments: payments,
		issuer:   issuer,
		tickets:  tickets,
		renderer: renderer,
		poller:   poller,
	}
}

// Handle processes one inbound input for the conversation identified
// by key and returns the reply to render. Errors never escape: they
// are logged and translated into user-facing retry messages, leaving
// the session in a state the user can continue from.
func (m *Machine) Handle(ctx context.Context, key session.Key, in Input, out Conduit) Reply {
	m.locks.Lock(key)
	defer m.locks.Unlock(key)

	sess, err := m.store.Get(ctx, key)
	if err != nil {
		log.Printf("flow: load session %s: %v", key.String(), err)
		return textReply(msgTransient)
	}
	if sess == nil {
		sess = &model.Session{Channel: key.Channel, UserID: key.UserID, Step: model.StepInit}
	}
	if in.UserName != "" {
		sess.UserName = in.UserName
	}

	switch in.Kind {
	case KindStart:
		return textReply(msgWelcome(sess.UserName))
	case KindHelp:
		return textReply(msgHelp)
	case KindCancel:
		return m.cancel(ctx, key, sess)
	case KindMyTickets:
		return m.listTickets(ctx, key)
	case KindShowTicket:
		return m.showTicket(ctx, key, in.Number, out)
	case KindMenu:
		return m.menu(ctx, key, sess)
	case KindNumber:
		return m.number(ctx, key, sess, in.Number)
	case KindConfirm:
		return m.confirm(ctx, key, sess, out)
	case KindVerify:
		return m.verify(ctx, key, sess, in.Reference, out)
	default:
		if sess.Step == model.StepInit {
			return textReply(msgWelcome(sess.UserName))
		}
		return textReply(rePrompt(sess.Step))
	}
}

// cancel aborts the purchase from any state. A minted but unconfirmed
// payment reference is simply abandoned; the gateway-side transaction
// expires on its own. Stock was never touched before confirmation, so
// nothing needs compensating.
func (m *Machine) cancel(ctx context.Context, key session.Key, sess *model.Session) Reply {
	if m.poller != nil {
		m.poller.Stop(key.String())
	}
	sess.Reset()
	if err := m.store.Set(ctx, key, sess); err != nil {
		log.Printf("flow: reset session %s: %v", key.String(), err)
	}
	return textReply(msgCancelled)
}

// menu lists events and opens a purchase. A second purchase attempt
// while one is active is rejected, not merged: the user must finish
// or cancel first.
func (m *Machine) menu(ctx context.Context, key session.Key, sess *model.Session) Reply {
	if sess.Step != model.StepInit {
		return textReply(msgPurchaseInProgress + "\n" + rePrompt(sess.Step))
	}
	events, err := m.catalog.ListEvents(ctx)
	if err != nil {
		log.Printf("flow: list events: %v", err)
		return textReply(msgTransient)
	}
	if len(events) == 0 {
		return textReply(msgNoEvents)
	}
	sess.Step = model.StepChoosingEvent
	if err := m.store.Set(ctx, key, sess); err != nil {
		log.Printf("flow: store session %s: %v", key.String(), err)
		return textReply(msgTransient)
	}
	return eventListReply(events)
}

// number dispatches a numeric selection according to the current step.
func (m *Machine) number(ctx context.Context, key session.Key, sess *model.Session, n int) Reply {
	switch sess.Step {
	case model.StepChoosingEvent:
		return m.chooseEvent(ctx, key, sess, uint64(n))
	case model.StepChoosingCategory:
		return m.chooseCategory(ctx, key, sess, n)
	case model.StepChoosingQuantity:
		return m.chooseQuantity(ctx, key, sess, n)
	case model.StepInit:
		return textReply(msgWelcome(sess.UserName))
	default:
		return textReply(rePrompt(sess.Step))
	}
}

func (m *Machine) chooseEvent(ctx context.Context, key session.Key, sess *model.Session, eventID uint64) Reply {
	ev, err := m.catalog.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return textReply(msgInvalidEvent)
		}
		log.Printf("flow: get event %d: %v", eventID, err)
		return textReply(msgTransient)
	}
	if len(ev.Categories) == 0 {
		return textReply(msgInvalidEvent)
	}
	sess.EventID = ev.ID
	sess.EventName = ev.Name
	sess.Step = model.StepChoosingCategory
	if err := m.store.Set(ctx, key, sess); err != nil {
		log.Printf("flow: store session %s: %v", key.String(), err)
		return textReply(msgTransient)
	}
	return categoryListReply(ev)
}

func (m *Machine) chooseCategory(ctx context.Context, key session.Key, sess *model.Session, pos int) Reply {
	ev, err := m.catalog.GetEvent(ctx, sess.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			// The event vanished mid-flow; terminate back to init.
			sess.Reset()
			_ = m.store.Set(ctx, key, sess)
			return textReply(msgEventGone)
		}
		log.Printf("flow: get event %d: %v", sess.EventID, err)
		return textReply(msgTransient)
	}
	cat := ev.CategoryAt(pos)
	if cat == nil {
		return textReply(msgInvalidCategory)
	}
	if cat.Remaining < 1 {
		return textReply(fmt.Sprintf(msgCategorySoldOut, cat.Name))
	}
	sess.CategoryPos = cat.Position
	sess.CategoryName = cat.Name
	sess.UnitPrice = cat.UnitPrice
	sess.Step = model.StepChoosingQuantity
	if err := m.store.Set(ctx, key, sess); err != nil {
		log.Printf("flow: store session %s: %v", key.String(), err)
		return textReply(msgTransient)
	}
	return quantityReply(cat)
}

func (m *Machine) chooseQuantity(ctx context.Context, key session.Key, sess *model.Session, n int) Reply {
	if n < 1 {
		return textReply(msgInvalidQuantity)
	}
	// Non-authoritative pre-check so obvious shortfalls are reported
	// before a payment link exists; the ledger re-checks at issuance.
	remaining, err := m.catalog.Remaining(ctx, sess.EventID, sess.CategoryName)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			sess.Reset()
			_ = m.store.Set(ctx, key, sess)
			return textReply(msgEventGone)
		}
		log.Printf("flow: remaining %d/%s: %v", sess.EventID, sess.CategoryName, err)
		return textReply(msgTransient)
	}
	if int32(n) > remaining {
		return textReply(fmt.Sprintf(msgShortfall, remaining))
	}
	sess.Quantity = uint32(n)
	sess.TotalPrice = sess.UnitPrice * uint64(n)
	sess.Step = model.StepConfirming
	if err := m.store.Set(ctx, key, sess); err != nil {
		log.Printf("flow: store session %s: %v", key.String(), err)
		return textReply(msgTransient)
	}
	return recapReply(sess)
}

// confirm moves confirming → awaitingPayment. It re-reads remaining
// stock first: seats can vanish between steps, and minting a payment
// link for an unfillable order would only waste the buyer's money.
func (m *Machine) confirm(ctx context.Context, key session.Key, sess *model.Session, out Conduit) Reply {
	if sess.Step != model.StepConfirming {
		if sess.Step == model.StepInit {
			return textReply(msgWelcome(sess.UserName))
		}
		return textReply(rePrompt(sess.Step))
	}
	remaining, err := m.catalog.Remaining(ctx, sess.EventID, sess.CategoryName)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			sess.Reset()
			_ = m.store.Set(ctx, key, sess)
			return textReply(msgEventGone)
		}
		log.Printf("flow: remaining %d/%s: %v", sess.EventID, sess.CategoryName, err)
		return textReply(msgTransient)
	}
	if int32(sess.Quantity) > remaining {
		// Stay in confirming and report the shortfall instead of
		// minting a reference.
		return textReply(fmt.Sprintf(msgShortfall, remaining))
	}
	init, err := m.payments.Initiate(ctx, key, sess)
	if err != nil {
		if errors.Is(err, payment.ErrGatewayUnavailable) {
			return textReply(msgGatewayDown)
		}
		log.Printf("flow: initiate payment %s: %v", key.String(), err)
		return textReply(msgTransient)
	}
	if m.poller != nil {
		reference := init.Reference
		m.poller.Start(key.String(), func(pctx context.Context) bool {
			return m.pollOnce(pctx, key, reference, out)
		})
	}
	return payReply(init)
}

// verify handles an explicit verification request. An empty reference
// (plain "verify" text) defaults to the session's own reference. A
// verify arriving after the purchase already closed is answered with
// the already-paid outcome when the reference matches issued tickets.
func (m *Machine) verify(ctx context.Context, key session.Key, sess *model.Session, reference string, out Conduit) Reply {
	if sess.Step != model.StepAwaitingPayment && sess.Step != model.StepPaid {
		if sess.Step == model.StepInit {
			return m.verifyClosed(ctx, key, sess, reference)
		}
		return textReply(rePrompt(sess.Step))
	}
	if reference == "" {
		reference = sess.PaymentReference
	}
	return m.confirmAndIssue(ctx, key, sess, reference, out)
}

// verifyClosed answers a verify that arrives with no purchase in
// flight. Stale "I have paid" taps and repeated verifies after
// issuance land here; if the reference matches a ticket the buyer
// already holds, they get the already-paid reply instead of a
// confusing "nothing to verify".
func (m *Machine) verifyClosed(ctx context.Context, key session.Key, sess *model.Session, reference string) Reply {
	if reference == "" {
		reference = sess.LastReference
	}
	if reference == "" {
		return textReply(msgNothingToVerify)
	}
	tickets, err := m.tickets.ListByBuyer(ctx, key.Channel, key.UserID)
	if err != nil {
		log.Printf("flow: list tickets %s: %v", key.String(), err)
		return textReply(msgNothingToVerify)
	}
	for _, t := range tickets {
		if t.PaymentReference == reference {
			return textReply(fmt.Sprintf(msgAlreadyPaid, reference))
		}
	}
	return textReply(msgNothingToVerify)
}

// confirmAndIssue runs the idempotent confirm path and, on a fresh
// success, the issuance pipeline. It is shared by manual verification
// and the background poller, so both honor the same contracts.
func (m *Machine) confirmAndIssue(ctx context.Context, key session.Key, sess *model.Session, reference string, out Conduit) Reply {
	outcome, status, err := m.payments.Confirm(ctx, key, sess, reference)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrReferenceMismatch):
			return textReply(msgBadReference)
		case errors.Is(err, payment.ErrGatewayUnavailable):
			return textReply(msgGatewayDown)
		default:
			log.Printf("flow: confirm %s: %v", reference, err)
			return textReply(msgTransient)
		}
	}
	switch outcome {
	case payment.OutcomeSuccess:
		tickets, err := m.issuer.Issue(ctx, key, sess, reference, out)
		if err != nil {
			if errors.Is(err, repository.ErrSoldOut) {
				// Stock vanished between link creation and payment.
				// No tickets are issued; the buyer keeps the reference
				// for support. No refund call exists on this gateway.
				if m.poller != nil {
					m.poller.Stop(key.String())
				}
				sess.Reset()
				_ = m.store.Set(ctx, key, sess)
				return textReply(fmt.Sprintf(msgSoldOutPaid, reference))
			}
			// Issuance failed before commit: the transaction rolled the
			// ledger back, so re-open the paid gate and let a retried
			// verify run issuance again.
			log.Printf("flow: issue %s: %v", reference, err)
			sess.Step = model.StepAwaitingPayment
			_ = m.store.Set(ctx, key, sess)
			return textReply(msgIssueRetry)
		}
		if m.poller != nil {
			m.poller.Stop(key.String())
		}
		return textReply(fmt.Sprintf(msgIssued, len(tickets), reference))
	case payment.OutcomeAlreadyConfirmed:
		if m.poller != nil {
			m.poller.Stop(key.String())
		}
		return textReply(fmt.Sprintf(msgAlreadyPaid, reference))
	case payment.OutcomePending:
		desc := ""
		if status != nil {
			desc = status.Description
		}
		return pendingReply(desc, reference)
	default:
		return failedReply(status, sess.PaymentURL, reference)
	}
}

// pollOnce is the background verification tick. It re-enters the
// machine under the per-key lock and reuses the same idempotent
// confirm path as a manual verify. It returns true when polling
// should stop: the session left awaiting_payment or the payment
// settled either way.
func (m *Machine) pollOnce(ctx context.Context, key session.Key, reference string, out Conduit) bool {
	m.locks.Lock(key)
	defer m.locks.Unlock(key)

	sess, err := m.store.Get(ctx, key)
	if err != nil {
		log.Printf("flow: poll load session %s: %v", key.String(), err)
		return false
	}
	if sess == nil || sess.Step != model.StepAwaitingPayment || sess.PaymentReference != reference {
		return true
	}
	outcome, _, err := m.payments.Confirm(ctx, key, sess, reference)
	if err != nil {
		// Transient by definition; keep polling within the budget.
		return false
	}
	switch outcome {
	case payment.OutcomeSuccess:
		tickets, err := m.issuer.Issue(ctx, key, sess, reference, out)
		if err != nil {
			if errors.Is(err, repository.ErrSoldOut) {
				sess.Reset()
				_ = m.store.Set(ctx, key, sess)
				m.notify(ctx, key.UserID, fmt.Sprintf(msgSoldOutPaid, reference), out)
				return true
			}
			log.Printf("flow: poll issue %s: %v", reference, err)
			sess.Step = model.StepAwaitingPayment
			_ = m.store.Set(ctx, key, sess)
			return false
		}
		m.notify(ctx, key.UserID, fmt.Sprintf(msgIssued, len(tickets), reference), out)
		return true
	case payment.OutcomeAlreadyConfirmed:
		return true
	default:
		return false
	}
}

func (m *Machine) notify(ctx context.Context, recipient, text string, out Conduit) {
	if err := out.SendText(ctx, recipient, text); err != nil {
		log.Printf("flow: notify %s: %v", recipient, err)
	}
}

// listTickets renders the buyer's purchase history for the "tickets"
// command.
func (m *Machine) listTickets(ctx context.Context, key session.Key) Reply {
	tickets, err := m.tickets.ListByBuyer(ctx, key.Channel, key.UserID)
	if err != nil {
		log.Printf("flow: list tickets %s: %v", key.String(), err)
		return textReply(msgTransient)
	}
	return ticketListReply(tickets)
}

// showTicket re-renders and re-delivers the n-th ticket from the
// buyer's history (1-based, newest first, same order as listTickets).
func (m *Machine) showTicket(ctx context.Context, key session.Key, n int, out Conduit) Reply {
	tickets, err := m.tickets.ListByBuyer(ctx, key.Channel, key.UserID)
	if err != nil {
		log.Printf("flow: list tickets %s: %v", key.String(), err)
		return textReply(msgTransient)
	}
	if n < 1 || n > len(tickets) {
		return textReply(msgTicketNotFound)
	}
	t := tickets[n-1]
	payload, err := m.renderer.Render(t)
	if err != nil {
		log.Printf("flow: render %s: %v", t.FormattedID, err)
		return textReply(msgTransient)
	}
	if err := out.DeliverTicket(ctx, key.UserID, t, payload, m.renderer.ContentType()); err != nil {
		log.Printf("flow: redeliver %s: %v", t.FormattedID, err)
		return textReply(msgTransient)
	}
	return textReply(fmt.Sprintf(msgTicketSent, t.FormattedID))
}
