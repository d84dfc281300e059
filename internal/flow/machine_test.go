package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/payment"
	"github.com/conakrylabs/ticket-bot/internal/repository"
	"github.com/conakrylabs/ticket-bot/internal/session"
	"github.com/conakrylabs/ticket-bot/internal/ticket"
)

// fakeCatalog serves a fixed event list from memory.
type fakeCatalog struct {
	events []model.Event
}

func (f *fakeCatalog) ListEvents(ctx context.Context) ([]model.Event, error) {
	return f.events, nil
}

func (f *fakeCatalog) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	for i := range f.events {
		if f.events[i].ID == id {
			return &f.events[i], nil
		}
	}
	return nil, repository.ErrEventNotFound
}

func (f *fakeCatalog) Remaining(ctx context.Context, eventID uint64, category string) (int32, error) {
	ev, err := f.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	for _, cat := range ev.Categories {
		if cat.Name == category {
			return cat.Remaining, nil
		}
	}
	return 0, repository.ErrCategoryNotFound
}

func (f *fakeCatalog) take(eventID uint64, category string, n int32) {
	for i := range f.events {
		if f.events[i].ID != eventID {
			continue
		}
		for j := range f.events[i].Categories {
			if f.events[i].Categories[j].Name == category {
				f.events[i].Categories[j].Remaining -= n
			}
		}
	}
}

// fakeGateway drives the real orchestrator from the tests.
type fakeGateway struct{ status string }

func (f *fakeGateway) CreateLink(ctx context.Context, amount uint64, description, reference string) (*payment.Link, error) {
	return &payment.Link{PayURL: "https://pay.example/p/" + reference, AmountFormatted: fmt.Sprintf("%d GNF", amount)}, nil
}

func (f *fakeGateway) GetStatus(ctx context.Context, reference string) (*payment.Status, error) {
	return &payment.Status{Status: f.status}, nil
}

// fakeIssuer mimics the real issuer's session contract: reset on
// success, leave resolution to the caller on failure.
type fakeIssuer struct {
	catalog  *fakeCatalog
	store    session.Store
	lister   *fakeLister
	calls    int
	failWith error
	failOnce bool
}

func (f *fakeIssuer) Issue(ctx context.Context, key session.Key, sess *model.Session, reference string, deliver ticket.Deliverer) ([]model.Ticket, error) {
	f.calls++
	if f.failWith != nil {
		err := f.failWith
		if f.failOnce {
			f.failWith = nil
		}
		return nil, err
	}
	f.catalog.take(sess.EventID, sess.CategoryName, int32(sess.Quantity))
	tickets := make([]model.Ticket, 0, sess.Quantity)
	for n := uint32(0); n < sess.Quantity; n++ {
		t := model.Ticket{
			EventID:          sess.EventID,
			EventName:        sess.EventName,
			CategoryName:     sess.CategoryName,
			FormattedID:      ticket.FormatID(sess.EventID, sess.CategoryPos, n+1),
			PaymentReference: reference,
		}
		_ = deliver.DeliverTicket(ctx, sess.UserID, t, []byte("voucher"), "text/plain")
		tickets = append(tickets, t)
	}
	f.lister.tickets = append(f.lister.tickets, tickets...)
	sess.Reset()
	_ = f.store.Set(ctx, key, sess)
	return tickets, nil
}

type fakeLister struct{ tickets []model.Ticket }

func (f *fakeLister) ListByBuyer(ctx context.Context, channel, phone string) ([]model.Ticket, error) {
	return f.tickets, nil
}

type fakeConduit struct {
	texts     []string
	delivered []model.Ticket
}

func (f *fakeConduit) SendText(ctx context.Context, recipient, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeConduit) DeliverTicket(ctx context.Context, recipient string, t model.Ticket, payload []byte, contentType string) error {
	f.delivered = append(f.delivered, t)
	return nil
}

type fixture struct {
	machine *Machine
	catalog *fakeCatalog
	gateway *fakeGateway
	issuer  *fakeIssuer
	lister  *fakeLister
	store   session.Store
	out     *fakeConduit
	key     session.Key
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog := &fakeCatalog{events: []model.Event{
		{
			ID: 1, Name: "Festival Conakry", Date: "2025-04-12", Organizer: "Kaloum Prod", Location: "Stade du 28 Septembre",
			Categories: []model.Category{
				{Position: 1, Name: "Standard", UnitPrice: 50000, Remaining: 10},
				{Position: 2, Name: "VIP", UnitPrice: 150000, Remaining: 1},
				{Position: 3, Name: "Gold", UnitPrice: 300000, Remaining: 0},
			},
		},
		{ID: 2, Name: "Concert Ratoma", Date: "2025-05-01", Organizer: "RTG", Location: "Palais du Peuple",
			Categories: []model.Category{{Position: 1, Name: "Unique", UnitPrice: 25000, Remaining: 100}}},
	}}
	store := session.NewMemoryStore(0)
	gateway := &fakeGateway{status: "pending"}
	orchestrator := payment.NewOrchestrator(gateway, store, nil)
	lister := &fakeLister{}
	issuer := &fakeIssuer{catalog: catalog, store: store, lister: lister}
	machine := NewMachine(catalog, store, orchestrator, issuer, lister, ticket.TextRenderer{}, nil)
	return &fixture{
		machine: machine,
		catalog: catalog,
		gateway: gateway,
		issuer:  issuer,
		lister:  lister,
		store:   store,
		out:     &fakeConduit{},
		key:     session.Key{Channel: "telegram", UserID: "42"},
	}
}

func (f *fixture) send(t *testing.T, text string) Reply {
	t.Helper()
	return f.machine.Handle(context.Background(), f.key, ParseText(text), f.out)
}

func (f *fixture) step(t *testing.T) model.Step {
	t.Helper()
	sess, err := f.store.Get(context.Background(), f.key)
	require.NoError(t, err)
	if sess == nil {
		return model.StepInit
	}
	return sess.Step
}

func (f *fixture) driveToConfirming(t *testing.T, quantity string) {
	t.Helper()
	f.send(t, "menu")
	f.send(t, "1")
	f.send(t, "1") // Standard
	reply := f.send(t, quantity)
	require.Contains(t, reply.Text, "Total")
	require.Equal(t, model.StepConfirming, f.step(t))
}

func TestFullPurchaseFlow(t *testing.T) {
	f := newFixture(t)

	reply := f.send(t, "menu")
	assert.Contains(t, reply.Text, "Festival Conakry")
	assert.Equal(t, model.StepChoosingEvent, f.step(t))

	reply = f.send(t, "1")
	assert.Contains(t, reply.Text, "VIP")
	assert.Contains(t, reply.Text, "(sold out)")
	assert.Equal(t, model.StepChoosingCategory, f.step(t))

	reply = f.send(t, "1")
	assert.Contains(t, reply.Text, "How many tickets")
	assert.Equal(t, model.StepChoosingQuantity, f.step(t))

	reply = f.send(t, "2")
	assert.Contains(t, reply.Text, "Quantity: 2")
	assert.Contains(t, reply.Text, "100000 GNF")
	assert.Equal(t, model.StepConfirming, f.step(t))

	reply = f.send(t, "oui")
	assert.Contains(t, reply.Text, "https://pay.example/p/")
	assert.Equal(t, model.StepAwaitingPayment, f.step(t))

	sess, err := f.store.Get(context.Background(), f.key)
	require.NoError(t, err)
	reference := sess.PaymentReference
	require.NotEmpty(t, reference)

	// Gateway settles; verification issues and resets.
	f.gateway.status = "success"
	reply = f.send(t, "verify")
	assert.Contains(t, reply.Text, "Payment confirmed")
	assert.Contains(t, reply.Text, reference)
	assert.Equal(t, 1, f.issuer.calls)
	assert.Len(t, f.out.delivered, 2)
	assert.Equal(t, model.StepInit, f.step(t))

	remaining, err := f.catalog.Remaining(context.Background(), 1, "Standard")
	require.NoError(t, err)
	assert.Equal(t, int32(8), remaining)
}

func TestQuantityShortfallStaysAtQuantityStep(t *testing.T) {
	f := newFixture(t)
	f.send(t, "menu")
	f.send(t, "1")
	f.send(t, "2") // VIP, 1 left

	reply := f.send(t, "2")
	assert.Equal(t, fmt.Sprintf(msgShortfall, 1), reply.Text)
	assert.Equal(t, model.StepChoosingQuantity, f.step(t))

	// A fitting quantity still goes through.
	reply = f.send(t, "1")
	assert.Contains(t, reply.Text, "Quantity: 1")
	assert.Equal(t, model.StepConfirming, f.step(t))
}

func TestSoldOutCategoryRejected(t *testing.T) {
	f := newFixture(t)
	f.send(t, "menu")
	f.send(t, "1")

	reply := f.send(t, "3") // Gold, 0 left
	assert.Equal(t, fmt.Sprintf(msgCategorySoldOut, "Gold"), reply.Text)
	assert.Equal(t, model.StepChoosingCategory, f.step(t))
}

func TestDuplicateVerifyDoesNotReissue(t *testing.T) {
	f := newFixture(t)
	f.driveToConfirming(t, "2")
	f.send(t, "oui")
	f.gateway.status = "success"

	sess, err := f.store.Get(context.Background(), f.key)
	require.NoError(t, err)
	reference := sess.PaymentReference

	f.send(t, "verify")
	require.Equal(t, 1, f.issuer.calls)

	// After issuance the session is back at init; a stray second verify
	// gets the already-paid answer and cannot reach the issuer again.
	reply := f.send(t, "verify")
	assert.Equal(t, fmt.Sprintf(msgAlreadyPaid, reference), reply.Text)
	assert.Equal(t, 1, f.issuer.calls)

	remaining, err := f.catalog.Remaining(context.Background(), 1, "Standard")
	require.NoError(t, err)
	assert.Equal(t, int32(8), remaining, "stock decremented exactly once")
}

func TestVerifyAfterCancelHasNothingToReport(t *testing.T) {
	f := newFixture(t)
	f.driveToConfirming(t, "1")
	f.send(t, "oui")
	f.send(t, "cancel")

	// The cancelled reference never produced tickets, so a later verify
	// has nothing to confirm.
	reply := f.send(t, "verify")
	assert.Equal(t, msgNothingToVerify, reply.Text)
	assert.Zero(t, f.issuer.calls)
}

func TestVerifyWhilePendingKeepsWaiting(t *testing.T) {
	f := newFixture(t)
	f.driveToConfirming(t, "1")
	f.send(t, "oui")

	reply := f.send(t, "verify")
	assert.Contains(t, reply.Text, "still pending")
	assert.Equal(t, model.StepAwaitingPayment, f.step(t))
	assert.Zero(t, f.issuer.calls)
}

func TestCancelAtAwaitingPaymentLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	f.driveToConfirming(t, "2")
	f.send(t, "oui")
	require.Equal(t, model.StepAwaitingPayment, f.step(t))

	reply := f.send(t, "cancel")
	assert.Equal(t, msgCancelled, reply.Text)
	assert.Equal(t, model.StepInit, f.step(t))

	remaining, err := f.catalog.Remaining(context.Background(), 1, "Standard")
	require.NoError(t, err)
	assert.Equal(t, int32(10), remaining)

	// The abandoned purchase does not block a fresh one.
	reply = f.send(t, "menu")
	assert.Contains(t, reply.Text, "Events on sale")
}

func TestInvalidInputReprompts(t *testing.T) {
	f := newFixture(t)
	f.send(t, "menu")

	reply := f.send(t, "first one please")
	assert.Equal(t, rePrompt(model.StepChoosingEvent), reply.Text)
	assert.Equal(t, model.StepChoosingEvent, f.step(t))

	reply = f.send(t, "99")
	assert.Equal(t, msgInvalidEvent, reply.Text)
	assert.Equal(t, model.StepChoosingEvent, f.step(t))
}

func TestSecondPurchaseRejectedNotMerged(t *testing.T) {
	f := newFixture(t)
	f.driveToConfirming(t, "1")

	reply := f.send(t, "menu")
	assert.Contains(t, reply.Text, msgPurchaseInProgress)
	assert.Equal(t, model.StepConfirming, f.step(t))
}

func TestVerifyRejectsForeignReference(t *testing.T) {
	f := newFixture(t)
	f.driveToConfirming(t, "1")
	f.send(t, "oui")

	in := Input{Kind: KindVerify, Reference: "2503-DEADBEEF"}
	reply := f.machine.Handle(context.Background(), f.key, in, f.out)
	assert.Equal(t, msgBadReference, reply.Text)
	assert.Equal(t, model.StepAwaitingPayment, f.step(t))
}

func TestSoldOutAtIssuanceResetsWithSupportMessage(t *testing.T) {
	f := newFixture(t)
	f.driveToConfirming(t, "2")
	f.send(t, "oui")
	sess, err := f.store.Get(context.Background(), f.key)
	require.NoError(t, err)
	reference := sess.PaymentReference

	f.gateway.status = "success"
	f.issuer.failWith = repository.ErrSoldOut

	reply := f.send(t, "verify")
	assert.Equal(t, fmt.Sprintf(msgSoldOutPaid, reference), reply.Text)
	assert.Equal(t, model.StepInit, f.step(t))
}

func TestIssuanceFailureAllowsRetryWithoutDoubleCharge(t *testing.T) {
	f := newFixture(t)
	f.driveToConfirming(t, "2")
	f.send(t, "oui")

	f.gateway.status = "success"
	f.issuer.failWith = errors.New("db timeout")
	f.issuer.failOnce = true

	reply := f.send(t, "verify")
	assert.Equal(t, msgIssueRetry, reply.Text)
	assert.Equal(t, model.StepAwaitingPayment, f.step(t))

	// Retried verify re-runs issuance; the confirm gate stays idempotent
	// so the buyer is never charged twice.
	reply = f.send(t, "verify")
	assert.Contains(t, reply.Text, "Payment confirmed")
	assert.Equal(t, 2, f.issuer.calls)
	assert.Equal(t, model.StepInit, f.step(t))

	remaining, err := f.catalog.Remaining(context.Background(), 1, "Standard")
	require.NoError(t, err)
	assert.Equal(t, int32(8), remaining)
}

func TestTicketsCommandListsHistory(t *testing.T) {
	f := newFixture(t)
	f.lister.tickets = []model.Ticket{
		{EventName: "Festival Conakry", CategoryName: "VIP", FormattedID: "EVT1-CAT2-T0001", QRCode: "1234567"},
	}

	reply := f.send(t, "tickets")
	assert.Contains(t, reply.Text, "EVT1-CAT2-T0001")
	assert.Contains(t, reply.Text, "1234567")

	reply = f.send(t, "ticket 1")
	assert.Equal(t, fmt.Sprintf(msgTicketSent, "EVT1-CAT2-T0001"), reply.Text)
	assert.Len(t, f.out.delivered, 1)

	reply = f.send(t, "ticket 9")
	assert.Equal(t, msgTicketNotFound, reply.Text)
}
