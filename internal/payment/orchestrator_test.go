package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/session"
)

type fakeGateway struct {
	status      string
	statusErr   error
	createErr   error
	statusCalls int
}

func (f *fakeGateway) CreateLink(ctx context.Context, amount uint64, description, reference string) (*Link, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &Link{PayURL: "https://pay.example/p/" + reference, AmountFormatted: "x"}, nil
}

func (f *fakeGateway) GetStatus(ctx context.Context, reference string) (*Status, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &Status{Status: f.status}, nil
}

type fakeProbe struct{ issued bool }

func (f fakeProbe) ExistByReference(ctx context.Context, reference string) (bool, error) {
	return f.issued, nil
}

func testSession() (session.Key, *model.Session) {
	key := session.Key{Channel: "telegram", UserID: "42"}
	return key, &model.Session{
		Channel:    key.Channel,
		UserID:     key.UserID,
		Step:       model.StepConfirming,
		EventName:  "Concert",
		Quantity:   2,
		TotalPrice: 100000,
	}
}

func TestInitiateTransitionsToAwaitingPayment(t *testing.T) {
	store := session.NewMemoryStore(0)
	o := NewOrchestrator(&fakeGateway{}, store, nil)
	key, sess := testSession()

	init, err := o.Initiate(context.Background(), key, sess)
	require.NoError(t, err)
	assert.NotEmpty(t, init.Reference)
	assert.Equal(t, "https://pay.example/p/"+init.Reference, init.PayURL)

	assert.Equal(t, model.StepAwaitingPayment, sess.Step)
	assert.Equal(t, init.Reference, sess.PaymentReference)

	stored, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.StepAwaitingPayment, stored.Step)
}

func TestInitiateGatewayFailureLeavesSessionUntouched(t *testing.T) {
	store := session.NewMemoryStore(0)
	o := NewOrchestrator(&fakeGateway{createErr: ErrGatewayUnavailable}, store, nil)
	key, sess := testSession()

	_, err := o.Initiate(context.Background(), key, sess)
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, model.StepConfirming, sess.Step)
	assert.Empty(t, sess.PaymentReference)
}

func TestConfirmSuccessMarksPaidBeforeReturning(t *testing.T) {
	store := session.NewMemoryStore(0)
	gw := &fakeGateway{status: "success"}
	o := NewOrchestrator(gw, store, nil)
	key, sess := testSession()
	sess.Step = model.StepAwaitingPayment
	sess.PaymentReference = "2503-AAAA1111"

	outcome, status, err := o.Confirm(context.Background(), key, sess, "2503-AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, "success", status.Status)

	// The paid step must already be persisted when Confirm returns.
	stored, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.StepPaid, stored.Step)
}

func TestConfirmIsIdempotent(t *testing.T) {
	store := session.NewMemoryStore(0)
	gw := &fakeGateway{status: "success"}
	o := NewOrchestrator(gw, store, nil)
	key, sess := testSession()
	sess.Step = model.StepAwaitingPayment
	sess.PaymentReference = "2503-AAAA1111"

	outcome, _, err := o.Confirm(context.Background(), key, sess, "2503-AAAA1111")
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, outcome)

	outcome, _, err = o.Confirm(context.Background(), key, sess, "2503-AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyConfirmed, outcome)
	assert.Equal(t, 1, gw.statusCalls, "duplicate confirm must not hit the gateway again")
}

func TestConfirmShortCircuitsOnPersistedTickets(t *testing.T) {
	store := session.NewMemoryStore(0)
	gw := &fakeGateway{status: "success"}
	o := NewOrchestrator(gw, store, fakeProbe{issued: true})
	key, sess := testSession()
	sess.Step = model.StepAwaitingPayment
	sess.PaymentReference = "2503-AAAA1111"

	outcome, _, err := o.Confirm(context.Background(), key, sess, "2503-AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyConfirmed, outcome)
	assert.Zero(t, gw.statusCalls)
}

func TestConfirmRejectsForeignReference(t *testing.T) {
	store := session.NewMemoryStore(0)
	o := NewOrchestrator(&fakeGateway{status: "success"}, store, nil)
	key, sess := testSession()
	sess.Step = model.StepAwaitingPayment
	sess.PaymentReference = "2503-AAAA1111"

	outcome, _, err := o.Confirm(context.Background(), key, sess, "2503-BBBB2222")
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, ErrReferenceMismatch)
	assert.Equal(t, model.StepAwaitingPayment, sess.Step)
}

func TestConfirmPendingKeepsAwaitingPayment(t *testing.T) {
	store := session.NewMemoryStore(0)
	o := NewOrchestrator(&fakeGateway{status: "pending"}, store, nil)
	key, sess := testSession()
	sess.Step = model.StepAwaitingPayment
	sess.PaymentReference = "2503-AAAA1111"

	outcome, _, err := o.Confirm(context.Background(), key, sess, "2503-AAAA1111")
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, outcome)
	assert.Equal(t, model.StepAwaitingPayment, sess.Step)
}

func TestConfirmGatewayError(t *testing.T) {
	store := session.NewMemoryStore(0)
	boom := errors.New("boom")
	o := NewOrchestrator(&fakeGateway{statusErr: boom}, store, nil)
	key, sess := testSession()
	sess.Step = model.StepAwaitingPayment
	sess.PaymentReference = "2503-AAAA1111"

	outcome, _, err := o.Confirm(context.Background(), key, sess, "2503-AAAA1111")
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, model.StepAwaitingPayment, sess.Step)
}
