package ticket

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"math/big"

	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/session"
)

// codeAttempts bounds the collision-rejection loop for QR codes. On
// exhaustion the ticket is still created with a best-effort code
// derived from the payment reference; a ticket is never dropped.
const codeAttempts = 5

// Ledger is the authoritative seat-count tracker. TryReserveTx must
// be atomic per (event, category) under concurrent purchasers.
type Ledger interface {
	TryReserveTx(ctx context.Context, tx *sql.Tx, eventID uint64, category string, quantity uint32) (int32, error)
	CategoryPosition(ctx context.Context, eventID uint64, category string) (uint32, error)
}

// TicketStore persists ticket rows inside the issuance transaction.
type TicketStore interface {
	NextSequenceTx(ctx context.Context, tx *sql.Tx, eventID uint64, category string) (uint32, error)
	QRCodeExistsTx(ctx context.Context, tx *sql.Tx, code string) (bool, error)
	CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error
}

// Deliverer transmits one rendered voucher to the buyer on their
// channel. Channel adapters implement it.
type Deliverer interface {
	DeliverTicket(ctx context.Context, recipient string, t model.Ticket, payload []byte, contentType string) error
}

// Publisher announces completed issuances, e.g. to a message broker.
// Failures are logged and ignored; issuance never depends on it.
type Publisher func(ctx context.Context, tickets []model.Ticket)

// Issuer allocates and delivers tickets for a confirmed payment. The
// ledger decrement and all ticket inserts run in one transaction so a
// persistence failure rolls the stock back instead of leaving seats
// decremented with zero tickets issued. Issue is called only after
// the orchestrator returned a fresh success for (session, reference),
// which guarantees exactly-once entry.
type Issuer struct {
	ledger   Ledger
	tickets  TicketStore
	renderer Renderer
	store    session.Store
	publish  Publisher // optional, may be nil

	// runTx executes fn within a transaction boundary. Bound to the
	// database in NewIssuer; tests substitute their own.
	runTx func(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// NewIssuer constructs an Issuer bound to the given database. publish
// may be nil.
func NewIssuer(db *sql.DB, ledger Ledger, tickets TicketStore, renderer Renderer, store session.Store, publish Publisher) *Issuer {
	if db == nil || ledger == nil || tickets == nil || renderer == nil || store == nil {
		panic("nil dependency passed to NewIssuer")
	}
	return &Issuer{
		ledger:   ledger,
		tickets:  tickets,
		renderer: renderer,
		store:    store,
		publish:  publish,
		runTx: func(ctx context.Context, fn func(tx *sql.Tx) error) error {
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return err
			}
			committed := false
			defer func() {
				if !committed {
					_ = tx.Rollback()
				}
			}()
			if err := fn(tx); err != nil {
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			committed = true
			return nil
		},
	}
}

// Issue reserves stock, persists one ticket row per seat and hands
// each voucher to the deliverer in ticket order, then resets the
// session. It returns the created tickets. A delivery failure for one
// ticket does not prevent delivery attempts for the rest and never
// re-persists or re-numbers already-created tickets.
func (i *Issuer) Issue(ctx context.Context, key session.Key, sess *model.Session, reference string, deliver Deliverer) ([]model.Ticket, error) {
	if sess.PaymentReference != reference {
		return nil, fmt.Errorf("reference %s does not belong to session %s", reference, key.String())
	}
	catPos, err := i.ledger.CategoryPosition(ctx, sess.EventID, sess.CategoryName)
	if err != nil {
		return nil, err
	}

	tickets := make([]model.Ticket, 0, sess.Quantity)
	err = i.runTx(ctx, func(tx *sql.Tx) error {
		// Authoritative capacity check: stock may have changed between
		// the confirming pre-check and payment settlement.
		if _, err := i.ledger.TryReserveTx(ctx, tx, sess.EventID, sess.CategoryName, sess.Quantity); err != nil {
			return err
		}
		seq, err := i.tickets.NextSequenceTx(ctx, tx, sess.EventID, sess.CategoryName)
		if err != nil {
			return err
		}
		for n := uint32(0); n < sess.Quantity; n++ {
			code, err := i.uniqueCode(ctx, tx, reference, seq+n)
			if err != nil {
				return err
			}
			t := model.Ticket{
				User:             sess.UserName,
				Phone:            sess.UserID,
				EventID:          sess.EventID,
				EventName:        sess.EventName,
				CategoryName:     sess.CategoryName,
				Quantity:         sess.Quantity,
				UnitPrice:        sess.UnitPrice,
				TotalPrice:       sess.UnitPrice,
				PurchaseChannel:  sess.Channel,
				FormattedID:      FormatID(sess.EventID, catPos, seq+n),
				QRCode:           code,
				PaymentReference: reference,
				PaymentStatus:    "paid",
			}
			if err := i.tickets.CreateTx(ctx, tx, &t); err != nil {
				return err
			}
			tickets = append(tickets, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Delivery happens outside the transaction: the tickets exist no
	// matter what, and a broken channel must not roll back a paid sale.
	for _, t := range tickets {
		payload, rerr := i.renderer.Render(t)
		if rerr != nil {
			log.Printf("issuer: render %s failed: %v", t.FormattedID, rerr)
			continue
		}
		if derr := deliver.DeliverTicket(ctx, sess.UserID, t, payload, i.renderer.ContentType()); derr != nil {
			log.Printf("issuer: deliver %s failed: %v", t.FormattedID, derr)
		}
	}

	sess.Reset()
	if err := i.store.Set(ctx, key, sess); err != nil {
		log.Printf("issuer: session reset failed for %s: %v", key.String(), err)
	}
	if i.publish != nil {
		i.publish(ctx, tickets)
	}
	return tickets, nil
}

// uniqueCode samples the 7-digit numeric space and rejects collisions
// against existing tickets, up to codeAttempts times. On exhaustion a
// best-effort code derived from the reference is used and the
// collision streak is logged.
func (i *Issuer) uniqueCode(ctx context.Context, tx *sql.Tx, reference string, seq uint32) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		exists, err := i.tickets.QRCodeExistsTx(ctx, tx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	fallback := fmt.Sprintf("%s-%d", reference, seq)
	log.Printf("issuer: code space collisions exhausted %d attempts, using %s", codeAttempts, fallback)
	return fallback, nil
}

// randomCode draws a uniform 7-digit code in [1000000, 9999999].
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000000), nil
}

// FormatID builds the deterministic ticket identifier from the event
// id, the category's 1-based position and the per-category sequence
// number: EVT12-CAT2-T0001.
func FormatID(eventID uint64, categoryPos, seq uint32) string {
	return fmt.Sprintf("EVT%d-CAT%d-T%04d", eventID, categoryPos, seq)
}
