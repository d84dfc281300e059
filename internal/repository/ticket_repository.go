package repository

import (
	"context"
	"database/sql"

	"github.com/conakrylabs/ticket-bot/internal/model"
)

// TicketRepo provides persistence for issued tickets. One row is one
// seat; a multi-seat order inserts several rows sharing the same
// payment reference. All inserts happen inside the issuance
// transaction so a failed issuance never leaves orphaned tickets or
// a decremented ledger without matching rows.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// NextSequenceTx returns the next ticket sequence number for one
// (event, category) pair, counting rows inside the provided
// transaction. The issuance transaction has already locked the
// category row via the ledger decrement, so concurrent issuances for
// the same category are serialized and the sequence is gap-free
// within a commit.
func (r *TicketRepo) NextSequenceTx(ctx context.Context, tx *sql.Tx, eventID uint64, category string) (uint32, error) {
	const q = `SELECT COUNT(*) FROM tickets WHERE event_id = ? AND category_name = ?`
	var count uint32
	if err := tx.QueryRowContext(ctx, q, eventID, category).Scan(&count); err != nil {
		return 0, err
	}
	return count + 1, nil
}

// QRCodeExistsTx reports whether a QR code is already assigned to any
// ticket. Queried inside the issuance transaction so codes generated
// earlier in the same batch are visible.
func (r *TicketRepo) QRCodeExistsTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	const q = `SELECT 1 FROM tickets WHERE qr_code = ? LIMIT 1`
	var one int
	err := tx.QueryRowContext(ctx, q, code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ExistByReference reports whether any ticket has already been issued
// under the given payment reference. Used as a belt-and-braces probe
// by the orchestrator's idempotency path.
func (r *TicketRepo) ExistByReference(ctx context.Context, reference string) (bool, error) {
	const q = `SELECT 1 FROM tickets WHERE payment_reference = ? LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, q, reference).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateTx inserts one ticket within the provided transaction and
// populates the generated ID and creation timestamp on the model.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	const q = `INSERT INTO tickets
	           (user, phone, event_id, event_name, category_name, quantity,
	            unit_price, total_price, purchase_channel, formatted_id,
	            qr_code, payment_reference, payment_status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		t.User, t.Phone, t.EventID, t.EventName, t.CategoryName, t.Quantity,
		t.UnitPrice, t.TotalPrice, t.PurchaseChannel, t.FormattedID,
		t.QRCode, t.PaymentReference, t.PaymentStatus,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	const sel = `SELECT created_at FROM tickets WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, t.ID).Scan(&t.CreatedAt)
}

// ListByBuyer returns all tickets bought through the given channel by
// the given channel-native address, newest first. Used by the
// "tickets" conversational command.
func (r *TicketRepo) ListByBuyer(ctx context.Context, channel, phone string) ([]model.Ticket, error) {
	const q = `SELECT id, user, phone, event_id, event_name, category_name,
	                  quantity, unit_price, total_price, purchase_channel,
	                  formatted_id, qr_code, payment_reference, payment_status,
	                  created_at
	           FROM tickets
	           WHERE purchase_channel = ? AND phone = ?
	           ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, channel, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(
			&t.ID, &t.User, &t.Phone, &t.EventID, &t.EventName, &t.CategoryName,
			&t.Quantity, &t.UnitPrice, &t.TotalPrice, &t.PurchaseChannel,
			&t.FormattedID, &t.QRCode, &t.PaymentReference, &t.PaymentStatus,
			&t.CreatedAt,
		); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}
