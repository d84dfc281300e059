package repository

import (
	"context"
	"database/sql"

	"github.com/conakrylabs/ticket-bot/internal/model"
)

// EventRepo provides read access to the event catalog and the atomic
// stock ledger for event categories. Categories are normalized rows
// in event_categories rather than a serialized blob, so the remaining
// seat count can be decremented with a single conditional UPDATE
// scoped to one (event, category) row.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// that span the ledger and the ticket repository.
func (r *EventRepo) DB() *sql.DB { return r.db }

// categoryRow mirrors one event_categories row. It is scanned
// internally and converted to model.Category by ToModel.
type categoryRow struct {
	Position  uint32
	Name      string
	UnitPrice uint64
	Remaining int32
}

// ListAll returns every event with its categories in position order.
// Events without categories are included with an empty slice. The
// result reflects live stock at query time and must be treated as a
// non-authoritative snapshot: the ledger re-checks at issuance.
func (r *EventRepo) ListAll(ctx context.Context) ([]EventWithCategories, error) {
	const q = `SELECT e.id, e.name, e.date, e.organizer, e.location
	           FROM events e
	           ORDER BY e.date, e.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]EventWithCategories, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var ev EventWithCategories
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Date, &ev.Organizer, &ev.Location); err != nil {
			return nil, err
		}
		ev.Categories = []categoryRow{}
		index[ev.ID] = len(events)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}
	const catQ = `SELECT event_id, position, name, unit_price, remaining
	              FROM event_categories
	              ORDER BY event_id, position`
	crows, err := r.db.QueryContext(ctx, catQ)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var evID uint64
		var c categoryRow
		if err := crows.Scan(&evID, &c.Position, &c.Name, &c.UnitPrice, &c.Remaining); err != nil {
			return nil, err
		}
		idx, ok := index[evID]
		if !ok {
			continue
		}
		events[idx].Categories = append(events[idx].Categories, c)
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// EventWithCategories is the repository-level shape of an event and
// its category rows. Use ToModel to convert for the flow layer.
type EventWithCategories struct {
	ID         uint64
	Name       string
	Date       string
	Organizer  string
	Location   string
	Categories []categoryRow
}

// ToModel converts the repository shape into the model type consumed
// by the purchase flow.
func (e *EventWithCategories) ToModel() model.Event {
	ev := model.Event{
		ID:         e.ID,
		Name:       e.Name,
		Date:       e.Date,
		Organizer:  e.Organizer,
		Location:   e.Location,
		Categories: make([]model.Category, 0, len(e.Categories)),
	}
	for _, c := range e.Categories {
		ev.Categories = append(ev.Categories, model.Category{
			Position:  c.Position,
			Name:      c.Name,
			UnitPrice: c.UnitPrice,
			Remaining: c.Remaining,
		})
	}
	return ev
}

// GetByID returns a single event with its categories. It returns
// ErrEventNotFound when no event with the id exists.
func (r *EventRepo) GetByID(ctx context.Context, eventID uint64) (*EventWithCategories, error) {
	const q = `SELECT id, name, date, organizer, location FROM events WHERE id = ?`
	var ev EventWithCategories
	err := r.db.QueryRowContext(ctx, q, eventID).Scan(&ev.ID, &ev.Name, &ev.Date, &ev.Organizer, &ev.Location)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	const catQ = `SELECT position, name, unit_price, remaining
	              FROM event_categories WHERE event_id = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, catQ, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ev.Categories = []categoryRow{}
	for rows.Next() {
		var c categoryRow
		if err := rows.Scan(&c.Position, &c.Name, &c.UnitPrice, &c.Remaining); err != nil {
			return nil, err
		}
		ev.Categories = append(ev.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Remaining returns the current remaining count for one category,
// identified by event id and category name. It returns
// ErrCategoryNotFound when the category does not exist. This is the
// non-authoritative pre-check used while the user is still choosing;
// the authoritative check is TryReserveTx at issuance time.
func (r *EventRepo) Remaining(ctx context.Context, eventID uint64, category string) (int32, error) {
	const q = `SELECT remaining FROM event_categories WHERE event_id = ? AND name = ?`
	var remaining int32
	err := r.db.QueryRowContext(ctx, q, eventID, category).Scan(&remaining)
	if err == sql.ErrNoRows {
		return 0, ErrCategoryNotFound
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// TryReserveTx atomically decrements the remaining count of one
// category by quantity within the provided transaction. The
// read-compare-write happens as a single conditional UPDATE so two
// concurrent purchasers of the last N seats can never both succeed
// for more than N total. It returns the remaining count after the
// decrement, ErrSoldOut when fewer than quantity seats remain, and
// ErrCategoryNotFound when the category does not exist. The caller
// owns the transaction and must roll back on error so a failed
// issuance never leaves stock decremented without tickets.
func (r *EventRepo) TryReserveTx(ctx context.Context, tx *sql.Tx, eventID uint64, category string, quantity uint32) (int32, error) {
	const upd = `UPDATE event_categories
	             SET remaining = remaining - ?
	             WHERE event_id = ? AND name = ? AND remaining >= ?`
	res, err := tx.ExecContext(ctx, upd, quantity, eventID, category, quantity)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		// Distinguish a missing category from insufficient stock.
		const sel = `SELECT remaining FROM event_categories WHERE event_id = ? AND name = ?`
		var remaining int32
		scanErr := tx.QueryRowContext(ctx, sel, eventID, category).Scan(&remaining)
		if scanErr == sql.ErrNoRows {
			return 0, ErrCategoryNotFound
		}
		if scanErr != nil {
			return 0, scanErr
		}
		return remaining, ErrSoldOut
	}
	const sel = `SELECT remaining FROM event_categories WHERE event_id = ? AND name = ?`
	var remaining int32
	if err := tx.QueryRowContext(ctx, sel, eventID, category).Scan(&remaining); err != nil {
		return 0, err
	}
	return remaining, nil
}

// CategoryPosition returns the 1-based position of a category within
// its event, used when building deterministic ticket identifiers. It
// returns ErrCategoryNotFound when the category does not exist.
func (r *EventRepo) CategoryPosition(ctx context.Context, eventID uint64, category string) (uint32, error) {
	const q = `SELECT position FROM event_categories WHERE event_id = ? AND name = ?`
	var pos uint32
	err := r.db.QueryRowContext(ctx, q, eventID, category).Scan(&pos)
	if err == sql.ErrNoRows {
		return 0, ErrCategoryNotFound
	}
	if err != nil {
		return 0, err
	}
	return pos, nil
}
