package flow

import (
	"context"

	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/repository"
)

// Catalog is the read-only event source the machine browses. Stock
// figures it returns are non-authoritative snapshots; the ledger
// re-checks at issuance.
type Catalog interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id uint64) (*model.Event, error)
	Remaining(ctx context.Context, eventID uint64, category string) (int32, error)
}

// RepoCatalog adapts the SQL event repository to the Catalog
// interface.
type RepoCatalog struct {
	Events *repository.EventRepo
}

// ListEvents implements Catalog.
func (c RepoCatalog) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := c.Events.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]model.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].ToModel())
	}
	return events, nil
}

// GetEvent implements Catalog.
func (c RepoCatalog) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	row, err := c.Events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ev := row.ToModel()
	return &ev, nil
}

// Remaining implements Catalog.
func (c RepoCatalog) Remaining(ctx context.Context, eventID uint64, category string) (int32, error) {
	return c.Events.Remaining(ctx, eventID, category)
}
