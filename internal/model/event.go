package model

import "time"

// Event represents a sellable event in the catalog.  Events carry a
// list of ticket categories, each with its own price and remaining
// stock.  Events are created through admin tooling outside this
// service; the purchase flow only reads them and decrements category
// stock through the ledger.
//
// Fields:
//  ID         – primary key identifier.
//  Name       – display name of the event.
//  Date       – event date as entered by the organizer.
//  Organizer  – organizer display name.
//  Location   – venue.
//  Categories – ticket categories, ordered by their position.
//  CreatedAt  – creation timestamp.
type Event struct {
	ID         uint64     // events.id
	Name       string     // events.name
	Date       string     // events.date
	Organizer  string     // events.organizer
	Location   string     // events.location
	Categories []Category // event_categories rows, position order
	CreatedAt  time.Time  // events.created_at
}

// Category is one ticket class of an event.  Remaining must never go
// below zero; it only decreases through the ledger's conditional
// decrement at confirmed-payment time.
//
// Fields:
//  Position  – 1-based index of the category within its event.  Used
//              when building deterministic ticket identifiers.
//  Name      – category label ("VIP", "Standard", ...).
//  UnitPrice – price per seat in whole Guinean francs.
//  Remaining – seats still available for sale.
type Category struct {
	Position  uint32 // event_categories.position
	Name      string // event_categories.name
	UnitPrice uint64 // event_categories.unit_price
	Remaining int32  // event_categories.remaining
}

// CategoryAt returns the category at the given 1-based position, or
// nil when the position is out of range.
func (e *Event) CategoryAt(pos int) *Category {
	if pos < 1 || pos > len(e.Categories) {
		return nil
	}
	return &e.Categories[pos-1]
}
