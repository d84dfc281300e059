// Package ticket implements the issuance pipeline: the authoritative
// stock reservation, unique code generation, ticket persistence and
// exactly-once hand-off to the delivery collaborators.
package ticket

import (
	"fmt"

	"github.com/conakrylabs/ticket-bot/internal/model"
)

// Renderer turns a persisted ticket into an opaque binary voucher for
// delivery. Rendering (bitmaps, QR images) is a collaborator concern;
// the issuer only moves the bytes.
type Renderer interface {
	// Render produces the voucher payload for one ticket.
	Render(t model.Ticket) ([]byte, error)
	// ContentType reports the MIME type of rendered payloads so
	// channels can pick a sensible file name and transport.
	ContentType() string
}

// TextRenderer renders the voucher as a plain-text block. It is the
// default renderer; deployments with an image pipeline plug in their
// own Renderer.
type TextRenderer struct{}

// Render writes the ticket fields in the layout buyers see on the
// voucher.
func (TextRenderer) Render(t model.Ticket) ([]byte, error) {
	s := fmt.Sprintf(
		"TICKET\n"+
			"Event: %s\n"+
			"Category: %s\n"+
			"Price: %d GNF\n"+
			"Ref: %s\n"+
			"Code: %s\n"+
			"This ticket is only valid when presented with identification.\n",
		t.EventName, t.CategoryName, t.UnitPrice, t.FormattedID, t.QRCode,
	)
	return []byte(s), nil
}

// ContentType implements Renderer.
func (TextRenderer) ContentType() string { return "text/plain" }
