package model

import "time"

// Ticket is one seat sold to a user.  A multi-seat purchase produces
// one Ticket row per seat, all sharing the same payment reference.
// Tickets are immutable once created and are never deleted by this
// service.
//
// Fields:
//  ID               – primary key identifier.
//  User             – buyer display name as reported by the channel.
//  Phone            – channel-native address (phone or username).
//  EventID          – event the ticket admits to.
//  EventName        – denormalized event name at purchase time.
//  CategoryName     – denormalized category label.
//  Quantity         – seats in the order this row belongs to.
//  UnitPrice        – price of this seat in whole Guinean francs.
//  TotalPrice       – equal to UnitPrice; one row covers one seat.
//  PurchaseChannel  – "whatsapp" or "telegram".
//  FormattedID      – deterministic id, EVT<ev>-CAT<cat>-T<seq>.
//  QRCode           – unique numeric code embedded in the voucher.
//  PaymentReference – gateway reference the order was paid under.
//  PaymentStatus    – gateway status recorded at issuance.
//  CreatedAt        – creation timestamp.
type Ticket struct {
	ID               uint64    // tickets.id
	User             string    // tickets.user
	Phone            string    // tickets.phone
	EventID          uint64    // tickets.event_id
	EventName        string    // tickets.event_name
	CategoryName     string    // tickets.category_name
	Quantity         uint32    // tickets.quantity
	UnitPrice        uint64    // tickets.unit_price
	TotalPrice       uint64    // tickets.total_price
	PurchaseChannel  string    // tickets.purchase_channel
	FormattedID      string    // tickets.formatted_id (unique)
	QRCode           string    // tickets.qr_code (unique)
	PaymentReference string    // tickets.payment_reference
	PaymentStatus    string    // tickets.payment_status
	CreatedAt        time.Time // tickets.created_at
}
