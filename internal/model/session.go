package model

import "time"

// Step enumerates the states of a purchase session.  A session always
// starts at StepInit and returns there after issuance, cancellation or
// a terminal error.
type Step string

const (
	StepInit             Step = "init"
	StepChoosingEvent    Step = "choosing_event"
	StepChoosingCategory Step = "choosing_category"
	StepChoosingQuantity Step = "choosing_quantity"
	StepConfirming       Step = "confirming"
	StepAwaitingPayment  Step = "awaiting_payment"
	StepPaid             Step = "paid"
)

// Session holds the in-progress purchase state for one user on one
// channel.  Sessions are keyed by (channel, user id) and are mutated
// only while the per-key lock is held, so the struct itself needs no
// synchronization.  At most one live session exists per key; a second
// purchase attempt while one is active is rejected.
//
// Fields:
//  Channel          – "whatsapp" or "telegram".
//  UserID           – channel-native user identifier.
//  UserName         – display name, if the channel provides one.
//  Step             – current state machine step.
//  EventID          – selected event, zero until chosen.
//  EventName        – denormalized event name for prompts and tickets.
//  CategoryPos      – 1-based position of the selected category.
//  CategoryName     – selected category label.
//  UnitPrice        – price per seat at selection time.
//  Quantity         – number of seats requested.
//  TotalPrice       – UnitPrice * Quantity, fixed at confirmation.
//  PaymentReference – reference minted by the orchestrator, empty until
//                     a payment link has been requested.
//  PaymentURL       – hosted payment link for re-display.
//  LastReference    – reference of the most recently closed purchase,
//                     kept across Reset so a late verify can be
//                     answered with the already-paid outcome.
//  UpdatedAt        – last mutation time, used for optional expiry.
type Session struct {
	Channel          string    `json:"channel"`
	UserID           string    `json:"user_id"`
	UserName         string    `json:"user_name"`
	Step             Step      `json:"step"`
	EventID          uint64    `json:"event_id"`
	EventName        string    `json:"event_name"`
	CategoryPos      uint32    `json:"category_pos"`
	CategoryName     string    `json:"category_name"`
	UnitPrice        uint64    `json:"unit_price"`
	Quantity         uint32    `json:"quantity"`
	TotalPrice       uint64    `json:"total_price"`
	PaymentReference string    `json:"payment_reference"`
	PaymentURL       string    `json:"payment_url"`
	LastReference    string    `json:"last_reference"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Reset clears all purchase state and returns the session to StepInit.
// Identity fields (channel, user) are preserved, and the reference of
// the purchase being closed is remembered in LastReference.
func (s *Session) Reset() {
	if s.PaymentReference != "" {
		s.LastReference = s.PaymentReference
	}
	s.Step = StepInit
	s.EventID = 0
	s.EventName = ""
	s.CategoryPos = 0
	s.CategoryName = ""
	s.UnitPrice = 0
	s.Quantity = 0
	s.TotalPrice = 0
	s.PaymentReference = ""
	s.PaymentURL = ""
}
