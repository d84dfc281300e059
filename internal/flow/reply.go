package flow

// Button is a channel-agnostic action attached to a reply. Exactly
// one of Data or URL is set: Data round-trips through the channel as
// a callback payload (Telegram inline keyboards), URL opens the
// hosted payment page. Channels without buttons render the reply
// text alone; every prompt therefore also spells out the textual
// command.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Reply is the machine's outbound message for one handled input.
type Reply struct {
	Text    string
	Buttons []Button
}

func textReply(text string) Reply { return Reply{Text: text} }

// Callback payload vocabulary shared with the Telegram adapter.
const (
	CallbackSelectEvent    = "select_event:"    // + event id
	CallbackSelectCategory = "select_category:" // + 1-based position
	CallbackSelectQuantity = "select_quantity:" // + quantity
	CallbackConfirm        = "confirm_purchase"
	CallbackCheckPayment   = "check_payment:" // + reference
	CallbackCancel         = "cancel_purchase"
)
