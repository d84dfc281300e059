// Package flow implements the channel-agnostic purchase state
// machine. Channel adapters translate inbound chat payloads into
// Inputs, feed them through Machine.Handle and render the resulting
// Reply with channel-native affordances. Both channels drive the
// same machine, so the purchase logic cannot drift between them.
package flow

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind enumerates the typed inputs the state machine consumes.
type Kind int

const (
	// KindUnknown is any text that matches no command; the machine
	// re-prompts without advancing state.
	KindUnknown Kind = iota
	// KindStart greets the user (Telegram /start, first contact).
	KindStart
	// KindHelp lists the available commands.
	KindHelp
	// KindMenu starts a purchase by listing events.
	KindMenu
	// KindNumber is a numeric selection; its meaning depends on the
	// current step (event id, category position or quantity).
	KindNumber
	// KindConfirm advances from the recap to payment ("oui", "confirm").
	KindConfirm
	// KindVerify asks for payment verification ("verify",
	// "check_payment"). Reference may carry an explicit reference from
	// a button payload.
	KindVerify
	// KindCancel aborts the purchase from any state.
	KindCancel
	// KindMyTickets lists the buyer's purchased tickets.
	KindMyTickets
	// KindShowTicket re-sends the voucher for the n-th listed ticket.
	KindShowTicket
)

// Input is one typed event for the machine.
type Input struct {
	Kind      Kind
	Number    int    // KindNumber, KindShowTicket
	Reference string // KindVerify, when carried by a button payload
	UserName  string // buyer display name, when the channel knows it
}

var numberRe = regexp.MustCompile(`^\d+$`)

// ParseText maps free-form message text onto an Input. Both adapters
// share it so the command vocabulary stays identical across channels;
// French synonyms from the original bot audience are accepted.
func ParseText(text string) Input {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimPrefix(t, "/")
	switch t {
	case "start":
		return Input{Kind: KindStart}
	case "help", "aide":
		return Input{Kind: KindHelp}
	case "menu", "acheter", "buy":
		return Input{Kind: KindMenu}
	case "oui", "confirm", "yes":
		return Input{Kind: KindConfirm}
	case "verify", "check_payment", "verifier":
		return Input{Kind: KindVerify}
	case "cancel", "annuler":
		return Input{Kind: KindCancel}
	case "tickets", "mestickets":
		return Input{Kind: KindMyTickets}
	}
	if rest, ok := strings.CutPrefix(t, "ticket "); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil && n > 0 {
			return Input{Kind: KindShowTicket, Number: n}
		}
	}
	if numberRe.MatchString(t) {
		if n, err := strconv.Atoi(t); err == nil {
			return Input{Kind: KindNumber, Number: n}
		}
	}
	return Input{Kind: KindUnknown}
}
