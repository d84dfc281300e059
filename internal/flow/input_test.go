package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTextCommands(t *testing.T) {
	cases := []struct {
		text string
		want Input
	}{
		{"menu", Input{Kind: KindMenu}},
		{"MENU", Input{Kind: KindMenu}},
		{"/menu", Input{Kind: KindMenu}},
		{"acheter", Input{Kind: KindMenu}},
		{"buy", Input{Kind: KindMenu}},
		{"/start", Input{Kind: KindStart}},
		{"help", Input{Kind: KindHelp}},
		{"aide", Input{Kind: KindHelp}},
		{"oui", Input{Kind: KindConfirm}},
		{"  Oui  ", Input{Kind: KindConfirm}},
		{"confirm", Input{Kind: KindConfirm}},
		{"yes", Input{Kind: KindConfirm}},
		{"verify", Input{Kind: KindVerify}},
		{"verifier", Input{Kind: KindVerify}},
		{"cancel", Input{Kind: KindCancel}},
		{"annuler", Input{Kind: KindCancel}},
		{"tickets", Input{Kind: KindMyTickets}},
		{"mestickets", Input{Kind: KindMyTickets}},
		{"ticket 3", Input{Kind: KindShowTicket, Number: 3}},
		{"ticket  12", Input{Kind: KindShowTicket, Number: 12}},
		{"2", Input{Kind: KindNumber, Number: 2}},
		{" 15 ", Input{Kind: KindNumber, Number: 15}},
		{"", Input{Kind: KindUnknown}},
		{"hello there", Input{Kind: KindUnknown}},
		{"ticket zero", Input{Kind: KindUnknown}},
		{"ticket 0", Input{Kind: KindUnknown}},
		{"2 please", Input{Kind: KindUnknown}},
		{"-3", Input{Kind: KindUnknown}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseText(tc.text), "input %q", tc.text)
	}
}
