package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conakrylabs/ticket-bot/internal/flow"
)

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data string
		want flow.Input
	}{
		{"select_event:3", flow.Input{Kind: flow.KindNumber, Number: 3}},
		{"select_category:3:2", flow.Input{Kind: flow.KindNumber, Number: 2}},
		{"select_quantity:4", flow.Input{Kind: flow.KindNumber, Number: 4}},
		{"confirm_purchase", flow.Input{Kind: flow.KindConfirm}},
		{"check_payment:2503-ABCDEF01", flow.Input{Kind: flow.KindVerify, Reference: "2503-ABCDEF01"}},
		{"cancel_purchase", flow.Input{Kind: flow.KindCancel}},
		{"select_event:junk", flow.Input{Kind: flow.KindUnknown}},
		{"something_else", flow.Input{Kind: flow.KindUnknown}},
		{"", flow.Input{Kind: flow.KindUnknown}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseCallback(tc.data), "data %q", tc.data)
	}
}

func TestFileExt(t *testing.T) {
	assert.Equal(t, ".png", fileExt("image/png"))
	assert.Equal(t, ".txt", fileExt("text/plain"))
	assert.Equal(t, ".bin", fileExt("application/x-unknown-thing"))
}
