// Package payment holds the payment orchestration: reference minting,
// the hosted-payment-link gateway client, the confirm/initiate state
// transitions and the background verification poller.
package payment

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// NewReference mints a transaction reference in the "YYMM-XXXXXXXX"
// form expected by the gateway: two-digit year and month, a dash, and
// eight uppercase hex characters from crypto/rand. The reference is
// the idempotency key binding one purchase intent to one gateway
// transaction and the tickets issued for it; it is single-use.
func NewReference(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	random := strings.ToUpper(hex.EncodeToString(b))
	return now.Format("0601") + "-" + random, nil
}
