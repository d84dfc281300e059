// Package channel holds the chat-platform adapters. Each adapter
// translates its platform's inbound payloads into flow inputs, hands
// them to the shared purchase machine, and renders the machine's
// replies with whatever affordances the platform offers (TwiML for
// WhatsApp via Twilio, inline keyboards for Telegram). Adapters also
// implement the outbound Conduit side used for voucher delivery and
// background payment notifications.
package channel

import "mime"

// Channel identifiers stored on sessions and tickets.
const (
	NameWhatsApp = "whatsapp"
	NameTelegram = "telegram"
)

// fileExt maps a voucher content type onto a filename extension.
func fileExt(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "text/plain":
		return ".txt"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// isImage reports whether the voucher payload can be attached as a
// picture on the channel.
func isImage(contentType string) bool {
	return contentType == "image/png" || contentType == "image/jpeg"
}
