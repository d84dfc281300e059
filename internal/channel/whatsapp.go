package channel

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/conakrylabs/ticket-bot/internal/flow"
	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/session"
)

// WhatsApp adapts the purchase machine to WhatsApp through Twilio.
// Inbound messages arrive as form-encoded webhooks; the immediate
// reply goes back as TwiML. Proactive sends (poller notifications,
// voucher delivery) go through Twilio's Messages REST API. Media
// cannot be uploaded to Twilio directly, so image vouchers are parked
// in MediaDir and referenced by public URL.
type WhatsApp struct {
	Machine    *flow.Machine
	AccountSID string
	AuthToken  string
	From       string // sender in Twilio form, e.g. "whatsapp:+14155238886"
	PublicBase string // externally reachable base URL, no trailing slash
	MediaDir   string // directory served under /media/tickets

	HTTP *http.Client
}

// NewWhatsApp builds the adapter with a 15 second HTTP client.
func NewWhatsApp(machine *flow.Machine, accountSID, authToken, from, publicBase, mediaDir string) *WhatsApp {
	return &WhatsApp{
		Machine:    machine,
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		PublicBase: strings.TrimRight(publicBase, "/"),
		MediaDir:   mediaDir,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
	}
}

// twimlResponse is the minimal TwiML document Twilio expects back
// from a messaging webhook.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// HandleWebhook is the echo handler for inbound WhatsApp messages.
// Twilio posts From (prefixed "whatsapp:"), Body and ProfileName; the
// reply text is returned inline as TwiML.
func (w *WhatsApp) HandleWebhook(c echo.Context) error {
	from := c.FormValue("From")
	body := c.FormValue("Body")
	if from == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing From"})
	}
	userID := strings.TrimPrefix(from, "whatsapp:")

	in := flow.ParseText(body)
	in.UserName = c.FormValue("ProfileName")
	key := session.Key{Channel: NameWhatsApp, UserID: userID}
	reply := w.Machine.Handle(c.Request().Context(), key, in, w)

	out, err := xml.Marshal(twimlResponse{Message: reply.Text})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encoding failed"})
	}
	return c.Blob(http.StatusOK, "text/xml", append([]byte(xml.Header), out...))
}

// SendText pushes a plain message to the recipient via the Twilio
// REST API.
func (w *WhatsApp) SendText(ctx context.Context, recipient, text string) error {
	return w.send(ctx, recipient, text, "")
}

// DeliverTicket sends one voucher. Image payloads are written to
// MediaDir and attached by URL; anything else rides in the message
// body itself.
func (w *WhatsApp) DeliverTicket(ctx context.Context, recipient string, t model.Ticket, payload []byte, contentType string) error {
	if !isImage(contentType) {
		return w.send(ctx, recipient, string(payload), "")
	}
	name := "ticket_" + t.FormattedID + fileExt(contentType)
	if err := os.WriteFile(filepath.Join(w.MediaDir, name), payload, 0o644); err != nil {
		return fmt.Errorf("write voucher %s: %w", name, err)
	}
	caption := fmt.Sprintf("Your ticket %s for %s", t.FormattedID, t.EventName)
	return w.send(ctx, recipient, caption, w.PublicBase+"/media/tickets/"+name)
}

// send posts one message through Twilio's Messages endpoint. mediaURL
// is optional.
func (w *WhatsApp) send(ctx context.Context, recipient, body, mediaURL string) error {
	form := url.Values{}
	form.Set("From", w.From)
	form.Set("To", "whatsapp:"+recipient)
	form.Set("Body", body)
	if mediaURL != "" {
		form.Set("MediaUrl", mediaURL)
	}
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", w.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(w.AccountSID, w.AuthToken)

	resp, err := w.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
