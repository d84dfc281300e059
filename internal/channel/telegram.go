package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conakrylabs/ticket-bot/internal/flow"
	"github.com/conakrylabs/ticket-bot/internal/model"
	"github.com/conakrylabs/ticket-bot/internal/session"
)

// Telegram adapts the purchase machine to Telegram's Bot API using
// getUpdates long polling, so no public webhook endpoint is required.
// Replies carry inline keyboards built from the machine's buttons;
// button taps come back as callback queries and are mapped onto the
// same inputs the textual commands produce.
type Telegram struct {
	Machine *flow.Machine
	Token   string
	APIBase string // overridable for tests, default https://api.telegram.org

	HTTP   *http.Client
	offset int64
}

// NewTelegram builds the adapter. The HTTP client timeout leaves
// headroom over the 30 second long-poll window.
func NewTelegram(machine *flow.Machine, token string) *Telegram {
	return &Telegram{
		Machine: machine,
		Token:   token,
		APIBase: "https://api.telegram.org",
		HTTP:    &http.Client{Timeout: 40 * time.Second},
	}
}

// Bot API payloads, trimmed to the fields the adapter reads.
type tgUpdate struct {
	UpdateID int64       `json:"update_id"`
	Message  *tgMessage  `json:"message"`
	Callback *tgCallback `json:"callback_query"`
}

type tgMessage struct {
	Chat tgChat  `json:"chat"`
	From *tgUser `json:"from"`
	Text string  `json:"text"`
}

type tgCallback struct {
	ID      string     `json:"id"`
	From    *tgUser    `json:"from"`
	Message *tgMessage `json:"message"`
	Data    string     `json:"data"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgUser struct {
	FirstName string `json:"first_name"`
}

type tgUpdatesResponse struct {
	OK     bool       `json:"ok"`
	Result []tgUpdate `json:"result"`
}

// Run long-polls getUpdates until ctx is cancelled. Poll errors are
// logged and retried after a short pause.
func (t *Telegram) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		updates, err := t.fetchUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("telegram: getUpdates: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			t.offset = u.UpdateID + 1
			t.handleUpdate(ctx, u)
		}
	}
}

func (t *Telegram) fetchUpdates(ctx context.Context) ([]tgUpdate, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?timeout=30&offset=%d", t.APIBase, t.Token, t.offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var parsed tgUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if !parsed.OK {
		return nil, fmt.Errorf("getUpdates returned ok=false (%d)", resp.StatusCode)
	}
	return parsed.Result, nil
}

func (t *Telegram) handleUpdate(ctx context.Context, u tgUpdate) {
	switch {
	case u.Message != nil && u.Message.Text != "":
		in := flow.ParseText(u.Message.Text)
		if u.Message.From != nil {
			in.UserName = u.Message.From.FirstName
		}
		t.dispatch(ctx, u.Message.Chat.ID, in)
	case u.Callback != nil:
		t.ackCallback(ctx, u.Callback.ID)
		if u.Callback.Message == nil {
			return
		}
		in := parseCallback(u.Callback.Data)
		if u.Callback.From != nil {
			in.UserName = u.Callback.From.FirstName
		}
		t.dispatch(ctx, u.Callback.Message.Chat.ID, in)
	}
}

func (t *Telegram) dispatch(ctx context.Context, chatID int64, in flow.Input) {
	key := session.Key{Channel: NameTelegram, UserID: strconv.FormatInt(chatID, 10)}
	reply := t.Machine.Handle(ctx, key, in, t)
	if err := t.sendReply(ctx, chatID, reply); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

// parseCallback maps a callback payload onto a machine input. Button
// payloads carry the same selections the user could have typed, so
// they reuse the numeric input path; stale taps fall through to the
// machine's re-prompt.
func parseCallback(data string) flow.Input {
	switch {
	case strings.HasPrefix(data, flow.CallbackSelectEvent):
		if n, err := strconv.Atoi(strings.TrimPrefix(data, flow.CallbackSelectEvent)); err == nil {
			return flow.Input{Kind: flow.KindNumber, Number: n}
		}
	case strings.HasPrefix(data, flow.CallbackSelectCategory):
		// Payload is "<eventID>:<position>"; only the position matters,
		// the session already pins the event.
		parts := strings.Split(strings.TrimPrefix(data, flow.CallbackSelectCategory), ":")
		if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			return flow.Input{Kind: flow.KindNumber, Number: n}
		}
	case strings.HasPrefix(data, flow.CallbackSelectQuantity):
		if n, err := strconv.Atoi(strings.TrimPrefix(data, flow.CallbackSelectQuantity)); err == nil {
			return flow.Input{Kind: flow.KindNumber, Number: n}
		}
	case data == flow.CallbackConfirm:
		return flow.Input{Kind: flow.KindConfirm}
	case strings.HasPrefix(data, flow.CallbackCheckPayment):
		return flow.Input{Kind: flow.KindVerify, Reference: strings.TrimPrefix(data, flow.CallbackCheckPayment)}
	case data == flow.CallbackCancel:
		return flow.Input{Kind: flow.KindCancel}
	}
	return flow.Input{Kind: flow.KindUnknown}
}

type tgKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type tgReplyMarkup struct {
	InlineKeyboard [][]tgKeyboardButton `json:"inline_keyboard"`
}

func (t *Telegram) sendReply(ctx context.Context, chatID int64, reply flow.Reply) error {
	body := map[string]any{
		"chat_id": chatID,
		"text":    reply.Text,
	}
	if len(reply.Buttons) > 0 {
		markup := tgReplyMarkup{InlineKeyboard: make([][]tgKeyboardButton, 0, len(reply.Buttons))}
		for _, b := range reply.Buttons {
			markup.InlineKeyboard = append(markup.InlineKeyboard, []tgKeyboardButton{{
				Text:         b.Label,
				CallbackData: b.Data,
				URL:          b.URL,
			}})
		}
		body["reply_markup"] = markup
	}
	return t.call(ctx, "sendMessage", body)
}

// SendText pushes a plain message without a keyboard. Used for
// background payment notifications.
func (t *Telegram) SendText(ctx context.Context, recipient, text string) error {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("bad chat id %q: %w", recipient, err)
	}
	return t.call(ctx, "sendMessage", map[string]any{"chat_id": chatID, "text": text})
}

// DeliverTicket uploads the voucher as a photo or document depending
// on its content type.
func (t *Telegram) DeliverTicket(ctx context.Context, recipient string, tk model.Ticket, payload []byte, contentType string) error {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("bad chat id %q: %w", recipient, err)
	}
	method, field := "sendDocument", "document"
	if isImage(contentType) {
		method, field = "sendPhoto", "photo"
	}
	caption := fmt.Sprintf("Ticket %s for %s (code %s)", tk.FormattedID, tk.EventName, tk.QRCode)
	return t.upload(ctx, method, chatID, field, "ticket_"+tk.FormattedID+fileExt(contentType), payload, caption)
}

// call posts a JSON body to one Bot API method.
func (t *Telegram) call(ctx context.Context, method string, body map[string]any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.APIBase, t.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, method)
}

// upload posts a multipart body with one attached file.
func (t *Telegram) upload(ctx context.Context, method string, chatID int64, field, filename string, payload []byte, caption string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if caption != "" {
		if err := mw.WriteField("caption", caption); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write(payload); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.APIBase, t.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return t.do(req, method)
}

func (t *Telegram) do(req *http.Request, method string) error {
	resp, err := t.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", method, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (t *Telegram) ackCallback(ctx context.Context, id string) {
	if err := t.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": id}); err != nil {
		log.Printf("telegram: answerCallbackQuery: %v", err)
	}
}
