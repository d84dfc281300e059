package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Link is the result of a successful payment-link creation.
type Link struct {
	PayURL          string // hosted page the buyer opens to pay
	AmountFormatted string // human-readable amount, as formatted by the gateway
}

// Status is the gateway's view of one transaction.
type Status struct {
	Status       string // raw gateway vocabulary ("success", "pending", ...)
	Description  string // human-readable status description
	ErrorMessage string // populated on failed transactions
}

// Gateway abstracts the hosted-payment provider. Implementations must
// treat CreateLink and GetStatus as plain blocking I/O; retry and
// backoff policy belongs to the provider, not to callers.
type Gateway interface {
	CreateLink(ctx context.Context, amount uint64, description, reference string) (*Link, error)
	GetStatus(ctx context.Context, reference string) (*Status, error)
}

// ErrGatewayUnavailable wraps transport-level failures talking to the
// gateway. The session is left unchanged so the user can retry.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Client talks to a PayCard-style gateway: link creation is a
// form-encoded POST, status is a GET on a per-reference URL. Both
// endpoints answer JSON with a zero "code" on success.
type Client struct {
	commerceCode string
	createURL    string
	statusBase   string // status URL is statusBase + "/" + reference + "/status"
	callbackURL  string // optional redirect after payment
	http         *http.Client
}

// NewClient builds a gateway client. statusBase must not end with a
// slash. callbackURL may be empty.
func NewClient(commerceCode, createURL, statusBase, callbackURL string) *Client {
	return &Client{
		commerceCode: commerceCode,
		createURL:    createURL,
		statusBase:   strings.TrimRight(statusBase, "/"),
		callbackURL:  callbackURL,
		http:         &http.Client{Timeout: 15 * time.Second},
	}
}

type createResponse struct {
	Code            int    `json:"code"`
	PaymentURL      string `json:"payment_url"`
	AmountFormatted string `json:"payment_amount_formatted"`
	ErrorMessage    string `json:"error_message"`
}

type statusResponse struct {
	Code              int    `json:"code"`
	Status            string `json:"status"`
	StatusDescription string `json:"status_description"`
	ErrorMessage      string `json:"error_message"`
}

// CreateLink requests a hosted payment link for the given amount and
// reference. The description is shown to the buyer on the payment
// page. Transport errors are wrapped in ErrGatewayUnavailable;
// gateway-level rejections (non-zero code) are returned verbatim.
func (c *Client) CreateLink(ctx context.Context, amount uint64, description, reference string) (*Link, error) {
	form := url.Values{}
	form.Set("c", c.commerceCode)
	form.Set("paycard-amount", strconv.FormatUint(amount, 10))
	form.Set("paycard-description", description)
	form.Set("paycard-operation-reference", reference)
	if c.callbackURL != "" {
		form.Set("paycard-callback-url", c.callbackURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.createURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: create link: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	var body createResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode create response: %v", ErrGatewayUnavailable, err)
	}
	if body.Code != 0 || body.PaymentURL == "" {
		msg := body.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("gateway returned code %d", body.Code)
		}
		return nil, fmt.Errorf("create link rejected: %s", msg)
	}
	return &Link{PayURL: body.PaymentURL, AmountFormatted: body.AmountFormatted}, nil
}

// GetStatus fetches the current status of a transaction by reference.
func (c *Client) GetStatus(ctx context.Context, reference string) (*Status, error) {
	statusURL := c.statusBase + "/" + url.PathEscape(reference) + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get status: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode status response: %v", ErrGatewayUnavailable, err)
	}
	if body.Code != 0 {
		msg := body.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("gateway returned code %d", body.Code)
		}
		return nil, fmt.Errorf("status query rejected: %s", msg)
	}
	return &Status{
		Status:       body.Status,
		Description:  body.StatusDescription,
		ErrorMessage: body.ErrorMessage,
	}, nil
}
