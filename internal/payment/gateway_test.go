package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "MERCHANT01", r.PostForm.Get("c"))
		assert.Equal(t, "150000", r.PostForm.Get("paycard-amount"))
		assert.Equal(t, "2503-ABCDEF01", r.PostForm.Get("paycard-operation-reference"))
		assert.Equal(t, "Purchase of 3 ticket(s)", r.PostForm.Get("paycard-description"))
		assert.Empty(t, r.PostForm.Get("paycard-callback-url"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"payment_url":"https://pay.example/p/xyz","payment_amount_formatted":"150 000 GNF"}`))
	}))
	defer srv.Close()

	c := NewClient("MERCHANT01", srv.URL, srv.URL, "")
	link, err := c.CreateLink(context.Background(), 150000, "Purchase of 3 ticket(s)", "2503-ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/p/xyz", link.PayURL)
	assert.Equal(t, "150 000 GNF", link.AmountFormatted)
}

func TestCreateLinkRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":13,"error_message":"invalid merchant"}`))
	}))
	defer srv.Close()

	c := NewClient("BAD", srv.URL, srv.URL, "")
	link, err := c.CreateLink(context.Background(), 1000, "d", "2503-00000000")
	assert.Nil(t, link)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid merchant")
	assert.NotErrorIs(t, err, ErrGatewayUnavailable)
}

func TestCreateLinkTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient("MERCHANT01", srv.URL, srv.URL, "")
	_, err := c.CreateLink(context.Background(), 1000, "d", "2503-00000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2503-ABCDEF01/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"status":"success","status_description":"Transaction completed"}`))
	}))
	defer srv.Close()

	c := NewClient("MERCHANT01", srv.URL, srv.URL, "")
	status, err := c.GetStatus(context.Background(), "2503-ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, "success", status.Status)
	assert.Equal(t, "Transaction completed", status.Description)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, classify("success"))
	assert.Equal(t, OutcomeSuccess, classify("COMPLETED"))
	assert.Equal(t, OutcomeSuccess, classify(" Paid "))
	assert.Equal(t, OutcomePending, classify("pending"))
	assert.Equal(t, OutcomePending, classify("Processing"))
	assert.Equal(t, OutcomePending, classify("initiated"))
	assert.Equal(t, OutcomeFailed, classify("failed"))
	assert.Equal(t, OutcomeFailed, classify("cancelled"))
	assert.Equal(t, OutcomeFailed, classify(""))
}
