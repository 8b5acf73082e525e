package mercadopago

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/smallbiznis/colegio/internal/clock"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		in      paymentdomain.Inbound
		wantID  string
		wantErr error
	}{
		{
			name:   "v1 body with string id",
			in:     paymentdomain.Inbound{Body: []byte(`{"type":"payment","data":{"id":"123"}}`)},
			wantID: "123",
		},
		{
			name:   "v1 body with numeric id",
			in:     paymentdomain.Inbound{Body: []byte(`{"type":"payment","data":{"id":98765432101}}`)},
			wantID: "98765432101",
		},
		{
			name:   "simulator query",
			in:     paymentdomain.Inbound{Query: url.Values{"topic": {"payment"}, "id": {"55"}}},
			wantID: "55",
		},
		{
			name:   "query with data.id",
			in:     paymentdomain.Inbound{Query: url.Values{"type": {"payment"}, "data.id": {"56"}}},
			wantID: "56",
		},
		{
			name:    "merchant order topic",
			in:      paymentdomain.Inbound{Body: []byte(`{"type":"merchant_order","data":{"id":"1"}}`)},
			wantErr: paymentdomain.ErrEventIgnored,
		},
		{
			name:    "payment without id",
			in:      paymentdomain.Inbound{Body: []byte(`{"type":"payment","data":{}}`)},
			wantErr: paymentdomain.ErrMissingPaymentID,
		},
		{
			name:    "broken json",
			in:      paymentdomain.Inbound{Body: []byte(`{"type":`)},
			wantErr: paymentdomain.ErrInvalidPayload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseEvent(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, event.PaymentID)
		})
	}
}

func TestTargetStatusAndMethod(t *testing.T) {
	assert.Equal(t, receiptdomain.StatusPaid, TargetStatus("approved"))
	assert.Equal(t, receiptdomain.StatusPending, TargetStatus("in_process"))
	assert.Equal(t, receiptdomain.StatusPending, TargetStatus("authorized"))
	assert.Equal(t, receiptdomain.Status(""), TargetStatus("rejected"))

	assert.Equal(t, "Mercado Pago(TC)", PaymentMethod("credit_card"))
	assert.Equal(t, "Mercado Pago(TD)", PaymentMethod("debit_card"))
	assert.Equal(t, "Mercado Pago(QR)", PaymentMethod("account_money"))
}

func TestClientGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/payments/123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":123,"status":"approved","external_reference":"ref-1","payment_type_id":"debit_card","date_approved":"2024-01-15T10:20:30.000-03:00"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{AccessToken: "test-token", BaseURL: srv.URL})
	payment, err := client.GetPayment(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, int64(123), payment.ID)
	assert.Equal(t, "approved", payment.Status)
	require.NotNil(t, payment.DateApproved)
	assert.Equal(t, time.Date(2024, 1, 15, 13, 20, 30, 0, time.UTC), payment.DateApproved.UTC())
}

func TestClientNon2xxIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{AccessToken: "t", BaseURL: srv.URL})
	_, err := client.GetPayment(context.Background(), "1")
	assert.ErrorIs(t, err, paymentdomain.ErrProviderUnavailable)
}

func TestClientTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(ClientConfig{AccessToken: "t", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.GetPayment(context.Background(), "1")
	assert.ErrorIs(t, err, paymentdomain.ErrProviderUnavailable)
}

func TestClientSearchAndPreference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/checkout/preferences/pref-1":
			_, _ = w.Write([]byte(`{"id":"pref-1","external_reference":"ref-9"}`))
		case "/v1/payments/search":
			assert.Equal(t, "ref-9", r.URL.Query().Get("external_reference"))
			_, _ = w.Write([]byte(`{"results":[{"id":7,"status":"approved","external_reference":"ref-9"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{AccessToken: "t", BaseURL: srv.URL})
	pref, err := client.GetPreference(context.Background(), "pref-1")
	require.NoError(t, err)
	assert.Equal(t, "ref-9", pref.ExternalReference)

	results, err := client.SearchPayments(context.Background(), "ref-9")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(7), results[0].ID)
}

type stubClient struct {
	payment *paymentdomain.MercadoPagoPayment
	err     error
}

func (c *stubClient) GetPayment(ctx context.Context, id string) (*paymentdomain.MercadoPagoPayment, error) {
	return c.payment, c.err
}

func (c *stubClient) GetPreference(ctx context.Context, id string) (*paymentdomain.MercadoPagoPreference, error) {
	return nil, errors.New("not used")
}

func (c *stubClient) SearchPayments(ctx context.Context, ref string) ([]paymentdomain.MercadoPagoPayment, error) {
	return nil, errors.New("not used")
}

func TestAdapterNormalize(t *testing.T) {
	adapter := NewAdapter(&stubClient{payment: &paymentdomain.MercadoPagoPayment{
		ID:                123,
		Status:            "approved",
		ExternalReference: " 5f0c6a8e-1111-4c4c-9a9a-000000000001 ",
		PaymentTypeID:     "credit_card",
	}}, clock.SystemClock{})

	n, err := adapter.Normalize(context.Background(), paymentdomain.Inbound{
		Body: []byte(`{"type":"payment","data":{"id":"123"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.ProviderMercadoPago, n.Provider)
	assert.Equal(t, "5f0c6a8e-1111-4c4c-9a9a-000000000001", n.Reference)
	assert.Equal(t, "123", n.PaymentID)
	assert.Equal(t, receiptdomain.StatusPaid, n.Target)
	assert.Equal(t, "Mercado Pago(TC)", n.PaymentMethod)
}

func TestAdapterNormalizePropagatesLookupFailure(t *testing.T) {
	adapter := NewAdapter(&stubClient{err: paymentdomain.ErrProviderUnavailable}, clock.SystemClock{})
	_, err := adapter.Normalize(context.Background(), paymentdomain.Inbound{
		Body: []byte(`{"type":"payment","data":{"id":"123"}}`),
	})
	assert.ErrorIs(t, err, paymentdomain.ErrProviderUnavailable)
}

func TestFromPaymentTimestamp(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC))
	adapter := NewAdapter(&stubClient{}, clk)

	undated := adapter.FromPayment(&paymentdomain.MercadoPagoPayment{ID: 9, Status: "pending"})
	assert.Equal(t, clk.Now(), undated.Timestamp)

	approvedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("ART", -3*3600))
	approved := adapter.FromPayment(&paymentdomain.MercadoPagoPayment{ID: 9, Status: "approved", DateApproved: &approvedAt})
	assert.Equal(t, approvedAt.UTC(), approved.Timestamp)
}
