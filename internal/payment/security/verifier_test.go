package security

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/smallbiznis/colegio/internal/clock"
	"github.com/smallbiznis/colegio/internal/config"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAPIKey = "bcm-api-key"
	testSecret = "bcm-shared-secret"
)

var testNow = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

type harness struct {
	clock    *clock.FakeClock
	nonces   *MemoryNonceStore
	verifier *Verifier
}

func newHarness(t *testing.T, allowlist ...string) harness {
	t.Helper()
	clk := clock.NewFakeClock(testNow)
	nonces := NewMemoryNonceStore(clk)
	policy := config.NewStaticWebhookPolicyHolder(config.WebhookPolicy{
		IPAllowlist:   allowlist,
		TimestampSkew: 300 * time.Second,
		MaxBodyBytes:  1024,
	})
	v := NewVerifier(Params{
		Config: config.Config{Bolsa: config.BolsaConfig{APIKey: testAPIKey, Secret: testSecret}},
		Policy: policy,
		Clock:  clk,
		Nonces: nonces,
		Log:    zap.NewNop(),
	})
	return harness{clock: clk, nonces: nonces, verifier: v}
}

func signedRequest(body string, nonce string) paymentdomain.Inbound {
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set(HeaderAPIKey, testAPIKey)
	h.Set(HeaderTimestamp, strconv.FormatInt(testNow.Unix(), 10))
	h.Set(HeaderNonce, nonce)
	h.Set(HeaderSignature, Sign(testSecret, []byte(body)))
	return paymentdomain.Inbound{
		Body:          []byte(body),
		Header:        h,
		RemoteAddr:    "203.0.113.7:51234",
		ContentLength: int64(len(body)),
	}
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var rejection *RejectionError
	require.ErrorAs(t, err, &rejection)
	return rejection.Reason
}

const paidBody = `{"cod_cliente":"X1","estado_transaccion":"pagado"}`

func TestVerifyAcceptsSignedRequest(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.verifier.Verify(context.Background(), signedRequest(paidBody, "n-1")))
	assert.Equal(t, 1, h.nonces.Len())
}

func TestVerifyRejectsFlippedBodyByte(t *testing.T) {
	h := newHarness(t)
	in := signedRequest(paidBody, "n-1")

	for i := range in.Body {
		tampered := in
		tampered.Body = append([]byte(nil), in.Body...)
		tampered.Body[i] ^= 0x01
		tampered.Header = in.Header.Clone()
		tampered.Header.Set(HeaderNonce, "n-flip-"+strconv.Itoa(i))

		err := h.verifier.Verify(context.Background(), tampered)
		require.ErrorIs(t, err, paymentdomain.ErrUnauthorized, "byte %d", i)
		assert.Equal(t, ReasonSignature, reasonOf(t, err))
	}
	// rejected requests never consume their nonce
	assert.Equal(t, 0, h.nonces.Len())
}

func TestVerifyRejectsReplay(t *testing.T) {
	h := newHarness(t)
	in := signedRequest(paidBody, "n-1")
	require.NoError(t, h.verifier.Verify(context.Background(), in))

	err := h.verifier.Verify(context.Background(), in)
	require.ErrorIs(t, err, paymentdomain.ErrUnauthorized)
	assert.Equal(t, ReasonReplay, reasonOf(t, err))
}

func TestVerifyNonceExpiresWithSkewWindow(t *testing.T) {
	h := newHarness(t)
	in := signedRequest(paidBody, "n-1")
	require.NoError(t, h.verifier.Verify(context.Background(), in))

	h.clock.Advance(301 * time.Second)
	assert.Equal(t, 1, h.nonces.Sweep())
	// the old timestamp is now outside the window as well
	err := h.verifier.Verify(context.Background(), in)
	assert.Equal(t, ReasonSkew, reasonOf(t, err))
}

func TestVerifyChecks(t *testing.T) {
	tests := []struct {
		name      string
		allowlist []string
		mutate    func(*paymentdomain.Inbound)
		wantErr   error
		reason    string
	}{
		{
			name:    "form content type",
			mutate:  func(in *paymentdomain.Inbound) { in.Header.Set("Content-Type", "application/x-www-form-urlencoded") },
			wantErr: paymentdomain.ErrUnsupportedMediaType,
			reason:  ReasonContentType,
		},
		{
			name:    "missing content type",
			mutate:  func(in *paymentdomain.Inbound) { in.Header.Del("Content-Type") },
			wantErr: paymentdomain.ErrUnsupportedMediaType,
			reason:  ReasonContentType,
		},
		{
			name:    "declared length too large",
			mutate:  func(in *paymentdomain.Inbound) { in.ContentLength = 4096 },
			wantErr: paymentdomain.ErrPayloadTooLarge,
			reason:  ReasonBodyTooLarge,
		},
		{
			name:      "ip outside allowlist",
			allowlist: []string{"198.51.100.0/24"},
			wantErr:   paymentdomain.ErrForbidden,
			reason:    ReasonIPNotAllowed,
		},
		{
			name:      "forwarded ip outside allowlist",
			allowlist: []string{"203.0.113.7"},
			mutate:    func(in *paymentdomain.Inbound) { in.Header.Set("X-Forwarded-For", "192.0.2.1, 203.0.113.7") },
			wantErr:   paymentdomain.ErrForbidden,
			reason:    ReasonIPNotAllowed,
		},
		{
			name:    "wrong api key",
			mutate:  func(in *paymentdomain.Inbound) { in.Header.Set(HeaderAPIKey, "nope") },
			wantErr: paymentdomain.ErrUnauthorized,
			reason:  ReasonAPIKey,
		},
		{
			name:    "unparseable timestamp",
			mutate:  func(in *paymentdomain.Inbound) { in.Header.Set(HeaderTimestamp, "ayer") },
			wantErr: paymentdomain.ErrUnauthorized,
			reason:  ReasonTimestamp,
		},
		{
			name: "timestamp too old",
			mutate: func(in *paymentdomain.Inbound) {
				in.Header.Set(HeaderTimestamp, strconv.FormatInt(testNow.Add(-301*time.Second).Unix(), 10))
			},
			wantErr: paymentdomain.ErrUnauthorized,
			reason:  ReasonSkew,
		},
		{
			name: "timestamp in the future",
			mutate: func(in *paymentdomain.Inbound) {
				in.Header.Set(HeaderTimestamp, testNow.Add(10*time.Minute).Format(time.RFC3339))
			},
			wantErr: paymentdomain.ErrUnauthorized,
			reason:  ReasonSkew,
		},
		{
			name:    "missing nonce",
			mutate:  func(in *paymentdomain.Inbound) { in.Header.Del(HeaderNonce) },
			wantErr: paymentdomain.ErrUnauthorized,
			reason:  ReasonNonceMissing,
		},
		{
			name:    "signature not base64",
			mutate:  func(in *paymentdomain.Inbound) { in.Header.Set(HeaderSignature, "%%%") },
			wantErr: paymentdomain.ErrUnauthorized,
			reason:  ReasonSignature,
		},
		{
			name:    "signature with another secret",
			mutate:  func(in *paymentdomain.Inbound) { in.Header.Set(HeaderSignature, Sign("other", in.Body)) },
			wantErr: paymentdomain.ErrUnauthorized,
			reason:  ReasonSignature,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.allowlist...)
			in := signedRequest(paidBody, "n-"+tt.name)
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			err := h.verifier.Verify(context.Background(), in)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.reason, reasonOf(t, err))
		})
	}
}

func TestVerifyAllowlistAcceptsCIDRAndForwardedFor(t *testing.T) {
	h := newHarness(t, "10.0.0.1", "203.0.113.0/24")
	require.NoError(t, h.verifier.Verify(context.Background(), signedRequest(paidBody, "n-1")))

	in := signedRequest(paidBody, "n-2")
	in.RemoteAddr = "172.16.0.9:443"
	in.Header.Set("X-Forwarded-For", "10.0.0.1")
	require.NoError(t, h.verifier.Verify(context.Background(), in))
}

func TestVerifyAcceptsMillisecondAndISOTimestamps(t *testing.T) {
	h := newHarness(t)

	in := signedRequest(paidBody, "n-ms")
	in.Header.Set(HeaderTimestamp, strconv.FormatInt(testNow.UnixMilli(), 10))
	require.NoError(t, h.verifier.Verify(context.Background(), in))

	in = signedRequest(paidBody, "n-iso")
	in.Header.Set(HeaderTimestamp, "2024-05-02T09:58:00")
	require.NoError(t, h.verifier.Verify(context.Background(), in))
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", ClientIP(paymentdomain.Inbound{RemoteAddr: "203.0.113.7:1"}))
	assert.Equal(t, "192.0.2.1", ClientIP(paymentdomain.Inbound{
		RemoteAddr: "203.0.113.7:1",
		Header:     http.Header{"X-Forwarded-For": {" 192.0.2.1 , 10.0.0.1"}},
	}))
}
