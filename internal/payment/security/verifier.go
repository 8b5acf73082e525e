package security

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"mime"
	"net"
	"strings"

	"github.com/smallbiznis/colegio/internal/clock"
	"github.com/smallbiznis/colegio/internal/config"
	"github.com/smallbiznis/colegio/internal/observability/metrics"
	"github.com/smallbiznis/colegio/internal/payment/adapters/bolsa"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	HeaderAPIKey    = "API-KEY"
	HeaderTimestamp = "X-TIMESTAMP"
	HeaderNonce     = "X-NONCE"
	HeaderSignature = "X-SIGNATURE"
)

// Rejection reasons, as recorded in metrics.
const (
	ReasonContentType  = "content_type"
	ReasonBodyTooLarge = "body_too_large"
	ReasonIPNotAllowed = "ip_not_allowed"
	ReasonAPIKey       = "api_key"
	ReasonTimestamp    = "timestamp"
	ReasonSkew         = "timestamp_skew"
	ReasonNonceMissing = "nonce_missing"
	ReasonReplay       = "nonce_replay"
	ReasonSignature    = "signature"
)

// RejectionError is a failed check. It unwraps to one of the payment
// domain security errors.
type RejectionError struct {
	Reason string
	Err    error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

type Params struct {
	fx.In

	Config  config.Config
	Policy  *config.WebhookPolicyHolder
	Clock   clock.Clock
	Nonces  NonceStore
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

// Verifier authenticates Bolsa webhooks: API key, timestamp window, single
// use nonce and an HMAC-SHA256 signature over the raw body.
type Verifier struct {
	apiKey  []byte
	secret  []byte
	policy  *config.WebhookPolicyHolder
	clock   clock.Clock
	nonces  NonceStore
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewVerifier(p Params) *Verifier {
	return &Verifier{
		apiKey:  []byte(strings.TrimSpace(p.Config.Bolsa.APIKey)),
		secret:  []byte(p.Config.Bolsa.Secret),
		policy:  p.Policy,
		clock:   p.Clock,
		nonces:  p.Nonces,
		log:     p.Log.Named("payment.security"),
		metrics: p.Metrics,
	}
}

func (v *Verifier) Verify(ctx context.Context, in paymentdomain.Inbound) error {
	policy := v.policy.Get()

	mediaType, _, err := mime.ParseMediaType(in.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return v.reject(ctx, in, ReasonContentType, paymentdomain.ErrUnsupportedMediaType)
	}

	if in.ContentLength > policy.MaxBodyBytes || int64(len(in.Body)) > policy.MaxBodyBytes {
		return v.reject(ctx, in, ReasonBodyTooLarge, paymentdomain.ErrPayloadTooLarge)
	}

	if len(policy.IPAllowlist) > 0 && !ipAllowed(ClientIP(in), policy.IPAllowlist) {
		return v.reject(ctx, in, ReasonIPNotAllowed, paymentdomain.ErrForbidden)
	}

	apiKey := []byte(strings.TrimSpace(in.Header.Get(HeaderAPIKey)))
	if len(v.apiKey) == 0 || subtle.ConstantTimeCompare(apiKey, v.apiKey) != 1 {
		return v.reject(ctx, in, ReasonAPIKey, paymentdomain.ErrUnauthorized)
	}

	ts, err := bolsa.ParseTimestamp(in.Header.Get(HeaderTimestamp))
	if err != nil {
		return v.reject(ctx, in, ReasonTimestamp, paymentdomain.ErrUnauthorized)
	}
	skew := v.clock.Now().Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > policy.TimestampSkew {
		return v.reject(ctx, in, ReasonSkew, paymentdomain.ErrUnauthorized)
	}

	nonce := strings.TrimSpace(in.Header.Get(HeaderNonce))
	if nonce == "" {
		return v.reject(ctx, in, ReasonNonceMissing, paymentdomain.ErrUnauthorized)
	}
	seen, err := v.nonces.Seen(ctx, nonce)
	if err != nil {
		return fmt.Errorf("nonce lookup: %w", err)
	}
	if seen {
		return v.reject(ctx, in, ReasonReplay, paymentdomain.ErrUnauthorized)
	}

	if !v.validSignature(in.Header.Get(HeaderSignature), in.Body) {
		return v.reject(ctx, in, ReasonSignature, paymentdomain.ErrUnauthorized)
	}

	marked, err := v.nonces.Mark(ctx, nonce, policy.TimestampSkew)
	if err != nil {
		return fmt.Errorf("nonce record: %w", err)
	}
	if !marked {
		return v.reject(ctx, in, ReasonReplay, paymentdomain.ErrUnauthorized)
	}
	return nil
}

// Sign returns the X-SIGNATURE value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) validSignature(header string, body []byte) bool {
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil || len(got) == 0 || len(v.secret) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (v *Verifier) reject(ctx context.Context, in paymentdomain.Inbound, reason string, err error) error {
	v.metrics.RecordSecurityRejection(ctx, paymentdomain.ProviderBolsa, reason)
	v.log.Warn("webhook rejected",
		zap.String("provider", paymentdomain.ProviderBolsa),
		zap.String("reason", reason),
		zap.String("client_ip", ClientIP(in)),
	)
	return &RejectionError{Reason: reason, Err: err}
}

// ClientIP is the first X-Forwarded-For entry, else the peer address.
func ClientIP(in paymentdomain.Inbound) string {
	if in.Header != nil {
		if xff := in.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(in.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(in.RemoteAddr)
	}
	return host
}

func ipAllowed(raw string, allowlist []string) bool {
	ip := net.ParseIP(raw)
	if ip == nil {
		return false
	}
	for _, entry := range allowlist {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil && network.Contains(ip) {
				return true
			}
			continue
		}
		if allowed := net.ParseIP(entry); allowed != nil && allowed.Equal(ip) {
			return true
		}
	}
	return false
}
