package bolsa

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/colegio/internal/clock"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
)

// Adapter reads Bolsa de Comercio webhooks. Authentication happens before
// Normalize is called.
type Adapter struct {
	clock clock.Clock
}

func NewAdapter(clk clock.Clock) *Adapter {
	return &Adapter{clock: clk}
}

func (a *Adapter) Provider() string {
	return paymentdomain.ProviderBolsa
}

func (a *Adapter) Normalize(ctx context.Context, in paymentdomain.Inbound) (*paymentdomain.PaymentNotification, error) {
	event, err := ParseEvent(in.Body)
	if err != nil {
		return nil, err
	}

	ts, err := ParseTimestamp(event.Timestamp)
	if err != nil {
		ts = a.clock.Now()
	}

	// The client code is both the correlation key and the receipt payment id.
	return &paymentdomain.PaymentNotification{
		Provider:  paymentdomain.ProviderBolsa,
		Reference: event.ClientCode,
		RawStatus: event.Status,
		PaymentID: event.ClientCode,
		Timestamp: ts,
		Target:    TargetStatus(event.Status),
	}, nil
}

func ParseEvent(body []byte) (*paymentdomain.BolsaEvent, error) {
	var payload struct {
		TransactionID    json.RawMessage `json:"transaction_id"`
		ClientCode       json.RawMessage `json:"cod_cliente"`
		Status           string          `json:"estado_transaccion"`
		Timestamp        json.RawMessage `json:"timestamp"`
		NotificationType string          `json:"notification_type"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	event := &paymentdomain.BolsaEvent{
		ClientCode:       scalar(payload.ClientCode),
		Status:           strings.TrimSpace(payload.Status),
		Timestamp:        scalar(payload.Timestamp),
		NotificationType: strings.TrimSpace(payload.NotificationType),
	}
	if id := scalar(payload.TransactionID); id != "" {
		event.TransactionID = &id
	}
	if event.ClientCode == "" {
		return nil, paymentdomain.ErrMissingClientCode
	}
	return event, nil
}

// TargetStatus maps estado_transaccion to a receipt status. Only paid
// equivalents are meaningful.
func TargetStatus(status string) receiptdomain.Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pagado", "aprobado", "approved", "aprobada":
		return receiptdomain.StatusPaid
	}
	return ""
}

var errInvalidTimestamp = errors.New("invalid_timestamp")

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp reads epoch seconds, epoch milliseconds (13 digits or
// more) or ISO-8601. Zone-less times are UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errInvalidTimestamp
	}

	if isDigits(raw) {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, errInvalidTimestamp
		}
		if len(raw) >= 13 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errInvalidTimestamp
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// scalar renders a JSON string or number as text.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
