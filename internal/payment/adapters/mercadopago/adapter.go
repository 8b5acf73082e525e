package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/smallbiznis/colegio/internal/clock"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
)

const topicPayment = "payment"

// Adapter reads Mercado Pago notifications. The notification itself is not
// trusted: every field but the payment id is taken from the status API.
type Adapter struct {
	client paymentdomain.StatusClient
	clock  clock.Clock
}

func NewAdapter(client paymentdomain.StatusClient, clk clock.Clock) *Adapter {
	return &Adapter{client: client, clock: clk}
}

func (a *Adapter) Provider() string {
	return paymentdomain.ProviderMercadoPago
}

func (a *Adapter) Normalize(ctx context.Context, in paymentdomain.Inbound) (*paymentdomain.PaymentNotification, error) {
	event, err := ParseEvent(in)
	if err != nil {
		return nil, err
	}

	payment, err := a.client.GetPayment(ctx, event.PaymentID)
	if err != nil {
		return nil, err
	}
	return a.fromPayment(event.PaymentID, payment), nil
}

// FromPayment normalizes a payment obtained from the API directly, as the
// polling path does.
func (a *Adapter) FromPayment(payment *paymentdomain.MercadoPagoPayment) *paymentdomain.PaymentNotification {
	return a.fromPayment("", payment)
}

func (a *Adapter) fromPayment(eventPaymentID string, payment *paymentdomain.MercadoPagoPayment) *paymentdomain.PaymentNotification {
	paymentID := eventPaymentID
	if payment.ID != 0 {
		paymentID = strconv.FormatInt(payment.ID, 10)
	}

	// Payments without dates are stamped when we saw them.
	ts := a.clock.Now()
	switch {
	case payment.DateApproved != nil:
		ts = payment.DateApproved.UTC()
	case payment.DateCreated != nil:
		ts = payment.DateCreated.UTC()
	}

	return &paymentdomain.PaymentNotification{
		Provider:      paymentdomain.ProviderMercadoPago,
		Reference:     strings.TrimSpace(payment.ExternalReference),
		RawStatus:     payment.Status,
		PaymentID:     paymentID,
		PaymentMethod: PaymentMethod(payment.PaymentTypeID),
		Timestamp:     ts,
		Target:        TargetStatus(payment.Status),
	}
}

// ParseEvent extracts the topic and payment id from a v1 JSON body or, for
// the dashboard simulator, from the query string.
func ParseEvent(in paymentdomain.Inbound) (*paymentdomain.MercadoPagoEvent, error) {
	event := &paymentdomain.MercadoPagoEvent{}

	if body := bytes.TrimSpace(in.Body); len(body) > 0 {
		var payload struct {
			Type  string `json:"type"`
			Topic string `json:"topic"`
			Data  struct {
				ID json.RawMessage `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		event.Topic = firstNonEmpty(payload.Type, payload.Topic)
		event.PaymentID = rawID(payload.Data.ID)
	}

	if event.PaymentID == "" && in.Query != nil {
		event.Topic = firstNonEmpty(in.Query.Get("topic"), in.Query.Get("type"))
		event.PaymentID = strings.TrimSpace(firstNonEmpty(in.Query.Get("id"), in.Query.Get("data.id")))
	}

	event.Topic = strings.ToLower(strings.TrimSpace(event.Topic))
	if event.Topic != topicPayment {
		return nil, paymentdomain.ErrEventIgnored
	}
	if event.PaymentID == "" {
		return nil, paymentdomain.ErrMissingPaymentID
	}
	return event, nil
}

// TargetStatus maps a Mercado Pago payment status to a receipt status.
// Statuses with no receipt meaning map to "".
func TargetStatus(status string) receiptdomain.Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "approved":
		return receiptdomain.StatusPaid
	case "pending", "in_process", "authorized":
		return receiptdomain.StatusPending
	}
	return ""
}

func PaymentMethod(paymentTypeID string) string {
	switch strings.TrimSpace(paymentTypeID) {
	case "credit_card":
		return "Mercado Pago(TC)"
	case "debit_card":
		return "Mercado Pago(TD)"
	}
	return "Mercado Pago(QR)"
}

// rawID accepts the id as a JSON string or number.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
