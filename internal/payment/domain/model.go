package domain

import (
	"net/http"
	"net/url"
	"time"

	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
)

const (
	ProviderMercadoPago = "mercadopago"
	ProviderBolsa       = "bolsa"
)

// Inbound is a webhook request as received, before any interpretation.
// Body holds the exact bytes the provider signed.
type Inbound struct {
	Body          []byte
	Header        http.Header
	Query         url.Values
	RemoteAddr    string
	ContentLength int64
}

// PaymentNotification is the provider-neutral form of a payment status
// report. Reference is the fee record UUID for Mercado Pago and the client
// code for Bolsa.
type PaymentNotification struct {
	Provider      string
	Reference     string
	RawStatus     string
	PaymentID     string
	PaymentMethod string
	Timestamp     time.Time
	// Target is empty when RawStatus maps to no receipt status.
	Target receiptdomain.Status
}

// MercadoPagoEvent is the inbound notification shape. Only the topic and
// the payment id are trusted; the rest comes from the status API.
type MercadoPagoEvent struct {
	Topic     string
	PaymentID string
}

// MercadoPagoPayment is the authoritative payment returned by the API.
type MercadoPagoPayment struct {
	ID                int64      `json:"id"`
	Status            string     `json:"status"`
	StatusDetail      string     `json:"status_detail"`
	ExternalReference string     `json:"external_reference"`
	PaymentTypeID     string     `json:"payment_type_id"`
	DateApproved      *time.Time `json:"date_approved"`
	DateCreated       *time.Time `json:"date_created"`
}

type MercadoPagoPreference struct {
	ID                string `json:"id"`
	ExternalReference string `json:"external_reference"`
}

// BolsaEvent is the body of a Bolsa de Comercio webhook.
type BolsaEvent struct {
	TransactionID    *string `json:"transaction_id"`
	ClientCode       string  `json:"cod_cliente"`
	Status           string  `json:"estado_transaccion"`
	Timestamp        string  `json:"timestamp"`
	NotificationType string  `json:"notification_type"`
}
