package domain

import (
	"context"

	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
)

type Service interface {
	// HandleWebhook authenticates, normalizes and reconciles one notification.
	HandleWebhook(ctx context.Context, provider string, in Inbound) (*WebhookResult, error)
	// PollPreference checks a Mercado Pago preference for an approved payment
	// and reconciles it the same way a webhook would.
	PollPreference(ctx context.Context, preferenceID string) (*PollResult, error)
	// RecheckPayment fetches a known Mercado Pago payment and reconciles its
	// current status. Used to recover notifications that never arrived.
	RecheckPayment(ctx context.Context, paymentID string) (*WebhookResult, error)
}

type WebhookResult struct {
	Provider string
	// Ignored is set when the notification changed no receipt.
	Ignored  bool
	Outcome  receiptdomain.Outcome
	Receipt  *receiptdomain.Receipt
}

type PollResult struct {
	Status            string `json:"status"`
	PaymentID         string `json:"payment_id,omitempty"`
	ExternalReference string `json:"external_reference,omitempty"`
	ReceiptStatus     string `json:"receipt_status,omitempty"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
}
