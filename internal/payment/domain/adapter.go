package domain

import "context"

// Adapter turns one provider's inbound request into a PaymentNotification.
type Adapter interface {
	Provider() string
	Normalize(ctx context.Context, in Inbound) (*PaymentNotification, error)
}

// StatusClient queries Mercado Pago for the authoritative state of payments.
type StatusClient interface {
	GetPayment(ctx context.Context, paymentID string) (*MercadoPagoPayment, error)
	GetPreference(ctx context.Context, preferenceID string) (*MercadoPagoPreference, error)
	SearchPayments(ctx context.Context, externalReference string) ([]MercadoPagoPayment, error)
}

// Verifier authenticates a raw inbound request before it is interpreted.
type Verifier interface {
	Verify(ctx context.Context, in Inbound) error
}
