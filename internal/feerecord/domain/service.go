package domain

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Delete(ctx context.Context, id string) error

	// CurrentPrice returns the price of the month containing now, copying the
	// latest earlier price forward when the month has none yet.
	CurrentPrice(ctx context.Context) (*PriceResponse, error)
	SetPrice(ctx context.Context, req SetPriceRequest) (*PriceResponse, error)
}

// CheckoutMethod selects an offline payment channel that needs a client code
// before the payer reaches the provider.
type CheckoutMethod string

const (
	CheckoutNone      CheckoutMethod = ""
	CheckoutBolsaQR   CheckoutMethod = "bcm_qr"
	CheckoutBolsaSlip CheckoutMethod = "bcm_boleta"
)

type CreateRequest struct {
	CaseNumber    string         `json:"juicio_n"`
	Caption       string         `json:"caratula"`
	Party         string         `json:"parte"`
	Court         string         `json:"juzgado"`
	Place         string         `json:"lugar"`
	FilingDate    string         `json:"fecha_inicio"`
	DueDate       string         `json:"fecha"`
	JusticeFee    string         `json:"tasa_justicia"`
	FixedFee      string         `json:"derecho_fijo_5pc"`
	DueAmount     string         `json:"total_depositado"`
	PayerEmail    string         `json:"email"`
	PaymentMethod CheckoutMethod `json:"payment_method,omitempty"`
}

type Response struct {
	ID         string     `json:"id"`
	UUID       string     `json:"uuid"`
	CaseNumber string     `json:"juicio_n"`
	Caption    string     `json:"caratula"`
	Party      string     `json:"parte"`
	Court      string     `json:"juzgado"`
	Place      string     `json:"lugar"`
	FilingDate civil.Date `json:"fecha_inicio"`
	DueDate    civil.Date `json:"fecha"`
	JusticeFee string     `json:"tasa_justicia"`
	FixedFee   string     `json:"derecho_fijo_5pc"`
	DueAmount  string     `json:"total_depositado"`
	PayerEmail string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`

	// Set when a checkout method issued a provider client code.
	PaymentMethod string `json:"payment_method,omitempty"`
	PaymentID     string `json:"payment_id,omitempty"`
}

type SetPriceRequest struct {
	Date  string `json:"fecha"`
	Value string `json:"value"`
}

type PriceResponse struct {
	Period string     `json:"period"`
	Date   civil.Date `json:"fecha"`
	Value  string     `json:"value"`
	Copied bool       `json:"copied,omitempty"`
}
