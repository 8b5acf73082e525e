package domain

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)

	// Resolve accrues the published series over [start, end).
	Resolve(ctx context.Context, rateType RateType, start, end civil.Date) (*Accrual, error)
	// ResolveFixed accrues a caller-supplied annual rate over [start, end).
	ResolveFixed(ctx context.Context, annualRate decimal.Decimal, start, end civil.Date) (*Accrual, error)
}

type CreateRequest struct {
	RateType  string `json:"rate_type"`
	Rate      string `json:"rate"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to,omitempty"`
}

type UpdateRequest struct {
	ID        string  `json:"id"`
	Rate      *string `json:"rate,omitempty"`
	ValidFrom *string `json:"valid_from,omitempty"`
	ValidTo   *string `json:"valid_to,omitempty"`
	// OpenEnded clears valid_to.
	OpenEnded bool `json:"open_ended,omitempty"`
}

type ListRequest struct {
	RateType       string `form:"rate_type"`
	IncludeDeleted bool   `form:"include_deleted"`
}

type Response struct {
	ID        string      `json:"id"`
	RateType  RateType    `json:"rate_type"`
	Rate      string      `json:"rate"`
	ValidFrom civil.Date  `json:"valid_from"`
	ValidTo   *civil.Date `json:"valid_to"`
	Deleted   bool        `json:"deleted"`
}
