package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Apply moves the receipt of a fee record towards input.Target. Duplicate,
	// stale and backward notifications are ignored without writing.
	Apply(ctx context.Context, input ApplyInput) (*Result, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*Receipt, error)
	FindByFeeRecordID(ctx context.Context, feeRecordID snowflake.ID) (*Receipt, error)
	ListPending(ctx context.Context, filter PendingFilter) ([]Receipt, error)
}

type StatusResponse struct {
	Status        Status     `json:"status"`
	Paid          bool       `json:"paid"`
	ReceiptNumber string     `json:"receipt_number"`
	PaymentMethod string     `json:"payment_method"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	DownloadURL   string     `json:"download_url,omitempty"`
}
