package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByFeeRecordID(ctx context.Context, db *gorm.DB, feeRecordID snowflake.ID) (*Receipt, error)
	// FindByPaymentID returns the most recent receipt opened with or settled
	// by paymentID. The correlation key wins over a confirmation.
	FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*Receipt, error)
	// InsertIfAbsent inserts receipt unless one already exists for its fee
	// record. It reports whether the row was written.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, receipt *Receipt) (bool, error)
	// MarkPaid moves a Pending receipt to Paid without touching its
	// correlation key. It reports false when the receipt was no longer Pending.
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, confirmation Confirmation) (bool, error)
	ListPending(ctx context.Context, db *gorm.DB, filter PendingFilter) ([]Receipt, error)
}

// PendingFilter selects Pending receipts last touched between UpdatedAfter
// and UpdatedBefore, oldest first. Zero bounds are open.
type PendingFilter struct {
	MethodPrefix  string
	UpdatedAfter  time.Time
	UpdatedBefore time.Time
	Limit         int
}
