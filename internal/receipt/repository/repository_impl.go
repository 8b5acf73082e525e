package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() receiptdomain.Repository {
	return &repo{}
}

const receiptColumns = `id, receipt_number, fee_record_id, payment_id, status, payment_method,
	confirmed_payment_id, confirmed_by, case_number, caption, court, filing_date, due_date, due_amount, justice_fee,
	paid_at, created_at, updated_at`

func (r *repo) FindByFeeRecordID(ctx context.Context, db *gorm.DB, feeRecordID snowflake.ID) (*receiptdomain.Receipt, error) {
	var receipt receiptdomain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT `+receiptColumns+` FROM receipts WHERE fee_record_id = ?`,
		feeRecordID,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}

func (r *repo) FindByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*receiptdomain.Receipt, error) {
	var receipt receiptdomain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT `+receiptColumns+`
		 FROM receipts
		 WHERE payment_id = ? OR confirmed_payment_id = ?
		 ORDER BY CASE WHEN payment_id = ? THEN 0 ELSE 1 END, created_at DESC, id DESC
		 LIMIT 1`,
		paymentID, paymentID, paymentID,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, receipt *receiptdomain.Receipt) (bool, error) {
	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fee_record_id"}},
		DoNothing: true,
	}).Create(receipt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, confirmation receiptdomain.Confirmation) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE receipts
		 SET status = ?, confirmed_payment_id = ?, confirmed_by = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		receiptdomain.StatusPaid,
		confirmation.PaymentID,
		confirmation.Provider,
		confirmation.PaidAt,
		confirmation.PaidAt,
		id,
		receiptdomain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, filter receiptdomain.PendingFilter) ([]receiptdomain.Receipt, error) {
	query := db.WithContext(ctx).
		Model(&receiptdomain.Receipt{}).
		Where("status = ?", receiptdomain.StatusPending)
	if !filter.UpdatedAfter.IsZero() {
		query = query.Where("updated_at >= ?", filter.UpdatedAfter)
	}
	if !filter.UpdatedBefore.IsZero() {
		query = query.Where("updated_at < ?", filter.UpdatedBefore)
	}
	if prefix := strings.TrimSpace(filter.MethodPrefix); prefix != "" {
		query = query.Where("payment_method LIKE ?", prefix+"%")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var receipts []receiptdomain.Receipt
	if err := query.Order("updated_at ASC, id ASC").Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}
