package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() feerecorddomain.Repository {
	return &repo{}
}

const feeRecordColumns = `id, uuid, case_number, caption, party, court, place, filing_date, due_date,
	justice_fee, fixed_fee, due_amount, payer_email, created_at, deleted_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *feerecorddomain.FeeRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*feerecorddomain.FeeRecord, error) {
	var record feerecorddomain.FeeRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+feeRecordColumns+` FROM fee_records WHERE id = ? AND deleted_at IS NULL`,
		id,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindByUUID(ctx context.Context, db *gorm.DB, uuid string) (*feerecorddomain.FeeRecord, error) {
	var record feerecorddomain.FeeRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+feeRecordColumns+` FROM fee_records WHERE uuid = ? AND deleted_at IS NULL`,
		uuid,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE fee_records SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		at,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return feerecorddomain.ErrNotFound
	}
	return nil
}

func (r *repo) FindPrice(ctx context.Context, db *gorm.DB, period string) (*feerecorddomain.FeePrice, error) {
	var price feerecorddomain.FeePrice
	err := db.WithContext(ctx).Raw(
		`SELECT id, period, date, value, created_at, updated_at FROM fee_prices WHERE period = ?`,
		period,
	).Scan(&price).Error
	if err != nil {
		return nil, err
	}
	if price.ID == 0 {
		return nil, nil
	}
	return &price, nil
}

func (r *repo) FindLatestPriceBefore(ctx context.Context, db *gorm.DB, period string) (*feerecorddomain.FeePrice, error) {
	var price feerecorddomain.FeePrice
	err := db.WithContext(ctx).Raw(
		`SELECT id, period, date, value, created_at, updated_at
		 FROM fee_prices
		 WHERE period < ?
		 ORDER BY period DESC
		 LIMIT 1`,
		period,
	).Scan(&price).Error
	if err != nil {
		return nil, err
	}
	if price.ID == 0 {
		return nil, nil
	}
	return &price, nil
}

// UpsertPrice writes the price of a period, replacing the value and date of
// an existing row.
func (r *repo) UpsertPrice(ctx context.Context, db *gorm.DB, price *feerecorddomain.FeePrice) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"date", "value", "updated_at"}),
	}).Create(price).Error
}
