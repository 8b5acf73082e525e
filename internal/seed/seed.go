package seed

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	"github.com/smallbiznis/colegio/pkg/civildate"
	"gorm.io/gorm"
)

var ErrInvalidSeedPrice = errors.New("invalid_seed_price")

// EnsureFeePrice publishes value as the fixed-fee price of the month
// containing now, but only on a database that has never had a price. Later
// months are carried forward by the fee record service.
func EnsureFeePrice(db *gorm.DB, node *snowflake.Node, now time.Time, value decimal.Decimal) (bool, error) {
	if db == nil || node == nil {
		return false, errors.New("seed database handle is required")
	}
	if !value.IsPositive() {
		return false, ErrInvalidSeedPrice
	}

	ctx := context.Background()
	seeded := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		seeded, err = ensureFeePriceTx(ctx, tx, node, now.UTC(), value)
		return err
	})
	return seeded, err
}

func ensureFeePriceTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, now time.Time, value decimal.Decimal) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&feerecorddomain.FeePrice{}).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	first := civil.Date{Year: now.Year(), Month: now.Month(), Day: 1}
	price := feerecorddomain.FeePrice{
		ID:        node.Generate(),
		Period:    feerecorddomain.PeriodOf(now),
		Date:      civildate.ToTime(first),
		Value:     value.Round(2),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&price).Error; err != nil {
		return false, err
	}
	return true, nil
}
