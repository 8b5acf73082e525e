package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *FeeRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FeeRecord, error)
	FindByUUID(ctx context.Context, db *gorm.DB, uuid string) (*FeeRecord, error)
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error

	FindPrice(ctx context.Context, db *gorm.DB, period string) (*FeePrice, error)
	// FindLatestPriceBefore returns the most recent price whose period sorts
	// before the given one.
	FindLatestPriceBefore(ctx context.Context, db *gorm.DB, period string) (*FeePrice, error)
	UpsertPrice(ctx context.Context, db *gorm.DB, price *FeePrice) error
}
