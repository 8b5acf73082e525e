package seed

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	"github.com/smallbiznis/colegio/internal/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.AutoMigrate(db))
	return db
}

func TestEnsureFeePriceSeedsEmptyDatabaseOnce(t *testing.T) {
	db := openDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2024, 6, 17, 12, 0, 0, 0, time.UTC)

	seeded, err := EnsureFeePrice(db, node, now, decimal.RequireFromString("4500"))
	require.NoError(t, err)
	assert.True(t, seeded)

	var price feerecorddomain.FeePrice
	require.NoError(t, db.First(&price).Error)
	assert.Equal(t, "2024-06", price.Period)
	assert.Equal(t, "4500.00", price.Value.StringFixed(2))
	assert.Equal(t, 1, price.Date.Day())

	seeded, err = EnsureFeePrice(db, node, now.AddDate(0, 2, 0), decimal.RequireFromString("9999"))
	require.NoError(t, err)
	assert.False(t, seeded)

	var count int64
	require.NoError(t, db.Model(&feerecorddomain.FeePrice{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEnsureFeePriceRejectsNonPositive(t *testing.T) {
	db := openDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	_, err = EnsureFeePrice(db, node, time.Now(), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidSeedPrice)
}
