package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// FeeRecord is the filing-fee ("derecho fijo") obligation of a case.
// It is immutable once created apart from soft deletion.
type FeeRecord struct {
	ID   snowflake.ID `gorm:"primaryKey"`
	UUID string       `gorm:"column:uuid;type:varchar(36);not null;uniqueIndex:ux_fee_records_uuid"`

	CaseNumber string          `gorm:"column:case_number;type:varchar(80);not null;index"`
	Caption    string          `gorm:"column:caption;type:varchar(255)"`
	Party      string          `gorm:"column:party;type:varchar(255)"`
	Court      string          `gorm:"column:court;type:varchar(255)"`
	Place      string          `gorm:"column:place;type:varchar(80)"`
	FilingDate time.Time       `gorm:"column:filing_date;type:date;not null"`
	DueDate    time.Time       `gorm:"column:due_date;type:date;not null"`
	JusticeFee decimal.Decimal `gorm:"column:justice_fee;type:numeric(14,2);not null"`
	FixedFee   decimal.Decimal `gorm:"column:fixed_fee;type:numeric(14,2);not null"`
	DueAmount  decimal.Decimal `gorm:"column:due_amount;type:numeric(14,2);not null"`
	PayerEmail string          `gorm:"column:payer_email;type:varchar(100);not null"`

	CreatedAt time.Time  `gorm:"not null"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

func (FeeRecord) TableName() string { return "fee_records" }

// FeePrice is the published fixed-fee value of a calendar month.
type FeePrice struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	Period    string          `gorm:"column:period;type:varchar(7);not null;uniqueIndex:ux_fee_prices_period"`
	Date      time.Time       `gorm:"column:date;type:date;not null"`
	Value     decimal.Decimal `gorm:"column:value;type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

func (FeePrice) TableName() string { return "fee_prices" }

// PeriodOf returns the YYYY-MM key of t.
func PeriodOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}
