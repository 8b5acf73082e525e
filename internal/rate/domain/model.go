package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/colegio/pkg/civildate"
)

// RateType identifies a published rate series.
type RateType string

const (
	RateTypeBankActive     RateType = "BANK_ACTIVE"
	RateTypeBankPassive    RateType = "BANK_PASSIVE"
	RateTypeInflationIndex RateType = "INFLATION_INDEX"
)

// DaysPerYear is the Actual/365 denominator.
const DaysPerYear = 365

var rateTypeAliases = map[string]RateType{
	"bank_active":     RateTypeBankActive,
	"activabna":       RateTypeBankActive,
	"bank_passive":    RateTypeBankPassive,
	"pasivabna":       RateTypeBankPassive,
	"inflation_index": RateTypeInflationIndex,
	"uva":             RateTypeInflationIndex,
}

// ParseRateType accepts the canonical names and the legacy lowercase codes.
func ParseRateType(raw string) (RateType, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if rt, ok := rateTypeAliases[key]; ok {
		return rt, nil
	}
	return "", ErrInvalidRateType
}

// Rate is a time-bounded annual percentage. Validity is half-open:
// [ValidFrom, ValidTo), ValidTo nil meaning open-ended.
type Rate struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	RateType  RateType        `gorm:"column:rate_type;type:varchar(32);not null;index:ix_rates_type_from,priority:1"`
	Rate      decimal.Decimal `gorm:"column:rate;type:numeric(10,4);not null"`
	ValidFrom time.Time       `gorm:"column:valid_from;type:date;not null;index:ix_rates_type_from,priority:2"`
	ValidTo   *time.Time      `gorm:"column:valid_to;type:date"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
	DeletedAt *time.Time      `gorm:"column:deleted_at;index"`
}

func (Rate) TableName() string { return "rates" }

func (r *Rate) From() civil.Date {
	return civildate.FromTime(r.ValidFrom)
}

// To returns the exclusive end date, or false when open-ended.
func (r *Rate) To() (civil.Date, bool) {
	if r.ValidTo == nil {
		return civil.Date{}, false
	}
	return civildate.FromTime(*r.ValidTo), true
}

func (r *Rate) OpenEnded() bool {
	return r.ValidTo == nil
}

func (r *Rate) Validate() error {
	switch r.RateType {
	case RateTypeBankActive, RateTypeBankPassive, RateTypeInflationIndex:
	default:
		return ErrInvalidRateType
	}
	if !r.Rate.IsPositive() {
		return ErrInvalidRate
	}
	if r.ValidFrom.IsZero() {
		return ErrInvalidValidity
	}
	if to, ok := r.To(); ok && !to.After(r.From()) {
		return ErrInvalidValidity
	}
	return nil
}

// Period is one contiguous sub-interval of an accrual at a single rate.
type Period struct {
	Start      civil.Date      `json:"start"`
	End        civil.Date      `json:"end"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	Days       int             `json:"days"`
	Percentage decimal.Decimal `json:"percentage"`
	RateID     snowflake.ID    `json:"rate_id,omitempty"`
}

// String renders the audit line used in liquidation documents.
func (p Period) String() string {
	return fmt.Sprintf("%s .. %s: (%s%% / %d) x %d días = %s%%",
		civildate.Display(p.Start),
		civildate.Display(p.End),
		p.AnnualRate.String(),
		DaysPerYear,
		p.Days,
		p.Percentage.StringFixed(4),
	)
}

// Accrual is the result of resolving simple interest over [Start, End).
type Accrual struct {
	RateType        RateType        `json:"rate_type,omitempty"`
	Start           civil.Date      `json:"start"`
	End             civil.Date      `json:"end"`
	Periods         []Period        `json:"periods"`
	TotalPercentage decimal.Decimal `json:"total_percentage"`
}

func (a *Accrual) Breakdown() []string {
	lines := make([]string, 0, len(a.Periods))
	for _, p := range a.Periods {
		lines = append(lines, p.String())
	}
	return lines
}

// Days is the total number of accrued days.
func (a *Accrual) Days() int {
	total := 0
	for _, p := range a.Periods {
		total += p.Days
	}
	return total
}

// Apply returns capital * (1 + total/100) rounded to cents.
func (a *Accrual) Apply(capital decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(a.TotalPercentage.Div(decimal.NewFromInt(100)))
	return capital.Mul(factor).Round(2)
}

// Scale multiplies every period and the total by factor; the application
// frequency of a liquidation is expressed this way.
func (a *Accrual) Scale(factor decimal.Decimal) {
	if factor.Equal(decimal.NewFromInt(1)) {
		return
	}
	total := decimal.Zero
	for i := range a.Periods {
		a.Periods[i].Percentage = a.Periods[i].Percentage.Mul(factor)
		total = total.Add(a.Periods[i].Percentage)
	}
	a.TotalPercentage = total
}
