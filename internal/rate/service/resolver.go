package service

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	ratedomain "github.com/smallbiznis/colegio/internal/rate/domain"
)

var daysPerYear = decimal.NewFromInt(ratedomain.DaysPerYear)

// Accrue walks records (ordered by valid_from, then id) and splits [start, end)
// into contiguous periods. Each record is clipped to the window and to the end
// of the previous period, so on overlap the earliest-starting record keeps the
// instants it covers. Any uncovered day yields a CoverageGapError.
func Accrue(rateType ratedomain.RateType, records []ratedomain.Rate, start, end civil.Date) (*ratedomain.Accrual, error) {
	if !start.Before(end) {
		return nil, ratedomain.ErrInvalidRange
	}

	accrual := &ratedomain.Accrual{
		RateType:        rateType,
		Start:           start,
		End:             end,
		TotalPercentage: decimal.Zero,
	}

	cursor := start
	for i := range records {
		if !cursor.Before(end) {
			break
		}
		rec := &records[i]

		segStart := rec.From()
		if segStart.Before(cursor) {
			segStart = cursor
		}
		segEnd := end
		if to, ok := rec.To(); ok && to.Before(segEnd) {
			segEnd = to
		}
		if !segStart.Before(segEnd) {
			// fully shadowed by an earlier record or outside the window
			continue
		}
		if segStart.After(cursor) {
			return nil, &ratedomain.CoverageGapError{RateType: rateType, From: cursor, To: segStart}
		}

		accrual.Periods = append(accrual.Periods, period(rec.Rate, segStart, segEnd, rec))
		cursor = segEnd
	}

	if cursor.Before(end) {
		return nil, &ratedomain.CoverageGapError{RateType: rateType, From: cursor, To: end}
	}

	for _, p := range accrual.Periods {
		accrual.TotalPercentage = accrual.TotalPercentage.Add(p.Percentage)
	}
	return accrual, nil
}

// AccrueFixed applies one annual rate over the whole range.
func AccrueFixed(annualRate decimal.Decimal, start, end civil.Date) (*ratedomain.Accrual, error) {
	if !start.Before(end) {
		return nil, ratedomain.ErrInvalidRange
	}
	if !annualRate.IsPositive() {
		return nil, ratedomain.ErrInvalidRate
	}
	p := period(annualRate, start, end, nil)
	return &ratedomain.Accrual{
		Start:           start,
		End:             end,
		Periods:         []ratedomain.Period{p},
		TotalPercentage: p.Percentage,
	}, nil
}

func period(annualRate decimal.Decimal, start, end civil.Date, rec *ratedomain.Rate) ratedomain.Period {
	days := end.DaysSince(start)
	p := ratedomain.Period{
		Start:      start,
		End:        end,
		AnnualRate: annualRate,
		Days:       days,
		Percentage: annualRate.Div(daysPerYear).Mul(decimal.NewFromInt(int64(days))),
	}
	if rec != nil {
		p.RateID = rec.ID
	}
	return p
}
