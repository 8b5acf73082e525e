// Package civildate converts between calendar dates and the UTC-midnight
// timestamps stored in the database.
package civildate

import (
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var ErrInvalidDate = errors.New("invalid_date")

const displayLayout = "02/01/2006"

// Parse accepts ISO dates (2024-01-31), local dates (31/01/2024) and RFC 3339
// timestamps, keeping only the calendar date.
func Parse(raw string) (civil.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return civil.Date{}, ErrInvalidDate
	}
	if d, err := civil.ParseDate(raw); err == nil {
		return d, nil
	}
	if t, err := time.Parse(displayLayout, raw); err == nil {
		return civil.DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return civil.DateOf(t.UTC()), nil
	}
	return civil.Date{}, ErrInvalidDate
}

// FromTime reads the calendar date of t in UTC.
func FromTime(t time.Time) civil.Date {
	return civil.DateOf(t.UTC())
}

// ToTime returns UTC midnight of d.
func ToTime(d civil.Date) time.Time {
	return d.In(time.UTC)
}

func Ptr(d *civil.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := ToTime(*d)
	return &t
}

// Display formats d as dd/mm/yyyy.
func Display(d civil.Date) string {
	return ToTime(d).Format(displayLayout)
}
