package domain

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
)

var (
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidRateType = errors.New("invalid_rate_type")
	ErrInvalidRate     = errors.New("invalid_rate")
	ErrInvalidValidity = errors.New("invalid_validity")
	ErrInvalidRange    = errors.New("invalid_range")
	ErrNotFound        = errors.New("not_found")
	ErrOpenEndedRate   = errors.New("open_ended_rate")
	ErrRateCoverageGap = errors.New("rate_coverage_gap")
)

// CoverageGapError names the first uncovered sub-interval of a resolution.
type CoverageGapError struct {
	RateType RateType
	From     civil.Date
	To       civil.Date
}

func (e *CoverageGapError) Error() string {
	return fmt.Sprintf("rate_coverage_gap: no %s rate covers %s..%s", e.RateType, e.From, e.To)
}

func (e *CoverageGapError) Is(target error) bool {
	return target == ErrRateCoverageGap
}
