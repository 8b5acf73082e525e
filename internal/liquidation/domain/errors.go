package domain

import "errors"

var (
	ErrInvalidCapital     = errors.New("invalid_capital")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidCalculation = errors.New("invalid_calculation_type")
	ErrInvalidAnnualRate  = errors.New("invalid_annual_rate")
	ErrInvalidFrequency   = errors.New("invalid_application_frequency")
)
