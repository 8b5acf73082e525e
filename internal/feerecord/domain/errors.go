package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidCaseNumber    = errors.New("invalid_case_number")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidDate          = errors.New("invalid_date")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidPrice         = errors.New("invalid_price")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrNotFound             = errors.New("not_found")
	ErrPriceNotFound        = errors.New("price_not_found")
	ErrClientCodeExhausted  = errors.New("client_code_unavailable")
)
