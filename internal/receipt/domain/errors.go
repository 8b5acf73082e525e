package domain

import "errors"

var (
	ErrInvalidFeeRecord       = errors.New("invalid_fee_record")
	ErrInvalidPaymentID       = errors.New("invalid_payment_id")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrFeeRecordNotFound      = errors.New("fee_record_not_found")
	ErrNotFound               = errors.New("receipt_not_found")
	ErrNotPaid                = errors.New("receipt_not_paid")
	ErrReconciliationConflict = errors.New("reconciliation_conflict")
)
