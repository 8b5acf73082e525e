package domain

import "errors"

var (
	ErrProviderNotFound    = errors.New("provider_not_found")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrMissingPaymentID    = errors.New("missing_payment_id")
	ErrMissingClientCode   = errors.New("missing_client_code")
	ErrEventIgnored        = errors.New("event_ignored")
	ErrUnknownReference    = errors.New("unknown_external_reference")
	ErrUnknownClientCode   = errors.New("unknown_client_code")
	ErrStatusNotPaid       = errors.New("status_not_paid")
	ErrProviderUnavailable = errors.New("provider_unavailable")
	ErrPollInProgress      = errors.New("poll_in_progress")
)

// Webhook security failures.
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrPayloadTooLarge      = errors.New("payload_too_large")
	ErrUnsupportedMediaType = errors.New("unsupported_media_type")
)
