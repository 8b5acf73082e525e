package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	liquidationdomain "github.com/smallbiznis/colegio/internal/liquidation/domain"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	ratedomain "github.com/smallbiznis/colegio/internal/rate/domain"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// webhookResponse is the only body shape payment providers ever see.
type webhookResponse struct {
	OK      bool   `json:"ok"`
	Ignored bool   `json:"ignored,omitempty"`
	Error   string `json:"error,omitempty"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// abortWebhook answers a provider with {ok:false}. The error is still
// attached to the context so the request log classifies it.
func abortWebhook(c *gin.Context, err error) {
	status, _ := mapError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, webhookResponse{OK: false, Error: publicCode(err)})
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

type errorClass struct {
	status  int
	typ     string
	message string
}

var (
	classValidation   = errorClass{http.StatusBadRequest, "validation_error", "validation error"}
	classUnauthorized = errorClass{http.StatusUnauthorized, "unauthorized", "unauthorized"}
	classForbidden    = errorClass{http.StatusForbidden, "forbidden", "forbidden"}
	classNotFound     = errorClass{http.StatusNotFound, "not_found", "not found"}
	classConflict     = errorClass{http.StatusConflict, "conflict", "conflict"}
	classTooLarge     = errorClass{http.StatusRequestEntityTooLarge, "payload_too_large", "payload too large"}
	classMediaType    = errorClass{http.StatusUnsupportedMediaType, "unsupported_media_type", "unsupported media type"}
	classUnprocessed  = errorClass{http.StatusUnprocessableEntity, "rate_coverage_gap", "no published rate covers the requested interval"}
	classRateLimited  = errorClass{http.StatusTooManyRequests, "rate_limited", "too many requests"}
	classUpstream     = errorClass{http.StatusBadGateway, "provider_unavailable", "payment provider unavailable"}
	classInternal     = errorClass{http.StatusInternalServerError, "internal_error", "internal server error"}
)

func classify(err error) errorClass {
	switch {
	case err == nil:
		return classInternal
	case asValidationErrors(err) != nil, isValidationError(err):
		return classValidation
	case errors.Is(err, paymentdomain.ErrUnauthorized):
		return classUnauthorized
	case errors.Is(err, paymentdomain.ErrForbidden):
		return classForbidden
	case errors.Is(err, paymentdomain.ErrPayloadTooLarge):
		return classTooLarge
	case errors.Is(err, paymentdomain.ErrUnsupportedMediaType):
		return classMediaType
	case isNotFoundError(err):
		return classNotFound
	case errors.Is(err, ratedomain.ErrOpenEndedRate),
		errors.Is(err, receiptdomain.ErrNotPaid),
		errors.Is(err, paymentdomain.ErrStatusNotPaid),
		errors.Is(err, paymentdomain.ErrPollInProgress),
		errors.Is(err, feerecorddomain.ErrClientCodeExhausted):
		return classConflict
	case errors.Is(err, ratedomain.ErrRateCoverageGap):
		return classUnprocessed
	case errors.Is(err, ErrRateLimited):
		return classRateLimited
	case errors.Is(err, paymentdomain.ErrProviderUnavailable):
		return classUpstream
	default:
		return classInternal
	}
}

func mapError(err error) (int, errorPayload) {
	class := classify(err)
	payload := errorPayload{Type: class.typ, Message: class.message}

	if class == classValidation {
		if vErr := asValidationErrors(err); vErr != nil {
			payload.Errors = vErr.Errors
		} else {
			code := publicCode(err)
			payload.Errors = []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			}
		}
	}
	return class.status, payload
}

// classifyErrorForLog feeds the request logger's error_type and error_code.
func classifyErrorForLog(err error) (string, string) {
	return classify(err).typ, publicCode(err)
}

// knownErrors are the sentinels whose names are safe to return to callers.
var knownErrors = []error{
	ErrInvalidRequest,
	ErrRateLimited,

	paymentdomain.ErrProviderNotFound,
	paymentdomain.ErrInvalidPayload,
	paymentdomain.ErrMissingPaymentID,
	paymentdomain.ErrMissingClientCode,
	paymentdomain.ErrUnknownReference,
	paymentdomain.ErrUnknownClientCode,
	paymentdomain.ErrStatusNotPaid,
	paymentdomain.ErrProviderUnavailable,
	paymentdomain.ErrPollInProgress,
	paymentdomain.ErrUnauthorized,
	paymentdomain.ErrForbidden,
	paymentdomain.ErrPayloadTooLarge,
	paymentdomain.ErrUnsupportedMediaType,

	receiptdomain.ErrInvalidFeeRecord,
	receiptdomain.ErrInvalidPaymentID,
	receiptdomain.ErrInvalidStatus,
	receiptdomain.ErrFeeRecordNotFound,
	receiptdomain.ErrNotFound,
	receiptdomain.ErrNotPaid,
	receiptdomain.ErrReconciliationConflict,

	feerecorddomain.ErrInvalidID,
	feerecorddomain.ErrInvalidCaseNumber,
	feerecorddomain.ErrInvalidAmount,
	feerecorddomain.ErrInvalidDate,
	feerecorddomain.ErrInvalidEmail,
	feerecorddomain.ErrInvalidPrice,
	feerecorddomain.ErrInvalidPaymentMethod,
	feerecorddomain.ErrNotFound,
	feerecorddomain.ErrPriceNotFound,
	feerecorddomain.ErrClientCodeExhausted,

	ratedomain.ErrInvalidID,
	ratedomain.ErrInvalidRateType,
	ratedomain.ErrInvalidRate,
	ratedomain.ErrInvalidValidity,
	ratedomain.ErrInvalidRange,
	ratedomain.ErrNotFound,
	ratedomain.ErrOpenEndedRate,
	ratedomain.ErrRateCoverageGap,

	liquidationdomain.ErrInvalidCapital,
	liquidationdomain.ErrInvalidDate,
	liquidationdomain.ErrInvalidCalculation,
	liquidationdomain.ErrInvalidAnnualRate,
	liquidationdomain.ErrInvalidFrequency,
}

// publicCode names err by the first known sentinel it wraps, falling back to
// its class. Wrapped detail never leaks to the response.
func publicCode(err error) string {
	if err == nil {
		return classInternal.typ
	}
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	if asValidationErrors(err) != nil {
		return "invalid_request"
	}
	return classify(err).typ
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidPayload),
		errors.Is(err, paymentdomain.ErrMissingPaymentID),
		errors.Is(err, paymentdomain.ErrMissingClientCode),
		errors.Is(err, paymentdomain.ErrUnknownReference),
		errors.Is(err, paymentdomain.ErrUnknownClientCode):
		return true
	case isFeeRecordValidationError(err),
		isRateValidationError(err),
		isLiquidationValidationError(err),
		isReceiptValidationError(err):
		return true
	default:
		return false
	}
}

func isFeeRecordValidationError(err error) bool {
	switch {
	case errors.Is(err, feerecorddomain.ErrInvalidID),
		errors.Is(err, feerecorddomain.ErrInvalidCaseNumber),
		errors.Is(err, feerecorddomain.ErrInvalidAmount),
		errors.Is(err, feerecorddomain.ErrInvalidDate),
		errors.Is(err, feerecorddomain.ErrInvalidEmail),
		errors.Is(err, feerecorddomain.ErrInvalidPrice),
		errors.Is(err, feerecorddomain.ErrInvalidPaymentMethod):
		return true
	default:
		return false
	}
}

func isRateValidationError(err error) bool {
	switch {
	case errors.Is(err, ratedomain.ErrInvalidID),
		errors.Is(err, ratedomain.ErrInvalidRateType),
		errors.Is(err, ratedomain.ErrInvalidRate),
		errors.Is(err, ratedomain.ErrInvalidValidity),
		errors.Is(err, ratedomain.ErrInvalidRange):
		return true
	default:
		return false
	}
}

func isLiquidationValidationError(err error) bool {
	switch {
	case errors.Is(err, liquidationdomain.ErrInvalidCapital),
		errors.Is(err, liquidationdomain.ErrInvalidDate),
		errors.Is(err, liquidationdomain.ErrInvalidCalculation),
		errors.Is(err, liquidationdomain.ErrInvalidAnnualRate),
		errors.Is(err, liquidationdomain.ErrInvalidFrequency):
		return true
	default:
		return false
	}
}

func isReceiptValidationError(err error) bool {
	switch {
	case errors.Is(err, receiptdomain.ErrInvalidFeeRecord),
		errors.Is(err, receiptdomain.ErrInvalidPaymentID),
		errors.Is(err, receiptdomain.ErrInvalidStatus):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, feerecorddomain.ErrNotFound),
		errors.Is(err, feerecorddomain.ErrPriceNotFound),
		errors.Is(err, ratedomain.ErrNotFound),
		errors.Is(err, receiptdomain.ErrNotFound),
		errors.Is(err, receiptdomain.ErrFeeRecordNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request", "invalid_payload":
		return "request"
	case "missing_payment_id":
		return "id"
	case "missing_client_code", "unknown_client_code":
		return "cod_cliente"
	case "unknown_external_reference":
		return "external_reference"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_payment_id", "missing_client_code":
		return "required"
	case "unknown_client_code", "unknown_external_reference":
		return "unknown reference"
	default:
		return "invalid value"
	}
}
