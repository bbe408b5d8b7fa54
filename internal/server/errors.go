package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/smallbiznis/tryon/internal/analytics/domain"
	authdomain "github.com/smallbiznis/tryon/internal/auth/domain"
	"github.com/smallbiznis/tryon/internal/authorization"
	ledgerdomain "github.com/smallbiznis/tryon/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/tryon/internal/payment/domain"
	productdomain "github.com/smallbiznis/tryon/internal/product/domain"
	tryondomain "github.com/smallbiznis/tryon/internal/tryon/domain"
	usagereportdomain "github.com/smallbiznis/tryon/internal/usagereport/domain"
	widgetdomain "github.com/smallbiznis/tryon/internal/widget/domain"
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

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
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

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ledgerdomain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_required",
			Message: "Not enough credits",
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked),
		errors.Is(err, widgetdomain.ErrInvalidAPIKey):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, widgetdomain.ErrOriginDenied):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrAccountExists),
		errors.Is(err, productdomain.ErrSKUExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "payload_too_large",
			Message: "request body too large",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds error_type and error_code to the access log.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		if errors.Is(err, ledgerdomain.ErrLedgerInconsistency) {
			return "internal_error", ledgerdomain.ErrLedgerInconsistency.Error()
		}
		return "internal_error", "internal_error"
	}
	return payload.Type, code
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, authdomain.ErrAccountExists):
		return "account already exists"
	case errors.Is(err, productdomain.ErrSKUExists):
		return "SKU already exists"
	default:
		return "conflict"
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

// validationSentinels are domain errors answered with 400. Webhook
// failures are among them so the provider retries delivery.
var validationSentinels = []error{
	ErrInvalidRequest,
	authdomain.ErrInvalidEmail,
	authdomain.ErrInvalidUsername,
	authdomain.ErrInvalidPassword,
	ledgerdomain.ErrInvalidAccount,
	ledgerdomain.ErrInvalidCredits,
	ledgerdomain.ErrInvalidAction,
	ledgerdomain.ErrInvalidPaymentRef,
	ledgerdomain.ErrInvalidAmount,
	ledgerdomain.ErrInvalidCurrency,
	usagereportdomain.ErrInvalidPeriod,
	usagereportdomain.ErrInvalidDateRange,
	usagereportdomain.ErrInvalidAccount,
	analyticsdomain.ErrInvalidPeriod,
	analyticsdomain.ErrInvalidDateRange,
	analyticsdomain.ErrInvalidAccount,
	analyticsdomain.ErrInvalidEvent,
	widgetdomain.ErrInvalidAccount,
	widgetdomain.ErrInvalidOrigin,
	widgetdomain.ErrInvalidConfig,
	productdomain.ErrInvalidAccount,
	productdomain.ErrInvalidID,
	productdomain.ErrInvalidName,
	productdomain.ErrInvalidSKU,
	productdomain.ErrInvalidPrice,
	productdomain.ErrInvalidURL,
	tryondomain.ErrInvalidPhoto,
	tryondomain.ErrInvalidAccount,
	paymentdomain.ErrInvalidSignature,
	paymentdomain.ErrInvalidPayload,
	paymentdomain.ErrInvalidEvent,
	paymentdomain.ErrInvalidAccount,
	paymentdomain.ErrInvalidProvider,
	paymentdomain.ErrInvalidConfig,
}

func isValidationError(err error) bool {
	return matchValidationSentinel(err) != nil
}

func matchValidationSentinel(err error) error {
	for _, target := range validationSentinels {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, authdomain.ErrAccountNotFound),
		errors.Is(err, ledgerdomain.ErrAccountNotFound),
		errors.Is(err, ledgerdomain.ErrPurchaseNotFound),
		errors.Is(err, usagereportdomain.ErrAccountNotFound),
		errors.Is(err, widgetdomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if target := matchValidationSentinel(err); target != nil {
		return target.Error()
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
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
	case "invalid_period":
		return "period must be one of daily, weekly, monthly"
	case "invalid_date_range":
		return "end must not be before start"
	case "invalid_signature":
		return "webhook signature could not be verified"
	default:
		return "invalid value"
	}
}
