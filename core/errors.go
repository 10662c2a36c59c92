package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorNotFound         = "AUTH_NOT_FOUND"
	ErrorUnauthorized     = "AUTH_UNAUTHORIZED"
	ErrorForbidden        = "AUTH_FORBIDDEN"
	ErrorAlreadyConsumed  = "AUTH_ALREADY_CONSUMED"
	ErrorExpired          = "AUTH_EXPIRED"
	ErrorValidationFailed = "AUTH_VALIDATION_FAILED"
	ErrorDeliveryFailed   = "AUTH_DELIVERY_FAILED"
	ErrorInternal         = "AUTH_INTERNAL_ERROR"
)

// BearerChallenge is attached to unauthorized errors under the
// MetadataWWWAuthenticate key.
const (
	BearerChallenge         = `Bearer realm='sign', error="invalid_request"`
	MetadataWWWAuthenticate = "www_authenticate"
)

func NotFoundError(message string) *goerrors.Error {
	return newBrokerError(message, goerrors.CategoryNotFound, ErrorNotFound)
}

func UnauthorizedError(message string) *goerrors.Error {
	return newBrokerError(message, goerrors.CategoryAuth, ErrorUnauthorized).
		WithMetadata(map[string]any{MetadataWWWAuthenticate: BearerChallenge})
}

func ForbiddenError(message string) *goerrors.Error {
	return newBrokerError(message, goerrors.CategoryAuthz, ErrorForbidden)
}

func AlreadyConsumedError(message string) *goerrors.Error {
	return newBrokerError(message, goerrors.CategoryConflict, ErrorAlreadyConsumed)
}

func ExpiredError(message string) *goerrors.Error {
	return newBrokerError(message, goerrors.CategoryOperation, ErrorExpired).
		WithCode(http.StatusGone)
}

func ValidationError(message string, fields ...goerrors.FieldError) *goerrors.Error {
	return ensureBrokerErrorEnvelope(
		goerrors.NewValidation(message, fields...).
			WithCode(http.StatusBadRequest).
			WithTextCode(ErrorValidationFailed).
			WithSeverity(goerrors.SeverityError),
	)
}

// DependencyError reports a missing collaborator in a handler or adapter.
func DependencyError(message string) *goerrors.Error {
	return newBrokerError(message, goerrors.CategoryInternal, ErrorInternal)
}

// FieldValidationError is a ValidationError carrying a single field failure.
func FieldValidationError(message string, field string, detail string) *goerrors.Error {
	return ValidationError(message, fieldError(field, detail))
}

func DeliveryFailedError(cause error, message string) *goerrors.Error {
	if cause == nil {
		return newBrokerError(message, goerrors.CategoryExternal, ErrorDeliveryFailed).
			WithCode(http.StatusBadGateway)
	}
	return ensureBrokerErrorEnvelope(
		goerrors.Wrap(cause, goerrors.CategoryExternal, message).
			WithTextCode(ErrorDeliveryFailed).
			WithCode(http.StatusBadGateway),
	)
}

// HasTextCode reports whether err carries the given broker text code.
func HasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func brokerErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureBrokerErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newBrokerError(err.Error(), goerrors.CategoryNotFound, ErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return newBrokerError(err.Error(), goerrors.CategoryValidation, ErrorValidationFailed)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureBrokerErrorEnvelope(mapped)
}

func newBrokerError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureBrokerErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureBrokerErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = brokerHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultBrokerTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultBrokerTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorValidationFailed
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth:
		return ErrorUnauthorized
	case goerrors.CategoryAuthz:
		return ErrorForbidden
	case goerrors.CategoryConflict:
		return ErrorAlreadyConsumed
	case goerrors.CategoryExternal:
		return ErrorDeliveryFailed
	default:
		return ErrorInternal
	}
}

func brokerHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MapError converts any error into the broker's go-errors envelope.
func MapError(err error) *goerrors.Error {
	return brokerErrorMapper(err)
}

func fieldError(field string, message string) goerrors.FieldError {
	return goerrors.FieldError{Field: field, Message: message}
}
