package transport

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/usufslc/aggie-auth/core"
)

// deliveryError builds the envelope returned when a transport refuses a
// notification. Validation failures keep their category so the broker does
// not retry them; everything else is reported as a failed delivery.
func deliveryError(source error, category goerrors.Category, message string, code int, metadata map[string]any) error {
	var err *goerrors.Error
	switch {
	case source != nil:
		err = goerrors.Wrap(source, category, message)
	default:
		err = goerrors.New(message, category)
	}
	err = err.WithCode(code).WithTextCode(deliveryTextCode(category))
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

func transportError(message string, category goerrors.Category, code int, metadata map[string]any) error {
	return deliveryError(nil, category, message, code, metadata)
}

func transportWrapError(source error, category goerrors.Category, message string, code int, metadata map[string]any) error {
	return deliveryError(source, category, message, code, metadata)
}

func deliveryTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorValidationFailed
	case goerrors.CategoryExternal:
		return core.ErrorDeliveryFailed
	}
	return core.ErrorInternal
}
