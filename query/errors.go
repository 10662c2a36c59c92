package query

import "github.com/usufslc/aggie-auth/core"

func queryDependencyError(message string) error {
	return core.DependencyError(message)
}

func queryValidationError(field string, message string) error {
	return core.FieldValidationError("query: validation failed", field, message)
}
