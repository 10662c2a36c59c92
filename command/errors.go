package command

import "github.com/usufslc/aggie-auth/core"

func commandDependencyError(message string) error {
	return core.DependencyError(message)
}

func commandValidationError(field string, message string) error {
	return core.FieldValidationError("command: validation failed", field, message)
}
