package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a FolioError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *FolioError {
	if err == nil {
		return nil
	}

	var fe *FolioError
	if errors.As(err, &fe) {
		return &FolioError{
			Type:      errType,
			Code:      code,
			Message:   message,
			Cause:     fe,
			Context:   fe.Context,
			Component: fe.Component,
		}
	}

	return &FolioError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapWithContext wraps an error with context information
func WrapWithContext(err error, errType ErrorType, code, message string, context map[string]interface{}) *FolioError {
	fe := Wrap(err, errType, code, message)
	if fe != nil {
		fe.Context = context
	}
	return fe
}

// WrapStore wraps a driver error as a store error
func WrapStore(err error, code, message string) *FolioError {
	return Wrap(err, ErrorTypeStore, code, message)
}

// WrapMigration wraps an error as a migration error naming the failing file
func WrapMigration(err error, migration, message string) *FolioError {
	fe := Wrap(err, ErrorTypeMigration, ErrCodeMigrationFailed, message)
	if fe != nil {
		fe.WithContext("migration", migration)
	}
	return fe
}

// Cause returns the innermost error in the chain.
func Cause(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
	return nil
}
