package domain

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTemporary     = errors.New("temporary failure")
	ErrRetrieval     = errors.New("retrieval failure")
	ErrConfiguration = errors.New("configuration error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// InvalidInput builds an ErrInvalidInput error from a formatted message.
func InvalidInput(operation, format string, args ...any) error {
	return WrapError(ErrInvalidInput, operation, fmt.Errorf(format, args...))
}
