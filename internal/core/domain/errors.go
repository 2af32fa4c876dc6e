package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrDimensionMismatch   = errors.New("vector dimension mismatch")
	ErrIndexIntegrity      = errors.New("index integrity violation")
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")
	ErrTemporary           = errors.New("temporary failure")
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
