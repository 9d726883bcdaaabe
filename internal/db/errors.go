package db

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the store and the core. Callers classify them
// with errors.Is; the API layer maps each kind to an HTTP status.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrInvalidState        = errors.New("invalid state")
	ErrConstraintViolation = errors.New("constraint violation")
)

func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidParameterf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

func InvalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func ConstraintViolationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConstraintViolation, fmt.Sprintf(format, args...))
}
