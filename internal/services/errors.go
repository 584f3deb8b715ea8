package services

import (
	"errors"
	"fmt"
)

// ValidationError is a caller-side precondition failure, reported before
// any store call is made
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

// Invalid returns a ValidationError with a formatted message
func Invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

var (
	ErrEmptyCart       = &ValidationError{msg: "cart is empty"}
	ErrUnauthenticated = &ValidationError{msg: "not authenticated"}
	ErrInvalidQuantity = &ValidationError{msg: "quantity must be at least 1"}
	ErrInvalidStatus   = &ValidationError{msg: "invalid status"}
	ErrEmailTaken      = &ValidationError{msg: "email is already registered"}

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("admin role required")
)

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
