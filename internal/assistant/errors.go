package assistant

import (
	"errors"
	"fmt"
)

// ErrInvalidInput matches every request validation failure.
var ErrInvalidInput = errors.New("invalid input")

// InputError describes a rejected request. It is returned before any
// provider call is made.
type InputError struct {
	Field string
	Msg   string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
