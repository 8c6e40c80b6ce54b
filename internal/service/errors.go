package service

import (
	"errors"
	"fmt"
)

// ErrValidation marks input rejected before any store call.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
