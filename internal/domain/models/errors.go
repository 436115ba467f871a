package models

import "errors"

var (
	// ErrValidation marks input that will never succeed on retry.
	ErrValidation = errors.New("validation failed")
	// ErrEngineStopped is returned when input arrives after shutdown.
	ErrEngineStopped = errors.New("engine stopped")
)

// IsValidation reports whether err was caused by invalid input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
