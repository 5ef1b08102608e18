package driver

import (
	"errors"
	"fmt"
	"strings"

	"rawaccel/internal/accel"
)

var (
	// ErrDriverUnavailable means no driver answered: the socket is missing,
	// refused or not accessible, or the call timed out.
	ErrDriverUnavailable = errors.New("driver unavailable")

	// ErrWriteRejected is returned when the driver refused a write without giving reasons.
	// *WriteRejectedError matches it with errors.Is.
	ErrWriteRejected = errors.New("driver rejected settings")

	// ErrWriteInProgress is returned when another write has not resolved yet.
	ErrWriteInProgress = errors.New("settings write already in progress")

	// ErrValidationFailed is matched by *ValidationFailedError.
	ErrValidationFailed = errors.New("settings failed validation")
)

// WriteRejectedError carries the reasons the driver gave for refusing a write.
// The driver's previous settings stay active.
type WriteRejectedError struct {
	Reasons []string
}

func (e *WriteRejectedError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrWriteRejected.Error()
	}
	return fmt.Sprintf("%s: %s", ErrWriteRejected, strings.Join(e.Reasons, "; "))
}

func (e *WriteRejectedError) Is(target error) bool { return target == ErrWriteRejected }

// ValidationFailedError lists the fields that failed local validation.
// No call was made to the driver.
type ValidationFailedError struct {
	Errors []accel.ValidationError
}

func (e *ValidationFailedError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		parts[i] = ve.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(parts, "; "))
}

func (e *ValidationFailedError) Is(target error) bool { return target == ErrValidationFailed }

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrDriverUnavailable, err)
}
