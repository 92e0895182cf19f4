package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks rejected input: unsupported extension, empty selection, folder over the cap.
	ErrValidation = errors.New("validation error")
	// ErrIO marks directory or file create, delete and copy failures.
	ErrIO = errors.New("io fault")
	// ErrCodec marks extraction or assembly failures reported by the frame codec.
	ErrCodec = errors.New("codec fault")
	// ErrOperationCancelled is a cooperative abort, never shown to the user.
	ErrOperationCancelled = errors.New("operation cancelled")
)

var (
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", ErrValidation)
	ErrTooManyFiles      = fmt.Errorf("%w: folder exceeds the file limit", ErrValidation)
	ErrEmptySelection    = fmt.Errorf("%w: no frame selected", ErrValidation)
)

// Wrap tags err with one of the markers above so callers can classify it with errors.Is.
func Wrap(marker error, operation string, err error) error {
	operation = strings.TrimSpace(operation)
	switch {
	case err == nil && operation == "":
		return marker
	case err == nil:
		return fmt.Errorf("%w: %s", marker, operation)
	case operation == "":
		return fmt.Errorf("%w: %w", marker, err)
	default:
		return fmt.Errorf("%w: %s: %w", marker, operation, err)
	}
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrOperationCancelled)
}

// StatusText converts an operation error into the text shown on the display.
// Cancellation produces no message.
func StatusText(err error) string {
	switch {
	case err == nil, IsCancelled(err):
		return ""
	case errors.Is(err, ErrTooManyFiles):
		return "Too many files in folder"
	case errors.Is(err, ErrEmptySelection):
		return "Nothing selected"
	case errors.Is(err, ErrValidation):
		return "Invalid input: " + err.Error()
	case errors.Is(err, ErrCodec):
		return "Conversion failed: " + err.Error()
	case errors.Is(err, ErrIO):
		return "File system error: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
