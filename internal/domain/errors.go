package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCompile signals a malformed query descriptor.
	ErrCompile = errors.New("compile error")
	// ErrBackendUnavailable signals that the search backend or the record store is unreachable.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrPartialFailure signals that orphan cleanup failed while search results stay valid.
	ErrPartialFailure = errors.New("reconciliation partial failure")
	// ErrBulkRejected signals that the index backend rejected some operations of a bulk call.
	ErrBulkRejected = errors.New("bulk operations rejected")
)

// PartialFailureError reports identifiers whose orphan deletion did not go through.
type PartialFailureError struct {
	IDs []string
	Err error
}

func (e *PartialFailureError) Error() string {
	msg := fmt.Sprintf("%s: %d orphan(s) not deleted [%s]",
		ErrPartialFailure.Error(), len(e.IDs), strings.Join(e.IDs, ","))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *PartialFailureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPartialFailure}
	}
	return []error{ErrPartialFailure, e.Err}
}

// BulkError lists the identifiers the backend refused in a bulk call.
type BulkError struct {
	IDs     []string
	Reasons map[string]string
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBulkRejected.Error(), strings.Join(e.IDs, ","))
}

func (e *BulkError) Unwrap() error { return ErrBulkRejected }

// Compilef builds an ErrCompile-wrapped error.
func Compilef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCompile, fmt.Sprintf(format, args...))
}

// Unavailable wraps err as ErrBackendUnavailable, keeping the cause in the chain.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}
