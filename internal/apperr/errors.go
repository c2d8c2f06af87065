// Package apperr defines the error kinds shared across the sync pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrParseFailure marks file content the parser could not turn into a document.
	ErrParseFailure = errors.New("parse failure")
	// ErrPathUnreadable marks an I/O failure opening or reading a monitored path.
	ErrPathUnreadable = errors.New("path unreadable")
	// ErrInvalidCoverage marks a monitored-path configuration that cannot be evaluated.
	ErrInvalidCoverage = errors.New("invalid coverage configuration")
	// ErrLockContention is reserved for locks that cannot be acquired in bounded time.
	ErrLockContention = errors.New("lock contention")
	// ErrInvariant marks a broken structural invariant (a defect, not user input).
	ErrInvariant = errors.New("invariant violation")
)

// Kind is the stable, user-facing name of an error class.
type Kind string

const (
	KindParseFailure    Kind = "parse_failure"
	KindPathUnreadable  Kind = "path_unreadable"
	KindInvalidCoverage Kind = "invalid_coverage"
	KindLockContention  Kind = "lock_contention"
	KindInvariant       Kind = "invariant"
	KindUnknown         Kind = "unknown"
)

// PathError ties a failure to the monitored path it happened on.
type PathError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// NewPathError wraps err for path, deriving the kind from the sentinel it wraps.
func NewPathError(path string, err error) *PathError {
	return &PathError{Kind: KindOf(err), Path: path, Err: err}
}

// KindOf maps err to its Kind by the sentinel it wraps.
func KindOf(err error) Kind {
	var pe *PathError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, ErrParseFailure):
		return KindParseFailure
	case errors.Is(err, ErrPathUnreadable):
		return KindPathUnreadable
	case errors.Is(err, ErrInvalidCoverage):
		return KindInvalidCoverage
	case errors.Is(err, ErrLockContention):
		return KindLockContention
	case errors.Is(err, ErrInvariant):
		return KindInvariant
	default:
		return KindUnknown
	}
}
