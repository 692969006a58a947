package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can decide whether to count,
// degrade or abort.
type ErrorKind string

// Error kinds used across the scrape, store and tracker layers.
const (
	// KindNetwork covers timeouts, connection failures and non-success
	// HTTP statuses. Transient; counted as a failed check.
	KindNetwork ErrorKind = "network"

	// KindParse means the expected page structure was absent. Engines
	// degrade it to "not found" and never return it to the tracker.
	KindParse ErrorKind = "parse"

	// KindConfiguration is a missing credential or unknown selector.
	// Fatal to the strategy; must abort before scraping begins.
	KindConfiguration ErrorKind = "configuration"

	// KindStorage is a persistence failure for a single record.
	KindStorage ErrorKind = "storage"
)

// Error codes used in API responses.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "RUN_IN_PROGRESS"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error kind.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Kind    ErrorKind
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(kind ErrorKind, message string, err error) *ScrapeError {
	return &ScrapeError{Kind: kind, Message: message, Err: err}
}

// IsKind reports whether err (or anything it wraps) is a ScrapeError of kind.
func IsKind(err error, kind ErrorKind) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
