package types

import (
	"errors"
	"fmt"
)

// Domain errors for type validation
var (
	ErrEmptyFilePath        = errors.New("file path cannot be empty")
	ErrEmptyQuestion        = errors.New("question cannot be empty")
	ErrInvalidConfidence    = errors.New("confidence must be between 0 and 1")
	ErrInvalidRelevance     = errors.New("relevance score must be between 0 and 1")
	ErrNegativeQueryTime    = errors.New("query time cannot be negative")
	ErrMissingCommitSHA     = errors.New("commit sha is required")
	ErrCacheStatsInvariants = errors.New("hits and misses must sum to total queries")
)

// ErrorKind classifies failures by how callers should react to them
type ErrorKind string

const (
	// KindConfiguration is a deployment mistake, e.g. an invalid repository path.
	// Surfaced synchronously and never retried.
	KindConfiguration ErrorKind = "CONFIGURATION_ERROR"
	// KindInitialization means the history or synthesis collaborators could not be built.
	KindInitialization ErrorKind = "INITIALIZATION_ERROR"
	// KindTimeout means a query exceeded its wall-clock budget.
	KindTimeout ErrorKind = "TIMEOUT_ERROR"
	// KindArgument is API misuse such as an unknown rendering style.
	KindArgument ErrorKind = "ARGUMENT_ERROR"
)

// Error is a classified error with an optional underlying cause
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

// NewError creates a classified error
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// IsKind reports whether err, or any error it wraps, is an *Error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind == kind
	}
	return false
}
