package history

import (
	"errors"
	"fmt"
)

var (
	// ErrRepositoryRead marks failures of the repository reader. They abort
	// the walk.
	ErrRepositoryRead = errors.New("repository read failed")
	// ErrOrderingViolation marks a commit stream that is not parent-before-child.
	ErrOrderingViolation = errors.New("commit ordering violation")
	// ErrUnsupportedLanguage is returned by analyzers for files they cannot parse.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrParse is returned by analyzers for files they failed to parse.
	ErrParse = errors.New("parse error")
)

// RepositoryReadError wraps a reader failure with the commit being read.
type RepositoryReadError struct {
	Commit string
	Err    error
}

func (e *RepositoryReadError) Error() string {
	if e.Commit == "" {
		return fmt.Sprintf("%v: %v", ErrRepositoryRead, e.Err)
	}
	return fmt.Sprintf("%v at %s: %v", ErrRepositoryRead, shortHash(e.Commit), e.Err)
}

func (e *RepositoryReadError) Unwrap() []error {
	return []error{ErrRepositoryRead, e.Err}
}

// OrderingViolationError reports a commit that arrived after one of its
// descendants, or twice.
type OrderingViolationError struct {
	Commit string
	Reason string
}

func (e *OrderingViolationError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrOrderingViolation, shortHash(e.Commit), e.Reason)
}

func (e *OrderingViolationError) Unwrap() error {
	return ErrOrderingViolation
}

// AnalysisError reports a file the analyzer could not process at a commit.
type AnalysisError struct {
	Path   string
	Commit string
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyze %s: %v", e.Path, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
