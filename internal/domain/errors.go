package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors
var (
	ErrBundleNotFound = errors.New("no installable app found")
	ErrInvalidURL     = errors.New("invalid source URL")
)

// BundleCandidate is a single installable bundle discovered under an
// extraction directory.
type BundleCandidate struct {
	Name string
	Path string
}

// AmbiguousBundleError is returned when an archive yields more than one
// installable bundle. It carries the full candidate list so callers can
// present a choice to the operator. Cache validation branches on this
// error kind: re-downloading cannot resolve ambiguity, so it must never
// be treated as a corrupt cache entry.
type AmbiguousBundleError struct {
	Candidates []BundleCandidate
}

// Error returns the error message
func (e *AmbiguousBundleError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = c.Name
	}
	return fmt.Sprintf("found %d installable apps, expected exactly one: %s",
		len(e.Candidates), strings.Join(names, ", "))
}

// IsAmbiguous returns true if the error is an ambiguous bundle match
func IsAmbiguous(err error) bool {
	var ae *AmbiguousBundleError
	return errors.As(err, &ae)
}

// TransferError represents a failed download: a non-success HTTP status
// or a network/timeout error while streaming the body.
type TransferError struct {
	URL    string
	Status int
	Err    error
}

// Error returns the error message
func (e *TransferError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download of %s failed with status %d", e.URL, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("download of %s failed: %s", e.URL, e.Err.Error())
	}
	return fmt.Sprintf("download of %s failed", e.URL)
}

// Unwrap returns the underlying error
func (e *TransferError) Unwrap() error {
	return e.Err
}

// ExtractionError is returned when every extraction strategy failed for
// an archive. Err holds the last strategy's failure.
type ExtractionError struct {
	Archive string
	Err     error
}

// Error returns the error message
func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction of %s failed: %s", e.Archive, e.Err.Error())
	}
	return fmt.Sprintf("extraction of %s failed", e.Archive)
}

// Unwrap returns the underlying error
func (e *ExtractionError) Unwrap() error {
	return e.Err
}
