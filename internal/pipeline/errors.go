package pipeline

import (
	"errors"
	"fmt"
)

// Run admission errors returned synchronously by the orchestrator. No run
// record is created when one of these is returned.
var (
	ErrAlreadyRunning   = errors.New("campaign already has a running run")
	ErrNotConfigured    = errors.New("campaign has no sources configured")
	ErrInactiveCampaign = errors.New("campaign is not active")
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// FetchError reports a network failure, timeout or non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExtractionError reports a failed content quality gate: empty title or
// content below the minimum length.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s", e.URL, e.Reason)
}

// DiscoveryError reports total failure across all applicable discovery
// methods. Partial success (fewer candidates than requested) is not an error.
type DiscoveryError struct {
	URL string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ParseError reports a model response with no parseable JSON object.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse model response: " + e.Reason
}

// PersistenceError wraps a storage collaborator failure so conversion can
// distinguish "pipeline worked, storage didn't" from pipeline failures.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
