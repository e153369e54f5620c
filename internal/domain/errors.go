package domain

import (
	"errors"
	"fmt"
)

// ErrAllSourcesFailed is returned by the resolver when every descriptor failed
// and no fallback dataset is configured.
var ErrAllSourcesFailed = errors.New("all sources failed")

var errEmptyDate = errors.New("empty date")

// NetworkError is a transport failure or a non-2xx response
type NetworkError struct {
	URL        string
	Status     int
	StatusText string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	if e.StatusText != "" {
		return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.Status, e.StatusText)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedPayloadError is a JSON parse failure or a shape mismatch
type MalformedPayloadError struct {
	Source string
	Reason string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed payload from %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed payload from %s: %s", e.Source, e.Reason)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// InvalidRecordError is a record-level validation failure. The record is
// dropped; the load cycle continues.
type InvalidRecordError struct {
	ID     string
	Field  string
	Reason string
	Err    error
}

func (e *InvalidRecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid record: %s", e.Reason)
	}
	return fmt.Sprintf("invalid record %s: %s", e.ID, e.Reason)
}

func (e *InvalidRecordError) Unwrap() error { return e.Err }

// EmptyDatasetError means there were no usable records and no defaults
type EmptyDatasetError struct {
	Dropped int
}

func (e *EmptyDatasetError) Error() string {
	if e.Dropped > 0 {
		return fmt.Sprintf("empty dataset: no usable records (%d dropped)", e.Dropped)
	}
	return "empty dataset: no usable records"
}

// UnattributedRecordWarning is raised for a record whose domain cannot be
// inferred from its source. It is logged, never returned as a failure.
type UnattributedRecordWarning struct {
	ID     string
	Source string
}

func (w *UnattributedRecordWarning) Error() string {
	if w.Source == "" {
		return fmt.Sprintf("record %s has no domain", w.ID)
	}
	return fmt.Sprintf("record %s from %s has no domain", w.ID, w.Source)
}
