package entities

import "fmt"

// IdentityExtractionError means a single artifact could not be identified.
// The run skips the artifact and continues.
type IdentityExtractionError struct {
	Path string
	Err  error
}

func (e *IdentityExtractionError) Error() string {
	return fmt.Sprintf("unable to identify artifact %s: %v", e.Path, e.Err)
}

func (e *IdentityExtractionError) Unwrap() error { return e.Err }

// PolicyValidationError names the first missing or invalid policy setting
type PolicyValidationError struct {
	Category Category
	Missing  bool
	Value    string
}

func (e *PolicyValidationError) Error() string {
	if e.Missing {
		return fmt.Sprintf("missing setting: %s", e.Category)
	}
	return fmt.Sprintf("invalid mode for %s: %q", e.Category, e.Value)
}

// LookupClientError is a genuine I/O or protocol failure of the vulnerability lookup
type LookupClientError struct {
	Op  string
	Err error
}

func (e *LookupClientError) Error() string {
	return fmt.Sprintf("vulnerability lookup %s failed: %v", e.Op, e.Err)
}

func (e *LookupClientError) Unwrap() error { return e.Err }

// SynchronizationError means the vulnerability database could not be updated
type SynchronizationError struct {
	Err error
}

func (e *SynchronizationError) Error() string {
	return fmt.Sprintf("database synchronization failed: %v", e.Err)
}

func (e *SynchronizationError) Unwrap() error { return e.Err }
