// Package classify implements the two classifier stages of the triage cascade:
// a cheap batch classifier and a costlier per-item confirmation classifier.
package classify

import "fmt"

// UnavailableError represents a transport failure, timeout or non-success
// response from a classifier.
type UnavailableError struct {
	Message string
	Cause   error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("classifier unavailable: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("classifier unavailable: %s", e.Message)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// MalformedResponseError represents classifier output that no parser accepted.
type MalformedResponseError struct {
	Message string
	Raw     string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed classifier response: %s", e.Message)
}
