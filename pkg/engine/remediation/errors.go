package remediation

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a provider failure during remediation.
type ErrorKind string

const (
	PermissionDenied ErrorKind = "PermissionDenied"
	NotFound         ErrorKind = "NotFound"
	Transient        ErrorKind = "Transient"
)

// RemediationError is a resource-scoped failure returned by a Tagger.
type RemediationError struct {
	Kind ErrorKind
	Err  error
}

func (e *RemediationError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RemediationError) Unwrap() error { return e.Err }

// NewError wraps err with a kind.
func NewError(kind ErrorKind, err error) *RemediationError {
	return &RemediationError{Kind: kind, Err: err}
}

// KindOf returns the kind of err. Errors that are not a RemediationError are
// treated as transient.
func KindOf(err error) ErrorKind {
	var rerr *RemediationError
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return Transient
}
