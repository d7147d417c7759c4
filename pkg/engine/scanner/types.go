// Package scanner defines the collector contract and fans collection out
// across resource kinds.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/resource"
)

// Collector enumerates the resources of one kind and their current tags.
//
// Fetch returns a lazy sequence; ranging over it again enumerates again. A
// *CollectorError ends the sequence. A *ResourceReadError concerns a single
// resource and the sequence continues after it.
type Collector interface {
	Kind() resource.Kind
	Fetch(ctx context.Context) iter.Seq2[resource.Snapshot, error]
}

// Target pairs the collector and tagger for one kind.
type Target struct {
	Collector Collector
	Tagger    remediation.Tagger
}

// CollectorErrorKind classifies an enumeration failure.
type CollectorErrorKind string

const (
	AuthFailure CollectorErrorKind = "AuthFailure"
	RateLimited CollectorErrorKind = "RateLimited"
	Unavailable CollectorErrorKind = "Unavailable"
)

// CollectorError aborts collection of one kind.
type CollectorError struct {
	Kind     CollectorErrorKind
	Resource resource.Kind
	Err      error
}

func (e *CollectorError) Error() string {
	return fmt.Sprintf("collect %s: %s: %v", e.Resource, e.Kind, e.Err)
}

func (e *CollectorError) Unwrap() error { return e.Err }

// ResourceReadError reports that one resource's tags could not be read.
type ResourceReadError struct {
	Ref resource.Ref
	Err error
}

func (e *ResourceReadError) Error() string {
	return fmt.Sprintf("read tags of %s: %v", e.Ref, e.Err)
}

func (e *ResourceReadError) Unwrap() error { return e.Err }

// Issue is a problem met while collecting.
type Issue struct {
	Kind resource.Kind
	Err  error
}

// Terminal reports whether the issue stopped collection of its kind.
func (i Issue) Terminal() bool {
	var rerr *ResourceReadError
	return !errors.As(i.Err, &rerr)
}

// Category names the issue for reports: the collector error kind, or
// "ResourceReadError".
func (i Issue) Category() string {
	var cerr *CollectorError
	if errors.As(i.Err, &cerr) {
		return string(cerr.Kind)
	}
	if !i.Terminal() {
		return "ResourceReadError"
	}
	return string(Unavailable)
}

// Scope names what the issue affected.
func (i Issue) Scope() string {
	var rerr *ResourceReadError
	if errors.As(i.Err, &rerr) {
		return rerr.Ref.String()
	}
	return string(i.Kind)
}
