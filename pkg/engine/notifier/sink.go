// Package notifier delivers sealed compliance reports.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DrSkyle/tagguard/pkg/engine/report"
)

// Sink receives the sealed report at the end of a run. Sinks own their retry
// policy; the engine never retries a delivery.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, r *report.ComplianceReport) error
}

// DeliveryErrorKind classifies delivery failures.
type DeliveryErrorKind string

const (
	AuthFailure      DeliveryErrorKind = "AuthFailure"
	Throttled        DeliveryErrorKind = "Throttled"
	InvalidRecipient DeliveryErrorKind = "InvalidRecipient"
)

// DeliveryError is returned by a Sink that could not deliver the report.
type DeliveryError struct {
	Kind DeliveryErrorKind
	Sink string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed (%s): %v", e.Sink, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsDeliveryError reports whether err is a DeliveryError of kind.
func IsDeliveryError(err error, kind DeliveryErrorKind) bool {
	var derr *DeliveryError
	return errors.As(err, &derr) && derr.Kind == kind
}

// LogSink writes the report summary to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Name() string { return "log" }

func (s LogSink) Deliver(ctx context.Context, r *report.ComplianceReport) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sum := r.Summary()
	logger.InfoContext(ctx, "Compliance report",
		"account", r.AccountIdentifier,
		"dry_run", r.DryRun,
		"resources", sum.Resources,
		"compliant", sum.Compliant,
		"non_compliant", sum.NonCompliant,
		"remediated", sum.Remediated,
		"failed", sum.Failed,
		"warnings", sum.Warnings,
	)
	for _, w := range r.Warnings {
		logger.WarnContext(ctx, "Run warning", "scope", w.Scope, "kind", w.Kind, "message", w.Message)
	}
	return nil
}
