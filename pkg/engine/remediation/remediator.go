package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DrSkyle/tagguard/pkg/resource"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Unsupported is reported when no tagger is registered for a resource kind.
const Unsupported ErrorKind = "Unsupported"

// Tagger writes tags for one resource kind. Both calls must be idempotent:
// setting a key to its current value, or deleting an absent key, succeeds.
type Tagger interface {
	SetTag(ctx context.Context, ref resource.Ref, key, value string) error
	DeleteTag(ctx context.Context, ref resource.Ref, key string) error
}

// Remediator applies mutations through the tagger registered for each kind.
type Remediator struct {
	taggers     map[resource.Kind]Tagger
	callTimeout time.Duration
	retryDelay  time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
}

// RemediatorOption configures a Remediator.
type RemediatorOption func(*Remediator)

// WithCallTimeout bounds every provider call. Zero disables the bound.
func WithCallTimeout(d time.Duration) RemediatorOption {
	return func(r *Remediator) { r.callTimeout = d }
}

// WithRetryDelay sets the pause before retrying a transient failure.
func WithRetryDelay(d time.Duration) RemediatorOption {
	return func(r *Remediator) { r.retryDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RemediatorOption {
	return func(r *Remediator) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRemediator creates a remediator over the given taggers.
func NewRemediator(taggers map[resource.Kind]Tagger, opts ...RemediatorOption) *Remediator {
	r := &Remediator{
		taggers:     make(map[resource.Kind]Tagger, len(taggers)),
		callTimeout: 30 * time.Second,
		retryDelay:  500 * time.Millisecond,
		logger:      slog.Default(),
		tracer:      otel.Tracer("tagguard/remediation"),
	}
	for k, t := range taggers {
		r.taggers[k] = t
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply executes one mutation. Permission failures are final, a missing
// resource is skipped, and any other failure is retried once with the retry
// being final. Once ctx is done no new provider call is started, but a call
// already in flight runs to completion.
func (r *Remediator) Apply(ctx context.Context, m Mutation) Outcome {
	if ctx.Err() != nil {
		return skipped(m, DetailCancelled, 0)
	}

	ctx, span := r.tracer.Start(ctx, "Remediator.Apply", trace.WithAttributes(
		attribute.String("resource.kind", string(m.Resource.Kind)),
		attribute.String("resource.id", m.Resource.ID),
		attribute.String("tag.key", m.Key),
		attribute.String("tag.action", string(m.Action)),
	))
	defer span.End()

	out := r.apply(ctx, m)

	span.SetAttributes(
		attribute.String("outcome.status", string(out.Status)),
		attribute.Int("outcome.attempts", out.Attempts),
	)
	if out.Status == StatusFailed {
		span.SetStatus(codes.Error, out.FailureReason)
		r.logger.Warn("Remediation failed", "resource", m.Resource.String(), "key", m.Key, "reason", out.FailureReason, "detail", out.Detail)
	} else {
		r.logger.Debug("Remediation finished", "resource", m.Resource.String(), "key", m.Key, "status", out.Status)
	}
	return out
}

func (r *Remediator) apply(ctx context.Context, m Mutation) Outcome {
	tagger, ok := r.taggers[m.Resource.Kind]
	if !ok {
		return failed(m, Unsupported, fmt.Sprintf("no tagger for kind %s", m.Resource.Kind), 0)
	}
	if m.Action != ActionSet && m.Action != ActionDelete {
		return failed(m, Unsupported, fmt.Sprintf("unknown action %q", m.Action), 0)
	}

	err := r.call(ctx, tagger, m)
	if err == nil {
		return applied(m, 1)
	}

	switch KindOf(err) {
	case PermissionDenied:
		return failed(m, PermissionDenied, err.Error(), 1)
	case NotFound:
		return skipped(m, DetailResourceGone, 1)
	}

	r.logger.Debug("Retrying transient remediation failure", "resource", m.Resource.String(), "key", m.Key, "error", err)
	if !r.pause(ctx) {
		return failed(m, Transient, err.Error(), 1)
	}

	err = r.call(ctx, tagger, m)
	if err == nil {
		return applied(m, 2)
	}
	switch kind := KindOf(err); kind {
	case NotFound:
		return skipped(m, DetailResourceGone, 2)
	default:
		return failed(m, kind, err.Error(), 2)
	}
}

// call detaches the provider call from cancellation so a tag write is never
// cut off half way; the call timeout still bounds it.
func (r *Remediator) call(ctx context.Context, t Tagger, m Mutation) error {
	callCtx := context.WithoutCancel(ctx)
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, r.callTimeout)
		defer cancel()
	}

	if m.Action == ActionDelete {
		return t.DeleteTag(callCtx, m.Resource, m.Key)
	}
	return t.SetTag(callCtx, m.Resource, m.Key, m.Value)
}

func (r *Remediator) pause(ctx context.Context) bool {
	if r.retryDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(r.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// ApplyAll applies one resource's mutations in order. After a failure the
// remaining mutations are skipped as isolated; after the resource turns out to
// be gone, or ctx is done, the rest are skipped with the same detail.
func (r *Remediator) ApplyAll(ctx context.Context, ms []Mutation) []Outcome {
	outcomes := make([]Outcome, 0, len(ms))
	for i, m := range ms {
		o := r.Apply(ctx, m)
		outcomes = append(outcomes, o)

		var rest string
		switch {
		case o.Status == StatusFailed:
			rest = DetailIsolated
		case o.Status == StatusSkipped:
			rest = o.Detail
		}
		if rest != "" {
			outcomes = append(outcomes, SkipAll(ms[i+1:], rest)...)
			break
		}
	}
	return outcomes
}
