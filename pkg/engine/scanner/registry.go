package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/DrSkyle/tagguard/pkg/engine/swarm"
	"github.com/DrSkyle/tagguard/pkg/resource"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// VisitFunc receives every snapshot collected. It may be called concurrently
// for different kinds.
type VisitFunc func(ctx context.Context, s resource.Snapshot)

// Registry manages the targets available for a run.
type Registry struct {
	targets map[resource.Kind]Target
	logger  *slog.Logger
}

// NewRegistry creates a new target registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		targets: make(map[resource.Kind]Target),
		logger:  logger,
	}
}

// Register adds a target, replacing any earlier one for the same kind.
func (r *Registry) Register(t Target) error {
	if t.Collector == nil || t.Tagger == nil {
		return errors.New("target needs both a collector and a tagger")
	}
	r.targets[t.Collector.Kind()] = t
	return nil
}

// Target returns the target for kind.
func (r *Registry) Target(kind resource.Kind) (Target, bool) {
	t, ok := r.targets[kind]
	return t, ok
}

// Kinds lists the registered kinds in processing order.
func (r *Registry) Kinds() []resource.Kind {
	var out []resource.Kind
	for _, k := range resource.AllKinds {
		if _, ok := r.targets[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// CollectAll runs the collectors for kinds on pool and calls visit for every
// snapshot. It returns once every collector has finished. A failing kind
// never stops the others.
func (r *Registry) CollectAll(ctx context.Context, pool *swarm.Engine, kinds []resource.Kind, account string, visit VisitFunc) []Issue {
	var (
		mu     sync.Mutex
		issues []Issue
		wg     sync.WaitGroup
	)
	record := func(i Issue) {
		mu.Lock()
		issues = append(issues, i)
		mu.Unlock()
	}

	for _, kind := range kinds {
		target, ok := r.targets[kind]
		if !ok {
			record(Issue{Kind: kind, Err: &CollectorError{Kind: Unavailable, Resource: kind, Err: errors.New("no collector registered")}})
			continue
		}

		collector := target.Collector
		wg.Add(1)
		err := pool.Submit(ctx, func(ctx context.Context) error {
			defer wg.Done()
			return r.runWithTelemetry(ctx, collector, account, visit, record)
		})
		if err != nil {
			wg.Done()
			record(Issue{Kind: kind, Err: &CollectorError{Kind: Unavailable, Resource: kind, Err: err}})
		}
	}

	wg.Wait()
	return issues
}

func (r *Registry) runWithTelemetry(ctx context.Context, c Collector, account string, visit VisitFunc, record func(Issue)) error {
	kind := c.Kind()
	tr := otel.Tracer("tagguard/scanner")
	ctx, span := tr.Start(ctx, fmt.Sprintf("Collect %s", kind), trace.WithAttributes(
		attribute.String("provider", "aws"),
		attribute.String("resource.kind", string(kind)),
		attribute.String("account", account),
	))
	defer span.End()

	r.logger.Debug("Starting collector", "kind", kind)
	count, reads := 0, 0
	for snap, err := range c.Fetch(ctx) {
		if err == nil {
			count++
			visit(ctx, snap)
			continue
		}

		var rerr *ResourceReadError
		if errors.As(err, &rerr) {
			reads++
			record(Issue{Kind: kind, Err: err})
			r.logger.Warn("Resource tags unreadable", "kind", kind, "resource", rerr.Ref.ID, "error", rerr.Err)
			continue
		}

		var cerr *CollectorError
		if !errors.As(err, &cerr) {
			cerr = &CollectorError{Kind: Unavailable, Resource: kind, Err: err}
		}
		span.RecordError(cerr)
		span.SetStatus(codes.Error, cerr.Error())
		record(Issue{Kind: kind, Err: cerr})
		r.logger.Error("Collector failed", "kind", kind, "category", cerr.Kind, "collected", count, "error", cerr.Err)
		return cerr
	}

	span.SetAttributes(attribute.Int("resources.collected", count), attribute.Int("resources.unreadable", reads))
	r.logger.Info("Collector completed", "kind", kind, "resources", count, "unreadable", reads)
	return nil
}
