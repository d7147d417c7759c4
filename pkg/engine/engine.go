// Package engine runs one tag compliance pass: collect, evaluate, plan,
// remediate, report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine/compliance"
	"github.com/DrSkyle/tagguard/pkg/engine/notifier"
	"github.com/DrSkyle/tagguard/pkg/engine/policy"
	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/engine/report"
	"github.com/DrSkyle/tagguard/pkg/engine/scanner"
	"github.com/DrSkyle/tagguard/pkg/engine/swarm"
	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/DrSkyle/tagguard/pkg/telemetry"
	"github.com/DrSkyle/tagguard/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPartialResult indicates the run completed but some kinds, resources or
// mutations failed. It is only returned in strict mode.
var ErrPartialResult = errors.New("run completed with partial results")

// Config holds engine settings.
type Config struct {
	Region  string
	Profile string
	// Account overrides the account name used for classification and
	// reporting. The account ID is still resolved when an identity resolver
	// is available.
	Account  string
	MockMode bool
	Verbose  bool

	Kinds     []resource.Kind
	Policy    policy.TagPolicy
	Classify  policy.AccountClassifier
	DryRun    bool
	RetryPass bool
	Mode      report.Mode

	MaxConcurrency int
	CallTimeout    time.Duration
	RetryDelay     time.Duration

	SlackWebhook string
	SlackChannel string
	OutputDir    string // Directory or "s3://bucket/prefix" for report artifacts

	// StrictMode returns ErrPartialResult when the report is not healthy.
	StrictMode bool

	// Telemetry config.
	OtelEndpoint  string // "http://localhost:4318" or via env
	SkipTelemetry bool   // Set true if embedding in an app that already has OTEL

	Logger *slog.Logger
}

// ConfigError is a fatal configuration problem found before any provider call.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IdentityResolver resolves the account the engine runs against.
type IdentityResolver interface {
	VerifyIdentity(ctx context.Context) (string, error)
	AccountAlias(ctx context.Context) (string, error)
}

// Engine is the runtime core.
type Engine struct {
	Registry *scanner.Registry
	Swarm    *swarm.Engine
	Logger   *slog.Logger
	Tracer   trace.Tracer

	config   Config
	targets  []scanner.Target
	identity IdentityResolver
	sinks    []notifier.Sink
	now      func() time.Time
	shutdown func(context.Context) error
}

// Option defines a functional configuration override.
type Option func(*Engine)

// WithConfig sets raw config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
		if cfg.Logger != nil {
			e.Logger = cfg.Logger
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.Logger = l
	}
}

// WithTargets supplies the collectors and taggers instead of building them
// from the AWS session.
func WithTargets(targets ...scanner.Target) Option {
	return func(e *Engine) {
		e.targets = append(e.targets, targets...)
	}
}

// WithIdentity sets the account resolver.
func WithIdentity(id IdentityResolver) Option {
	return func(e *Engine) {
		e.identity = id
	}
}

// WithSinks adds report sinks. Sinks configured from Config are added as well.
func WithSinks(sinks ...notifier.Sink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sinks...)
	}
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New initializes the Engine. Configuration problems are returned as
// *ConfigError and no provider call is made.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	// Safe defaults.
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: redactSensitiveData,
	})
	e := &Engine{
		Logger: slog.New(handler),
		Tracer: otel.Tracer("tagguard/engine"),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.validate(); err != nil {
		return nil, err
	}

	if e.config.MaxConcurrency <= 0 {
		e.config.MaxConcurrency = 10
	}
	if len(e.config.Kinds) == 0 {
		e.config.Kinds = resource.AllKinds
	}
	if e.config.Mode == "" {
		e.config.Mode = report.ModeNonCompliant
	}

	if !e.config.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, telemetry.Options{
			ServiceName:    version.AppName,
			ServiceVersion: version.Current,
			Endpoint:       e.config.OtelEndpoint,
		})
		if err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		} else {
			e.shutdown = shutdown
		}
	}

	if err := e.wireProvider(ctx); err != nil {
		return nil, err
	}

	e.Registry = scanner.NewRegistry(e.Logger)
	for _, t := range e.targets {
		if err := e.Registry.Register(t); err != nil {
			return nil, &ConfigError{Field: "targets", Err: err}
		}
	}
	e.Swarm = swarm.NewEngine(e.config.MaxConcurrency)
	e.Swarm.IsThrottled = isThrottled

	e.sinks = append(e.sinks, notifier.LogSink{Logger: e.Logger})
	if e.config.SlackWebhook != "" {
		e.sinks = append(e.sinks, notifier.NewSlackClient(e.config.SlackWebhook, e.config.SlackChannel))
	}

	return e, nil
}

func (e *Engine) validate() error {
	if err := e.config.Policy.Validate(); err != nil {
		return &ConfigError{Field: "policy", Err: err}
	}
	if e.config.Policy.ClassificationKey != "" && e.config.Classify == nil {
		return &ConfigError{Field: "classify", Err: errors.New("policy has a classification key but no classifier is configured")}
	}
	for _, k := range e.config.Kinds {
		if !k.Valid() {
			return &ConfigError{Field: "kinds", Err: fmt.Errorf("unknown resource kind %q", k)}
		}
	}
	if _, err := report.ParseMode(string(e.config.Mode)); e.config.Mode != "" && err != nil {
		return &ConfigError{Field: "mode", Err: err}
	}
	return nil
}

// Close flushes telemetry.
func (e *Engine) Close(ctx context.Context) error {
	if e.shutdown == nil {
		return nil
	}
	return e.shutdown(ctx)
}

// Run performs one pass and returns the sealed report. Resource-level
// failures are recorded in the report; the error is non-nil only when the
// account cannot be resolved, the run panics, or strict mode sees a partial
// result.
func (e *Engine) Run(ctx context.Context) (rep *report.ComplianceReport, err error) {
	ctx, span := e.Tracer.Start(ctx, "Engine.Run")
	defer span.End()

	// Crash safety.
	defer e.recoverPanic(ctx, &err)

	account, err := e.resolveAccount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("account", account.Identifier()),
		attribute.String("account.id", account.ID),
		attribute.Bool("dry_run", e.config.DryRun),
	)

	e.Logger.Info("Starting TagGuard Engine",
		"version", version.Current,
		"account", account.Identifier(),
		"account_id", account.ID,
		"kinds", len(e.config.Kinds),
		"dry_run", e.config.DryRun,
		"concurrency", e.config.MaxConcurrency)

	r := &run{
		engine:  e,
		account: account,
		policy:  e.config.Policy,
		builder: report.NewBuilder(account.Identifier(), e.config.DryRun),
	}
	if e.config.Policy.ClassificationKey != "" {
		r.classification = e.config.Classify(account)
		r.policy = e.config.Policy.Bind(r.classification)
	}

	r.collect(ctx)
	r.remediate(ctx)
	if e.config.RetryPass && !e.config.DryRun {
		r.retry(ctx)
	}
	e.Swarm.Wait()

	rep = r.builder.Seal(e.now())
	e.deliver(ctx, rep)

	sum := rep.Summary()
	span.SetAttributes(
		attribute.Int("resources", sum.Resources),
		attribute.Int("resources.non_compliant", sum.NonCompliant),
		attribute.Int("resources.failed", sum.Failed),
	)
	e.Logger.Info("Run complete", "summary", sum.String())

	if !rep.Healthy() {
		span.SetAttributes(attribute.Bool("run.partial", true), attribute.Int("run.warnings", len(rep.Warnings)))
		if e.config.StrictMode {
			e.Logger.Error("Strict Mode: Failing due to partial results")
			return rep, ErrPartialResult
		}
		e.Logger.Warn("Run finished with partial errors (StrictMode=false)")
	}
	return rep, nil
}

// resolveAccount returns the account ID and name. The name is the configured
// account, else the IAM alias. With a configured name the ID lookup is best
// effort; without one it is required.
func (e *Engine) resolveAccount(ctx context.Context) (policy.Account, error) {
	acct := policy.Account{Name: e.config.Account}
	if e.identity == nil {
		if acct.Name == "" {
			return acct, &ConfigError{Field: "account", Err: errors.New("no account configured and no identity resolver")}
		}
		return acct, nil
	}

	id, err := e.identity.VerifyIdentity(ctx)
	if err != nil {
		if acct.Name == "" {
			return acct, fmt.Errorf("failed to verify identity: %w", err)
		}
		e.Logger.Warn("Account ID unavailable, classifying by name only", "account", acct.Name, "error", err)
		return acct, nil
	}
	acct.ID = id
	if acct.Name != "" {
		return acct, nil
	}

	alias, err := e.identity.AccountAlias(ctx)
	if err != nil {
		e.Logger.Warn("Account alias unavailable, using account ID", "error", err)
	}
	acct.Name = alias
	return acct, nil
}

// deliver hands the report to every sink. Delivery failures are logged and
// never retried.
func (e *Engine) deliver(ctx context.Context, rep *report.ComplianceReport) {
	for _, s := range e.sinks {
		if err := s.Deliver(ctx, rep); err != nil {
			var derr *notifier.DeliveryError
			if errors.As(err, &derr) {
				e.Logger.Warn("Report delivery failed", "sink", s.Name(), "kind", derr.Kind, "error", derr.Err)
				continue
			}
			e.Logger.Warn("Report delivery failed", "sink", s.Name(), "error", err)
		}
	}
}

// run is the state of one Engine.Run.
type run struct {
	engine         *Engine
	account        policy.Account
	classification policy.Classification
	policy         policy.TagPolicy
	builder        *report.Builder

	mu      sync.Mutex
	pending []compliance.Finding
}

func (r *run) collect(ctx context.Context) {
	e := r.engine
	issues := e.Registry.CollectAll(ctx, e.Swarm, e.config.Kinds, r.account.Identifier(), func(ctx context.Context, s resource.Snapshot) {
		f := compliance.Evaluate(s.Ref, s.Tags, r.policy)
		if err := r.builder.AddFinding(f); err != nil {
			e.Logger.Warn("Finding dropped", "resource", s.Ref.ID, "error", err)
			return
		}
		if f.Compliant() {
			e.Logger.Debug("Resource compliant", "resource", s.Ref.ID)
			return
		}
		e.Logger.Debug("Resource non-compliant", "resource", s.Ref.ID, "violations", f.Violations())
		r.mu.Lock()
		r.pending = append(r.pending, f)
		r.mu.Unlock()
	})

	for _, issue := range issues {
		_ = r.builder.AddWarning(report.Warning{
			Scope:   issue.Scope(),
			Kind:    issue.Category(),
			Message: issue.Err.Error(),
		})
	}
}

func (r *run) remediator() *remediation.Remediator {
	e := r.engine
	taggers := make(map[resource.Kind]remediation.Tagger)
	for _, k := range e.Registry.Kinds() {
		t, _ := e.Registry.Target(k)
		taggers[k] = t.Tagger
	}
	opts := []remediation.RemediatorOption{remediation.WithLogger(e.Logger)}
	if e.config.CallTimeout > 0 {
		opts = append(opts, remediation.WithCallTimeout(e.config.CallTimeout))
	}
	if e.config.RetryDelay > 0 {
		opts = append(opts, remediation.WithRetryDelay(e.config.RetryDelay))
	}
	return remediation.NewRemediator(taggers, opts...)
}

// remediate plans every non-compliant resource and applies the plans on the
// pool. Mutations of one resource run in order on one worker.
func (r *run) remediate(ctx context.Context) {
	e := r.engine
	planner := remediation.NewPlanner(e.config.Policy, r.account)
	var classify policy.AccountClassifier
	if e.config.Policy.ClassificationKey != "" {
		classify = func(policy.Account) policy.Classification { return r.classification }
	}
	rem := r.remediator()

	var wg sync.WaitGroup
	for _, f := range r.pending {
		ms := planner.Plan(f, classify)
		if len(ms) == 0 {
			continue
		}
		ref := f.Resource

		if e.config.DryRun {
			r.record(ref, remediation.SkipAll(ms, remediation.DetailDryRun))
			continue
		}

		wg.Add(1)
		err := e.Swarm.Submit(ctx, func(ctx context.Context) error {
			defer wg.Done()
			r.record(ref, rem.ApplyAll(ctx, ms))
			return nil
		})
		if err != nil {
			wg.Done()
			r.record(ref, remediation.SkipAll(ms, remediation.DetailCancelled))
		}
	}
	wg.Wait()
}

// retry re-applies, once, the failed and isolated mutations of every resource
// that has a failure. The retried outcomes replace the originals in place and
// their attempts accumulate.
func (r *run) retry(ctx context.Context) {
	e := r.engine
	rem := r.remediator()

	var failedRefs []resource.Ref
	for _, f := range r.pending {
		for _, o := range r.builder.Outcomes(f.Resource) {
			if o.Status == remediation.StatusFailed {
				failedRefs = append(failedRefs, f.Resource)
				break
			}
		}
	}
	if len(failedRefs) == 0 {
		return
	}
	e.Logger.Info("Retry pass", "resources", len(failedRefs))

	var wg sync.WaitGroup
	for _, ref := range failedRefs {
		outs := r.builder.Outcomes(ref)
		var idx []int
		var ms []remediation.Mutation
		for i, o := range outs {
			if o.Retryable() {
				idx = append(idx, i)
				ms = append(ms, o.Mutation)
			}
		}

		wg.Add(1)
		err := e.Swarm.Submit(ctx, func(ctx context.Context) error {
			defer wg.Done()
			retried := rem.ApplyAll(ctx, ms)
			for j, o := range retried {
				o.Attempts += outs[idx[j]].Attempts
				outs[idx[j]] = o
			}
			r.record(ref, outs)
			return nil
		})
		if err != nil {
			wg.Done()
		}
	}
	wg.Wait()
}

func (r *run) record(ref resource.Ref, outs []remediation.Outcome) {
	if err := r.builder.SetOutcomes(ref, outs); err != nil {
		r.engine.Logger.Error("Outcomes dropped", "resource", ref.ID, "error", err)
		return
	}
	for _, o := range outs {
		if o.Status == remediation.StatusFailed {
			r.engine.Logger.Warn("Remediation failed", "mutation", o.Mutation.String(), "reason", o.FailureReason, "attempts", o.Attempts)
		}
	}
}

// recoverPanic handles failures.
func (e *Engine) recoverPanic(ctx context.Context, errp *error) {
	if r := recover(); r != nil {
		tr := otel.Tracer("tagguard/engine")
		_, span := tr.Start(ctx, "CriticalPanic")

		stack := debug.Stack()

		span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, "CRITICAL FAILURE")
		span.SetAttributes(
			attribute.String("crash.stack", string(stack)),
			attribute.String("crash.reason", fmt.Sprintf("%v", r)),
		)
		span.End()

		e.Logger.Error("CRITICAL FAILURE", "error", r, "stack", string(stack))

		// Returned, not exited, so library callers keep control.
		*errp = fmt.Errorf("engine panic: %v", r)
	}
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "private_key": true, "auth_token": true,
		"refresh_token": true, "session_token": true, "signature": true,
		"credential": true, "webhook": true, "webhook_url": true,
	}

	if sensitiveKeys[a.Key] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}

// RedactingHandlerOptions returns handler options that scrub sensitive keys.
func RedactingHandlerOptions(level slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, ReplaceAttr: redactSensitiveData}
}
