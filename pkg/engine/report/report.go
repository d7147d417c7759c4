// Package report accumulates the findings and mutation outcomes of a run and
// exposes derived views over the sealed result.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine/compliance"
	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/resource"
)

var (
	// ErrSealed is returned when appending to a sealed report.
	ErrSealed = errors.New("report is sealed")
	// ErrUnknownResource is returned when an outcome targets a resource with no finding.
	ErrUnknownResource = errors.New("outcome references a resource that was not evaluated")
	// ErrDuplicateFinding is returned when a resource is evaluated twice.
	ErrDuplicateFinding = errors.New("resource already has a finding")
)

// Mode selects which findings an audit listing includes.
type Mode string

const (
	ModeNonCompliant Mode = "noncompliant"
	ModeFull         Mode = "full"
)

// ParseMode resolves a mode name. Empty means ModeNonCompliant.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeNonCompliant:
		return ModeNonCompliant, nil
	case ModeFull:
		return ModeFull, nil
	}
	return "", fmt.Errorf("unknown report mode %q", s)
}

// Warning is a run-level problem that did not stop the run.
type Warning struct {
	Scope   string `json:"scope"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ComplianceReport is the sealed, read-only result of one run.
type ComplianceReport struct {
	AccountIdentifier string                `json:"account_identifier"`
	GeneratedAt       time.Time             `json:"generated_at"`
	DryRun            bool                  `json:"dry_run"`
	Findings          []compliance.Finding  `json:"findings"`
	Outcomes          []remediation.Outcome `json:"outcomes"`
	Warnings          []Warning             `json:"warnings,omitempty"`
}

// Builder accumulates a report. It is safe for concurrent use.
type Builder struct {
	mu       sync.Mutex
	account  string
	dryRun   bool
	sealed   bool
	findings map[resource.Ref]compliance.Finding
	outcomes map[resource.Ref][]remediation.Outcome
	warnings []Warning
}

// NewBuilder starts a report for account.
func NewBuilder(account string, dryRun bool) *Builder {
	return &Builder{
		account:  account,
		dryRun:   dryRun,
		findings: make(map[resource.Ref]compliance.Finding),
		outcomes: make(map[resource.Ref][]remediation.Outcome),
	}
}

// AddFinding records the finding for one resource.
func (b *Builder) AddFinding(f compliance.Finding) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return ErrSealed
	}
	if _, ok := b.findings[f.Resource]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFinding, f.Resource)
	}
	b.findings[f.Resource] = f
	return nil
}

// SetOutcomes records the outcomes for ref, replacing any earlier ones. The
// order of outs is kept.
func (b *Builder) SetOutcomes(ref resource.Ref, outs []remediation.Outcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return ErrSealed
	}
	if _, ok := b.findings[ref]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResource, ref)
	}
	for _, o := range outs {
		if o.Mutation.Resource != ref {
			return fmt.Errorf("%w: %s", ErrUnknownResource, o.Mutation.Resource)
		}
	}
	b.outcomes[ref] = append([]remediation.Outcome(nil), outs...)
	return nil
}

// Outcomes returns a copy of the outcomes recorded for ref.
func (b *Builder) Outcomes(ref resource.Ref) []remediation.Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]remediation.Outcome(nil), b.outcomes[ref]...)
}

// AddWarning records a run-level warning.
func (b *Builder) AddWarning(w Warning) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return ErrSealed
	}
	b.warnings = append(b.warnings, w)
	return nil
}

// Seal freezes the builder and returns the report. Findings are ordered by
// resource ID; outcomes follow the same resource order and keep plan order
// within a resource.
func (b *Builder) Seal(generatedAt time.Time) *ComplianceReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true

	refs := make([]resource.Ref, 0, len(b.findings))
	for ref := range b.findings {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })

	r := &ComplianceReport{
		AccountIdentifier: b.account,
		GeneratedAt:       generatedAt.UTC(),
		DryRun:            b.dryRun,
		Findings:          make([]compliance.Finding, 0, len(refs)),
		Outcomes:          []remediation.Outcome{},
		Warnings:          append([]Warning(nil), b.warnings...),
	}
	for _, ref := range refs {
		r.Findings = append(r.Findings, b.findings[ref])
		r.Outcomes = append(r.Outcomes, b.outcomes[ref]...)
	}
	sort.SliceStable(r.Warnings, func(i, j int) bool { return r.Warnings[i].Scope < r.Warnings[j].Scope })
	return r
}
