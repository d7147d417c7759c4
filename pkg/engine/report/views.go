package report

import (
	"fmt"

	"github.com/DrSkyle/tagguard/pkg/engine/compliance"
	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/resource"
)

// NonCompliant returns the findings with at least one violation.
func (r *ComplianceReport) NonCompliant() []compliance.Finding {
	var out []compliance.Finding
	for _, f := range r.Findings {
		if !f.Compliant() {
			out = append(out, f)
		}
	}
	return out
}

// Audit returns the findings listed in the given mode.
func (r *ComplianceReport) Audit(mode Mode) []compliance.Finding {
	if mode == ModeFull {
		return r.Findings
	}
	return r.NonCompliant()
}

// OutcomesFor returns the outcomes of one resource in plan order.
func (r *ComplianceReport) OutcomesFor(ref resource.Ref) []remediation.Outcome {
	var out []remediation.Outcome
	for _, o := range r.Outcomes {
		if o.Mutation.Resource == ref {
			out = append(out, o)
		}
	}
	return out
}

// Remediated returns the resources with at least one applied mutation and no
// failed one.
func (r *ComplianceReport) Remediated() []resource.Ref {
	return r.resourcesWhere(func(outs []remediation.Outcome) bool {
		return has(outs, remediation.StatusApplied) && !has(outs, remediation.StatusFailed)
	})
}

// FailedRemediation returns the resources with at least one failed mutation.
func (r *ComplianceReport) FailedRemediation() []resource.Ref {
	return r.resourcesWhere(func(outs []remediation.Outcome) bool {
		return has(outs, remediation.StatusFailed)
	})
}

func (r *ComplianceReport) resourcesWhere(keep func([]remediation.Outcome) bool) []resource.Ref {
	var out []resource.Ref
	for _, f := range r.Findings {
		if outs := r.OutcomesFor(f.Resource); len(outs) > 0 && keep(outs) {
			out = append(out, f.Resource)
		}
	}
	return out
}

func has(outs []remediation.Outcome, s remediation.Status) bool {
	for _, o := range outs {
		if o.Status == s {
			return true
		}
	}
	return false
}

// Summary holds the headline counts of a run.
type Summary struct {
	Resources    int `json:"resources"`
	Compliant    int `json:"compliant"`
	NonCompliant int `json:"non_compliant"`
	Remediated   int `json:"remediated"`
	Failed       int `json:"failed"`

	Planned  int `json:"mutations_planned"`
	Applied  int `json:"mutations_applied"`
	Skipped  int `json:"mutations_skipped"`
	Warnings int `json:"warnings"`
}

// Summary derives the counts from the report.
func (r *ComplianceReport) Summary() Summary {
	s := Summary{
		Resources:  len(r.Findings),
		Remediated: len(r.Remediated()),
		Failed:     len(r.FailedRemediation()),
		Planned:    len(r.Outcomes),
		Warnings:   len(r.Warnings),
	}
	for _, f := range r.Findings {
		if f.Compliant() {
			s.Compliant++
		} else {
			s.NonCompliant++
		}
	}
	for _, o := range r.Outcomes {
		switch o.Status {
		case remediation.StatusApplied:
			s.Applied++
		case remediation.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d resources: %d compliant, %d non-compliant, %d remediated, %d failed",
		s.Resources, s.Compliant, s.NonCompliant, s.Remediated, s.Failed)
}

// Healthy reports whether nothing went wrong during the run.
func (r *ComplianceReport) Healthy() bool {
	return len(r.Warnings) == 0 && len(r.FailedRemediation()) == 0
}
