// Package remediation plans and applies corrective tag mutations.
package remediation

import (
	"fmt"

	"github.com/DrSkyle/tagguard/pkg/resource"
)

// Action is the kind of tag mutation.
type Action string

const (
	ActionSet    Action = "Set"
	ActionDelete Action = "Delete"
)

// Mutation is a single planned tag change. It is consumed exactly once.
type Mutation struct {
	Resource resource.Ref `json:"resource"`
	Key      string       `json:"key"`
	Action   Action       `json:"action"`
	// Value is only meaningful for ActionSet.
	Value string `json:"value,omitempty"`
}

func (m Mutation) String() string {
	if m.Action == ActionDelete {
		return fmt.Sprintf("%s: delete %s", m.Resource, m.Key)
	}
	return fmt.Sprintf("%s: set %s=%s", m.Resource, m.Key, m.Value)
}

// Status is the result of applying a mutation.
type Status string

const (
	StatusApplied Status = "Applied"
	StatusSkipped Status = "Skipped"
	StatusFailed  Status = "Failed"
)

// Skip details.
const (
	DetailDryRun       = "dry-run"
	DetailResourceGone = "ResourceGone"
	DetailIsolated     = "isolated"
	DetailCancelled    = "cancelled"
)

// Outcome records what happened to one mutation.
type Outcome struct {
	Mutation Mutation `json:"mutation"`
	Status   Status   `json:"status"`
	// FailureReason is set if and only if Status is StatusFailed.
	FailureReason string `json:"failure_reason,omitempty"`
	// Detail explains a skip, or carries the provider message of a failure.
	Detail   string `json:"detail,omitempty"`
	Attempts int    `json:"attempts"`
}

func applied(m Mutation, attempts int) Outcome {
	return Outcome{Mutation: m, Status: StatusApplied, Attempts: attempts}
}

func skipped(m Mutation, detail string, attempts int) Outcome {
	return Outcome{Mutation: m, Status: StatusSkipped, Detail: detail, Attempts: attempts}
}

func failed(m Mutation, reason ErrorKind, detail string, attempts int) Outcome {
	return Outcome{Mutation: m, Status: StatusFailed, FailureReason: string(reason), Detail: detail, Attempts: attempts}
}

// SkipAll marks every mutation as skipped with the given detail.
func SkipAll(ms []Mutation, detail string) []Outcome {
	out := make([]Outcome, 0, len(ms))
	for _, m := range ms {
		out = append(out, skipped(m, detail, 0))
	}
	return out
}

// Retryable reports whether the outcome should be re-queued by a retry pass.
// Permission and transient failures are retried, as are mutations skipped
// because an earlier mutation on the same resource failed.
func (o Outcome) Retryable() bool {
	switch o.Status {
	case StatusFailed:
		return true
	case StatusSkipped:
		return o.Detail == DetailIsolated
	}
	return false
}
