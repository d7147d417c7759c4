package remediation

import (
	"github.com/DrSkyle/tagguard/pkg/engine/compliance"
	"github.com/DrSkyle/tagguard/pkg/engine/policy"
)

// Planner turns findings into mutations for one account.
//
// The policy should be the one the findings were evaluated against, bound to
// the account's classification (see policy.TagPolicy.Bind) so that a
// disagreeing classification value shows up as disallowed.
type Planner struct {
	policy  policy.TagPolicy
	account policy.Account
}

// NewPlanner creates a planner for account.
func NewPlanner(p policy.TagPolicy, account policy.Account) *Planner {
	return &Planner{policy: p, account: account}
}

// Plan returns the mutations that bring the resource in line with the policy.
// Deletes of forbidden keys come first, then sets in rule order. Violations of
// rules that carry no remediation value are left for the report.
func (p *Planner) Plan(f compliance.Finding, classify policy.AccountClassifier) []Mutation {
	if f.Compliant() {
		return nil
	}

	var out []Mutation
	for _, key := range f.ForbiddenKeys() {
		out = append(out, Mutation{Resource: f.Resource, Key: key, Action: ActionDelete})
	}

	for _, rule := range p.policy.Rules {
		if rule.Forbidden {
			continue
		}
		if !f.IsMissing(rule.Key) && !f.IsDisallowed(rule.Key) {
			continue
		}

		switch {
		case p.policy.ClassificationKey != "" && rule.Key == p.policy.ClassificationKey:
			if classify == nil {
				continue
			}
			out = append(out, Mutation{
				Resource: f.Resource,
				Key:      rule.Key,
				Action:   ActionSet,
				Value:    string(classify(p.account)),
			})
		case rule.Remediation != "":
			out = append(out, Mutation{Resource: f.Resource, Key: rule.Key, Action: ActionSet, Value: rule.Remediation})
		}
	}
	return out
}
