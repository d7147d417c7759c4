// Package policy holds the declarative tag policy model and the account
// classification rules used to derive the classification tag value.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultClassificationKey is the tag whose value is derived from account identity.
const DefaultClassificationKey = "DataClassification"

// TagRule is a single, independent requirement on one tag key.
type TagRule struct {
	Key string `yaml:"key" json:"key" mapstructure:"key"`
	// AllowedValues restricts the value when non-empty. Empty means any value is valid.
	AllowedValues []string `yaml:"allowed_values,omitempty" json:"allowed_values,omitempty" mapstructure:"allowed_values"`
	// Forbidden marks a key that must not be present at all.
	Forbidden bool `yaml:"forbidden,omitempty" json:"forbidden,omitempty" mapstructure:"forbidden"`
	// Remediation is the value written when the key is missing or disallowed.
	// Rules without it are informational.
	Remediation string `yaml:"remediation,omitempty" json:"remediation,omitempty" mapstructure:"remediation"`
}

// Allows reports whether v satisfies the rule's value restriction.
func (r TagRule) Allows(v string) bool {
	if len(r.AllowedValues) == 0 {
		return true
	}
	for _, a := range r.AllowedValues {
		if a == v {
			return true
		}
	}
	return false
}

// Enforceable reports whether a violation of r may be corrected automatically.
func (r TagRule) Enforceable() bool {
	return r.Forbidden || r.Remediation != ""
}

// TagPolicy is an ordered list of rules. Rules do not interact.
type TagPolicy struct {
	// ClassificationKey names the rule whose value comes from the account classifier.
	// Empty disables classification remediation.
	ClassificationKey string    `yaml:"classification_key,omitempty" json:"classification_key,omitempty" mapstructure:"classification_key"`
	Rules             []TagRule `yaml:"rules" json:"rules" mapstructure:"rules"`
}

// ValidationError lists every problem found in a policy.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid tag policy: " + strings.Join(e.Problems, "; ")
}

// ErrEmptyPolicy is returned when a policy has no rules and no classification key.
var ErrEmptyPolicy = errors.New("tag policy has no rules")

// Validate checks the policy is well formed. A policy that validates can never
// fail evaluation.
func (p TagPolicy) Validate() error {
	if len(p.Rules) == 0 && p.ClassificationKey == "" {
		return ErrEmptyPolicy
	}

	var problems []string
	seen := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		key := strings.TrimSpace(r.Key)
		if key == "" {
			problems = append(problems, fmt.Sprintf("rule %d: empty key", i))
			continue
		}
		if key != r.Key {
			problems = append(problems, fmt.Sprintf("rule %q: key has surrounding whitespace", r.Key))
		}
		if seen[r.Key] {
			problems = append(problems, fmt.Sprintf("rule %q: duplicate key", r.Key))
		}
		seen[r.Key] = true

		if r.Forbidden && len(r.AllowedValues) > 0 {
			problems = append(problems, fmt.Sprintf("rule %q: forbidden rule cannot list allowed values", r.Key))
		}
		if r.Forbidden && r.Remediation != "" {
			problems = append(problems, fmt.Sprintf("rule %q: forbidden rule cannot carry a remediation value", r.Key))
		}
		if r.Remediation != "" && !r.Allows(r.Remediation) {
			problems = append(problems, fmt.Sprintf("rule %q: remediation value %q is not an allowed value", r.Key, r.Remediation))
		}
		if r.Key == p.ClassificationKey {
			if r.Forbidden {
				problems = append(problems, fmt.Sprintf("rule %q: classification key cannot be forbidden", r.Key))
			}
			if r.Remediation != "" {
				problems = append(problems, fmt.Sprintf("rule %q: classification value is derived from the account, remove remediation", r.Key))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Rule returns the rule for key.
func (p TagPolicy) Rule(key string) (TagRule, bool) {
	for _, r := range p.Rules {
		if r.Key == key {
			return r, true
		}
	}
	return TagRule{}, false
}

// Bind returns a copy of p in which the classification rule only allows the
// account's classification value. This makes a disagreeing classification tag
// surface as a disallowed value during evaluation. If the policy has a
// classification key without a rule, one is appended.
func (p TagPolicy) Bind(c Classification) TagPolicy {
	out := TagPolicy{
		ClassificationKey: p.ClassificationKey,
		Rules:             make([]TagRule, 0, len(p.Rules)+1),
	}
	bound := false
	for _, r := range p.Rules {
		r.AllowedValues = append([]string(nil), r.AllowedValues...)
		if p.ClassificationKey != "" && r.Key == p.ClassificationKey {
			r.AllowedValues = []string{string(c)}
			bound = true
		}
		out.Rules = append(out.Rules, r)
	}
	if p.ClassificationKey != "" && !bound {
		out.Rules = append(out.Rules, TagRule{Key: p.ClassificationKey, AllowedValues: []string{string(c)}})
	}
	return out
}

// Load reads and validates a YAML policy file.
func Load(path string) (TagPolicy, error) {
	f, err := os.Open(path)
	if err != nil {
		return TagPolicy{}, fmt.Errorf("failed to open policy file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Parse decodes and validates a YAML policy document.
func Parse(data []byte) (TagPolicy, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a YAML policy from r. Unknown fields are rejected.
func Decode(r io.Reader) (TagPolicy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p TagPolicy
	if err := dec.Decode(&p); err != nil {
		return TagPolicy{}, fmt.Errorf("failed to parse policy yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return TagPolicy{}, err
	}
	return p, nil
}

// Marshal renders p as YAML.
func Marshal(p TagPolicy) ([]byte, error) {
	return yaml.Marshal(p)
}
