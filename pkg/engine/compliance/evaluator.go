// Package compliance computes tag drift for a single resource.
package compliance

import (
	"sort"

	"github.com/DrSkyle/tagguard/pkg/engine/policy"
	"github.com/DrSkyle/tagguard/pkg/resource"
)

// Finding is the drift computed for one resource in one run.
type Finding struct {
	Resource resource.Ref `json:"resource"`
	// MissingKeys and DisallowedValueKeys are in policy rule order.
	MissingKeys          []string          `json:"missing_keys,omitempty"`
	DisallowedValueKeys  []string          `json:"disallowed_value_keys,omitempty"`
	ForbiddenKeysPresent map[string]string `json:"forbidden_keys_present,omitempty"`
}

// Compliant reports whether the finding carries no drift at all.
func (f Finding) Compliant() bool {
	return len(f.MissingKeys) == 0 && len(f.DisallowedValueKeys) == 0 && len(f.ForbiddenKeysPresent) == 0
}

// IsMissing reports whether key was missing.
func (f Finding) IsMissing(key string) bool {
	return contains(f.MissingKeys, key)
}

// IsDisallowed reports whether key carried a disallowed value.
func (f Finding) IsDisallowed(key string) bool {
	return contains(f.DisallowedValueKeys, key)
}

// ForbiddenKeys returns the forbidden keys present, sorted.
func (f Finding) ForbiddenKeys() []string {
	keys := make([]string, 0, len(f.ForbiddenKeysPresent))
	for k := range f.ForbiddenKeysPresent {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Violations is the total number of drift entries.
func (f Finding) Violations() int {
	return len(f.MissingKeys) + len(f.DisallowedValueKeys) + len(f.ForbiddenKeysPresent)
}

// Evaluate applies p to tags. It has no side effects and is deterministic.
func Evaluate(ref resource.Ref, tags resource.TagSet, p policy.TagPolicy) Finding {
	f := Finding{Resource: ref}
	for _, rule := range p.Rules {
		value, present := tags.Get(rule.Key)
		switch {
		case rule.Forbidden && present:
			if f.ForbiddenKeysPresent == nil {
				f.ForbiddenKeysPresent = make(map[string]string)
			}
			f.ForbiddenKeysPresent[rule.Key] = value
		case rule.Forbidden:
			// absent, nothing to report
		case !present:
			f.MissingKeys = append(f.MissingKeys, rule.Key)
		case !rule.Allows(value):
			f.DisallowedValueKeys = append(f.DisallowedValueKeys, rule.Key)
		}
	}
	return f
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
