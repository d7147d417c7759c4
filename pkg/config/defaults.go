// Package config defines default settings and the default tag policy.
package config

import (
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine/policy"
)

// Defaults.
const (
	DefaultRegion      = "us-east-1"
	DefaultConcurrency = 10
	DefaultCallTimeout = 30 * time.Second
)

// DefaultPolicy returns the organisation's baseline tag policy. Only the
// classification tag is remediated automatically; the other rules report.
func DefaultPolicy() policy.TagPolicy {
	return policy.TagPolicy{
		ClassificationKey: policy.DefaultClassificationKey,
		Rules: []policy.TagRule{
			{Key: "Name"},
			{Key: "Environment", AllowedValues: []string{"dev", "prod", "staging", "sandbox"}},
			{Key: "Owner"},
			{Key: "Exposure", AllowedValues: []string{"Internal", "External"}},
			{Key: policy.DefaultClassificationKey, AllowedValues: []string{string(policy.Internal), string(policy.Restricted)}},
			{Key: "Business Criticality"},
		},
	}
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Region:      DefaultRegion,
		Mode:        "noncompliant",
		Concurrency: DefaultConcurrency,
		CallTimeout: DefaultCallTimeout,
		Classifier:  policy.ClassifierSpec{Type: "sandbox"},
		JSONLogs:    true,
	}
}
