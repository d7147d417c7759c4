package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine"
	"github.com/DrSkyle/tagguard/pkg/engine/policy"
	"github.com/DrSkyle/tagguard/pkg/engine/report"
	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TAGGUARD_DRY_RUN.
const EnvPrefix = "TAGGUARD"

// Settings is the decoded configuration file, environment and flags.
type Settings struct {
	Region    string   `mapstructure:"region"`
	Profile   string   `mapstructure:"profile"`
	Account   string   `mapstructure:"account"`
	Kinds     []string `mapstructure:"kinds"`
	DryRun    bool     `mapstructure:"dry_run"`
	RetryPass bool     `mapstructure:"retry_pass"`
	Strict    bool     `mapstructure:"strict"`
	Mode      string   `mapstructure:"mode"`

	Concurrency int           `mapstructure:"concurrency"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`

	PolicyFile string                `mapstructure:"policy_file"`
	Policy     *policy.TagPolicy     `mapstructure:"policy"`
	Classifier policy.ClassifierSpec `mapstructure:"classifier"`

	Slack SlackSettings `mapstructure:"slack"`

	Output        string `mapstructure:"output"`
	OtelEndpoint  string `mapstructure:"otel_endpoint"`
	SkipTelemetry bool   `mapstructure:"skip_telemetry"`
	JSONLogs      bool   `mapstructure:"json_logs"`
	Verbose       bool   `mapstructure:"verbose"`
	Mock          bool   `mapstructure:"mock"`
}

type SlackSettings struct {
	Webhook string `mapstructure:"webhook"`
	Channel string `mapstructure:"channel"`
}

// SetDefaults registers DefaultSettings on v so unset keys decode to them.
func SetDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("region", d.Region)
	v.SetDefault("mode", d.Mode)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("call_timeout", d.CallTimeout)
	v.SetDefault("classifier.type", d.Classifier.Type)
	v.SetDefault("json_logs", d.JSONLogs)
	for _, key := range []string{"dry_run", "retry_pass", "strict", "mock", "skip_telemetry", "verbose"} {
		v.SetDefault(key, false)
	}
	for _, key := range []string{"profile", "account", "policy_file", "output", "otel_endpoint", "slack.webhook", "slack.channel"} {
		v.SetDefault(key, "")
	}
}

// NewViper returns a viper instance with defaults and TAGGUARD_ environment
// overrides registered.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load decodes v into Settings.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// ResolvePolicy returns the policy file if set, else the inline policy, else
// DefaultPolicy.
func (s Settings) ResolvePolicy() (policy.TagPolicy, error) {
	switch {
	case s.PolicyFile != "":
		return policy.Load(s.PolicyFile)
	case s.Policy != nil:
		if err := s.Policy.Validate(); err != nil {
			return policy.TagPolicy{}, err
		}
		return *s.Policy, nil
	}
	return DefaultPolicy(), nil
}

// ResolveKinds parses the configured kinds. Empty means every kind.
func (s Settings) ResolveKinds() ([]resource.Kind, error) {
	if len(s.Kinds) == 0 {
		return resource.AllKinds, nil
	}
	var kinds []resource.Kind
	seen := make(map[resource.Kind]bool)
	for _, raw := range s.Kinds {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := resource.ParseKind(part)
			if err != nil {
				return nil, err
			}
			if !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
	}
	return kinds, nil
}

// EngineConfig converts the settings. Any error is a configuration error and
// the run must not start.
func (s Settings) EngineConfig(logger *slog.Logger) (engine.Config, error) {
	p, err := s.ResolvePolicy()
	if err != nil {
		return engine.Config{}, &engine.ConfigError{Field: "policy", Err: err}
	}
	classify, err := s.Classifier.Build(logger)
	if err != nil {
		return engine.Config{}, &engine.ConfigError{Field: "classifier", Err: err}
	}
	kinds, err := s.ResolveKinds()
	if err != nil {
		return engine.Config{}, &engine.ConfigError{Field: "kinds", Err: err}
	}
	mode, err := report.ParseMode(s.Mode)
	if err != nil {
		return engine.Config{}, &engine.ConfigError{Field: "mode", Err: err}
	}

	return engine.Config{
		Region:         s.Region,
		Profile:        s.Profile,
		Account:        s.Account,
		MockMode:       s.Mock,
		Verbose:        s.Verbose,
		Kinds:          kinds,
		Policy:         p,
		Classify:       classify,
		DryRun:         s.DryRun,
		RetryPass:      s.RetryPass,
		Mode:           mode,
		MaxConcurrency: s.Concurrency,
		CallTimeout:    s.CallTimeout,
		SlackWebhook:   s.Slack.Webhook,
		SlackChannel:   s.Slack.Channel,
		OutputDir:      s.Output,
		StrictMode:     s.Strict,
		OtelEndpoint:   s.OtelEndpoint,
		SkipTelemetry:  s.SkipTelemetry,
		Logger:         logger,
	}, nil
}
