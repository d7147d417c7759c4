package policy

import (
	"fmt"
	"log/slog"
	"strings"
)

// Classification is the value written to the classification tag.
type Classification string

const (
	Restricted Classification = "Restricted"
	Internal   Classification = "Internal"
)

// ParseClassification resolves a classification name, case-insensitively.
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "restricted":
		return Restricted, nil
	case "internal":
		return Internal, nil
	}
	return "", fmt.Errorf("unknown classification %q", s)
}

// Account is the identity a run classifies against.
type Account struct {
	// ID is the numeric provider account ID. Empty when unknown.
	ID string
	// Name is the configured account name or the IAM alias. Empty when unknown.
	Name string
}

// Identifier returns the name, or the ID when no name is known. It is the
// value reports are keyed by.
func (a Account) Identifier() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// AccountClassifier maps an account to its classification.
// Implementations must be pure: the same account always yields the same value.
type AccountClassifier func(account Account) Classification

// SandboxClassifier classifies accounts whose identifier contains any of the
// patterns (case-insensitive) as Internal and everything else as Restricted.
// With no patterns, "sandbox" is used.
func SandboxClassifier(patterns ...string) AccountClassifier {
	if len(patterns) == 0 {
		patterns = []string{"sandbox"}
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return func(account Account) Classification {
		a := strings.ToLower(account.Identifier())
		for _, p := range lowered {
			if strings.Contains(a, p) {
				return Internal
			}
		}
		return Restricted
	}
}

// AccountListClassifier classifies the listed accounts as Restricted and every
// other account as Internal. An account matches on its ID or its name, so an
// alias never hides a listed ID.
func AccountListClassifier(restricted ...string) AccountClassifier {
	set := make(map[string]bool, len(restricted))
	for _, a := range restricted {
		if a = strings.TrimSpace(a); a != "" {
			set[a] = true
		}
	}
	return func(account Account) Classification {
		if set[account.ID] || set[account.Name] {
			return Restricted
		}
		return Internal
	}
}

// NewCELClassifier compiles expr into a classifier. Evaluation errors and
// unrecognised string results classify as Restricted and are logged to
// logger, which may be nil.
func NewCELClassifier(expr string, logger *slog.Logger) (AccountClassifier, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	engine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	prg, err := engine.Compile(expr)
	if err != nil {
		return nil, err
	}

	return func(account Account) Classification {
		out, _, err := prg.Eval(map[string]any{
			"account":    account.Identifier(),
			"account_id": account.ID,
		})
		if err != nil {
			logger.Warn("Classifier evaluation failed", "account", account.Identifier(), "error", err)
			return Restricted
		}
		switch v := out.Value().(type) {
		case bool:
			if v {
				return Internal
			}
			return Restricted
		case string:
			if c, err := ParseClassification(v); err == nil {
				return c
			}
			logger.Warn("Classifier returned unknown classification", "account", account.Identifier(), "value", v)
		}
		return Restricted
	}, nil
}

// ClassifierSpec is the configuration form of an AccountClassifier.
type ClassifierSpec struct {
	// Type is one of "sandbox", "accounts" or "cel".
	Type               string   `yaml:"type" mapstructure:"type"`
	Patterns           []string `yaml:"patterns,omitempty" mapstructure:"patterns"`
	RestrictedAccounts []string `yaml:"restricted_accounts,omitempty" mapstructure:"restricted_accounts"`
	Expression         string   `yaml:"expression,omitempty" mapstructure:"expression"`
}

// Build turns the configuration into a classifier. logger receives CEL
// evaluation warnings and may be nil.
func (s ClassifierSpec) Build(logger *slog.Logger) (AccountClassifier, error) {
	switch strings.ToLower(s.Type) {
	case "", "sandbox":
		return SandboxClassifier(s.Patterns...), nil
	case "accounts":
		if len(s.RestrictedAccounts) == 0 {
			return nil, fmt.Errorf("accounts classifier requires restricted_accounts")
		}
		return AccountListClassifier(s.RestrictedAccounts...), nil
	case "cel":
		if s.Expression == "" {
			return nil, fmt.Errorf("cel classifier requires an expression")
		}
		return NewCELClassifier(s.Expression, logger)
	}
	return nil, fmt.Errorf("unknown classifier type %q", s.Type)
}
