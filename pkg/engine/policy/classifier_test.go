package policy

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string) Account { return Account{Name: name} }

func TestAccountIdentifier(t *testing.T) {
	assert.Equal(t, "acme-prod", Account{ID: "111", Name: "acme-prod"}.Identifier())
	assert.Equal(t, "111", Account{ID: "111"}.Identifier())
	assert.Empty(t, Account{}.Identifier())
}

func TestSandboxClassifier(t *testing.T) {
	classify := SandboxClassifier()

	assert.Equal(t, Internal, classify(named("acme-Sandbox-01")))
	assert.Equal(t, Restricted, classify(named("acme-prod")))
	assert.Equal(t, Restricted, classify(Account{}))
	assert.Equal(t, Restricted, classify(Account{ID: "123456789012"}))

	custom := SandboxClassifier("dev", "lab")
	assert.Equal(t, Internal, custom(named("team-lab")))
	assert.Equal(t, Restricted, custom(named("team-sandbox")))
}

func TestAccountListClassifier(t *testing.T) {
	classify := AccountListClassifier("991323962418")

	assert.Equal(t, Restricted, classify(Account{ID: "991323962418"}))
	assert.Equal(t, Restricted, classify(Account{ID: "991323962418", Name: "acme-prod"}), "alias must not hide a listed ID")
	assert.Equal(t, Internal, classify(Account{ID: "123456789012", Name: "acme-dev"}))
	assert.Equal(t, Internal, classify(Account{}))

	byName := AccountListClassifier("acme-prod")
	assert.Equal(t, Restricted, byName(Account{ID: "123456789012", Name: "acme-prod"}))
}

func TestCELClassifier(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		account Account
		want    Classification
	}{
		{"bool true", "account.lowerAscii().contains('sandbox')", named("Team-SANDBOX"), Internal},
		{"bool false", "account.lowerAscii().contains('sandbox')", named("team-prod"), Restricted},
		{"string result", "account.startsWith('dev-') ? 'Internal' : 'Restricted'", named("dev-42"), Internal},
		{"account id", "account_id == '991323962418' ? 'Restricted' : 'Internal'", Account{ID: "991323962418", Name: "acme-prod"}, Restricted},
		{"unknown string", "'Public'", named("any"), Restricted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classify, err := NewCELClassifier(tt.expr, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, classify(tt.account))
		})
	}
}

func TestCELClassifierLogsToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	classify, err := NewCELClassifier("'Public'", logger)
	require.NoError(t, err)

	assert.Equal(t, Restricted, classify(named("acme")))
	assert.Contains(t, buf.String(), "Classifier returned unknown classification")
	assert.Contains(t, buf.String(), "value=Public")
}

func TestCELClassifierRejectsBadExpressions(t *testing.T) {
	_, err := NewCELClassifier("account +", nil)
	assert.Error(t, err)

	_, err = NewCELClassifier("size(account)", nil)
	assert.Error(t, err, "int results are not a classification")

	_, err = NewCELClassifier("region == 'us-east-1'", nil)
	assert.Error(t, err, "undeclared variables fail type checking")
}

func TestClassifierSpecBuild(t *testing.T) {
	c, err := ClassifierSpec{}.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, Internal, c(named("my-sandbox")))

	c, err = ClassifierSpec{Type: "accounts", RestrictedAccounts: []string{"111"}}.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, Restricted, c(Account{ID: "111", Name: "alias"}))

	_, err = ClassifierSpec{Type: "accounts"}.Build(nil)
	assert.Error(t, err)

	_, err = ClassifierSpec{Type: "cel"}.Build(nil)
	assert.Error(t, err)

	_, err = ClassifierSpec{Type: "oracle"}.Build(nil)
	assert.Error(t, err)
}

func TestClassificationConsistency(t *testing.T) {
	classify := SandboxClassifier()
	for _, account := range []string{"sandbox", "SANDBOX-1", "x-sandbox-y"} {
		assert.Equal(t, Internal, classify(named(account)), account)
		assert.NotEqual(t, Restricted, classify(named(account)), account)
	}
}
