package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine/compliance"
	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/engine/report"
	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/DrSkyle/tagguard/pkg/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.AppName+" "+version.Current)
}

func TestPolicyValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte("classification_key: DataClassification\nrules:\n  - key: Name\n"), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - key: Name\n  - key: Name\n"), 0o600))

	out, err := execute(t, "policy", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "1 rules")

	out, err = execute(t, "policy", "validate", bad)
	require.Error(t, err)
	assert.Contains(t, out, "duplicate key")
}

func TestPrintSummary(t *testing.T) {
	web1 := resource.Ref{Kind: resource.KindInstance, ID: "i-0abc", DisplayName: "web1"}
	b := report.NewBuilder("acme-prod", true)
	require.NoError(t, b.AddFinding(compliance.Finding{Resource: web1, MissingKeys: []string{"DataClassification"}}))
	require.NoError(t, b.SetOutcomes(web1, remediation.SkipAll([]remediation.Mutation{
		{Resource: web1, Key: "DataClassification", Action: remediation.ActionSet, Value: "Restricted"},
	}, remediation.DetailDryRun)))
	rep := b.Seal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	var out bytes.Buffer
	printSummary(&out, rep, report.ModeNonCompliant)

	assert.Contains(t, out.String(), "acme-prod (dry run)")
	assert.Contains(t, out.String(), "i-0abc (web1)")
	assert.Contains(t, out.String(), "(dry-run)")
}

func TestPermissionsCommand(t *testing.T) {
	out, err := execute(t, "permissions", "--kinds", "ec2", "--read-only")
	require.NoError(t, err)
	assert.Contains(t, out, "ec2:DescribeInstances")
	assert.NotContains(t, out, "ec2:CreateTags")
}
