package report

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine/compliance"
	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	logs = resource.Ref{Kind: resource.KindBucket, ID: "a-logs"}
	fs   = resource.Ref{Kind: resource.KindFileSystem, ID: "fs-123"}
	web1 = resource.Ref{Kind: resource.KindInstance, ID: "i-0abc", DisplayName: "web1"}
)

var generatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fixture builds a report with one compliant, one report-only and one
// partially remediated resource, added out of order.
func fixture(t *testing.T) *ComplianceReport {
	t.Helper()
	b := NewBuilder("acme-prod", false)

	require.NoError(t, b.AddFinding(compliance.Finding{
		Resource:             web1,
		MissingKeys:          []string{"Owner", "DataClassification"},
		ForbiddenKeysPresent: map[string]string{"LegacyTag": "x"},
	}))
	require.NoError(t, b.AddFinding(compliance.Finding{Resource: logs}))
	require.NoError(t, b.AddFinding(compliance.Finding{Resource: fs, DisallowedValueKeys: []string{"Environment"}}))

	require.NoError(t, b.SetOutcomes(web1, []remediation.Outcome{
		{Mutation: remediation.Mutation{Resource: web1, Key: "LegacyTag", Action: remediation.ActionDelete}, Status: remediation.StatusApplied, Attempts: 1},
		{Mutation: remediation.Mutation{Resource: web1, Key: "DataClassification", Action: remediation.ActionSet, Value: "Restricted"}, Status: remediation.StatusFailed, FailureReason: "PermissionDenied", Attempts: 1},
	}))

	return b.Seal(generatedAt)
}

func TestSealOrdersByResourceID(t *testing.T) {
	r := fixture(t)

	require.Len(t, r.Findings, 3)
	assert.Equal(t, []string{"a-logs", "fs-123", "i-0abc"}, []string{r.Findings[0].Resource.ID, r.Findings[1].Resource.ID, r.Findings[2].Resource.ID})
	require.Len(t, r.Outcomes, 2)
	assert.Equal(t, "LegacyTag", r.Outcomes[0].Mutation.Key, "plan order kept within a resource")
	assert.Equal(t, "acme-prod", r.AccountIdentifier)
	assert.Equal(t, generatedAt, r.GeneratedAt)
}

func TestViews(t *testing.T) {
	r := fixture(t)

	nc := r.NonCompliant()
	require.Len(t, nc, 2)
	assert.Equal(t, fs, nc[0].Resource)
	assert.Equal(t, web1, nc[1].Resource)

	assert.Len(t, r.Audit(ModeFull), 3)
	assert.Len(t, r.Audit(ModeNonCompliant), 2)

	assert.Empty(t, r.Remediated())
	assert.Equal(t, []resource.Ref{web1}, r.FailedRemediation())
	assert.False(t, r.Healthy())
}

func TestSummary(t *testing.T) {
	s := fixture(t).Summary()

	assert.Equal(t, Summary{
		Resources:    3,
		Compliant:    1,
		NonCompliant: 2,
		Remediated:   0,
		Failed:       1,
		Planned:      2,
		Applied:      1,
		Skipped:      0,
	}, s)
	assert.Equal(t, "3 resources: 1 compliant, 2 non-compliant, 0 remediated, 1 failed", s.String())
}

func TestRemediatedView(t *testing.T) {
	b := NewBuilder("acme", false)
	require.NoError(t, b.AddFinding(compliance.Finding{Resource: fs, MissingKeys: []string{"DataClassification"}}))
	require.NoError(t, b.SetOutcomes(fs, []remediation.Outcome{
		{Mutation: remediation.Mutation{Resource: fs, Key: "DataClassification", Action: remediation.ActionSet, Value: "Internal"}, Status: remediation.StatusApplied},
	}))
	r := b.Seal(generatedAt)

	assert.Equal(t, []resource.Ref{fs}, r.Remediated())
	assert.Empty(t, r.FailedRemediation())
	assert.True(t, r.Healthy())
}

func TestOutcomeRequiresFinding(t *testing.T) {
	b := NewBuilder("acme", false)
	err := b.SetOutcomes(web1, []remediation.Outcome{{Mutation: remediation.Mutation{Resource: web1}}})
	assert.ErrorIs(t, err, ErrUnknownResource)

	require.NoError(t, b.AddFinding(compliance.Finding{Resource: web1}))
	err = b.SetOutcomes(web1, []remediation.Outcome{{Mutation: remediation.Mutation{Resource: fs}}})
	assert.ErrorIs(t, err, ErrUnknownResource)

	assert.ErrorIs(t, b.AddFinding(compliance.Finding{Resource: web1}), ErrDuplicateFinding)
}

func TestSealedBuilderRejectsWrites(t *testing.T) {
	b := NewBuilder("acme", false)
	b.Seal(generatedAt)

	assert.ErrorIs(t, b.AddFinding(compliance.Finding{Resource: web1}), ErrSealed)
	assert.ErrorIs(t, b.AddWarning(Warning{Scope: "x"}), ErrSealed)
}

func TestBuilderConcurrentAppends(t *testing.T) {
	b := NewBuilder("acme", false)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref := resource.Ref{Kind: resource.KindBucket, ID: fmt.Sprintf("bucket-%03d", i)}
			assert.NoError(t, b.AddFinding(compliance.Finding{Resource: ref}))
			if i%10 == 0 {
				assert.NoError(t, b.AddWarning(Warning{Scope: ref.ID, Kind: "ReadError"}))
			}
		}(i)
	}
	wg.Wait()

	r := b.Seal(generatedAt)
	require.Len(t, r.Findings, 100)
	assert.Equal(t, "bucket-000", r.Findings[0].Resource.ID)
	assert.Equal(t, "bucket-099", r.Findings[99].Resource.ID)
	assert.Len(t, r.Warnings, 10)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeNonCompliant, m)

	m, err = ParseMode("FULL")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, m)

	_, err = ParseMode("html")
	assert.Error(t, err)
}
