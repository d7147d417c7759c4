package compliance

import (
	"testing"

	"github.com/DrSkyle/tagguard/pkg/engine/policy"
	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/stretchr/testify/assert"
)

var web1 = resource.Ref{Kind: resource.KindInstance, ID: "i-0abc", DisplayName: "web1"}

func TestEvaluate(t *testing.T) {
	p := policy.TagPolicy{
		ClassificationKey: "DataClassification",
		Rules: []policy.TagRule{
			{Key: "Name"},
			{Key: "Environment", AllowedValues: []string{"dev", "prod"}},
			{Key: "LegacyTag", Forbidden: true},
			{Key: "DataClassification", AllowedValues: []string{"Restricted"}},
		},
	}

	tests := []struct {
		name string
		tags resource.TagSet
		want Finding
	}{
		{
			name: "compliant",
			tags: resource.TagSet{"Name": "web1", "Environment": "dev", "DataClassification": "Restricted"},
			want: Finding{Resource: web1},
		},
		{
			name: "empty tag set",
			tags: resource.TagSet{},
			want: Finding{Resource: web1, MissingKeys: []string{"Name", "Environment", "DataClassification"}},
		},
		{
			name: "disallowed and forbidden",
			tags: resource.TagSet{"Name": "web1", "Environment": "qa", "LegacyTag": "x", "DataClassification": "Internal"},
			want: Finding{
				Resource:             web1,
				DisallowedValueKeys:  []string{"Environment", "DataClassification"},
				ForbiddenKeysPresent: map[string]string{"LegacyTag": "x"},
			},
		},
		{
			name: "empty value is still present",
			tags: resource.TagSet{"Name": "", "Environment": "prod", "DataClassification": "Restricted"},
			want: Finding{Resource: web1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(web1, tt.tags, p)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Compliant(), got.Compliant())
		})
	}
}

func TestEvaluateDeterminism(t *testing.T) {
	p := policy.TagPolicy{Rules: []policy.TagRule{
		{Key: "Owner"},
		{Key: "A", Forbidden: true},
		{Key: "B", Forbidden: true},
		{Key: "C", Forbidden: true},
		{Key: "Exposure", AllowedValues: []string{"Internal", "External"}},
	}}
	tags := resource.TagSet{"A": "1", "B": "2", "C": "3", "Exposure": "Public"}

	first := Evaluate(web1, tags, p)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Evaluate(web1, tags, p))
	}
	assert.Equal(t, []string{"A", "B", "C"}, first.ForbiddenKeys())
	assert.Equal(t, 5, first.Violations())
}

func TestScenarioCompliantWithForbiddenAbsent(t *testing.T) {
	p := policy.TagPolicy{Rules: []policy.TagRule{
		{Key: "Name"},
		{Key: "LegacyTag", Forbidden: true},
	}}

	f := Evaluate(web1, resource.TagSet{"Name": "web1"}, p)

	assert.True(t, f.Compliant())
	assert.Empty(t, f.MissingKeys)
	assert.Empty(t, f.ForbiddenKeysPresent)
}

func TestScenarioForbiddenPresent(t *testing.T) {
	p := policy.TagPolicy{Rules: []policy.TagRule{{Key: "LegacyTag", Forbidden: true}}}

	f := Evaluate(web1, resource.TagSet{"LegacyTag": "x"}, p)

	assert.False(t, f.Compliant())
	assert.Equal(t, map[string]string{"LegacyTag": "x"}, f.ForbiddenKeysPresent)
	assert.Empty(t, f.MissingKeys)
}

func TestEvaluateDoesNotMutateTags(t *testing.T) {
	tags := resource.TagSet{"LegacyTag": "x"}
	p := policy.TagPolicy{Rules: []policy.TagRule{{Key: "LegacyTag", Forbidden: true}, {Key: "Name"}}}

	_ = Evaluate(web1, tags, p)
	assert.Equal(t, resource.TagSet{"LegacyTag": "x"}, tags)
}
