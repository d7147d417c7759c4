package permissions

import (
	"encoding/json"
	"testing"

	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCoversEveryKind(t *testing.T) {
	for _, k := range resource.AllKinds {
		access, ok := Catalog[k]
		require.True(t, ok, k)
		assert.NotEmpty(t, access.Read, k)
		assert.NotEmpty(t, access.Write, k)
	}
}

func TestGenerate(t *testing.T) {
	doc := Generate([]resource.Kind{resource.KindDatabase, resource.KindDatabaseCluster}, false)

	require.Len(t, doc.Statement, 2)
	assert.Equal(t, []string{
		"iam:ListAccountAliases",
		"rds:DescribeDBClusters",
		"rds:DescribeDBInstances",
		"rds:ListTagsForResource",
		"sts:GetCallerIdentity",
	}, doc.Statement[0].Action)
	assert.Equal(t, []string{"rds:AddTagsToResource", "rds:RemoveTagsFromResource"}, doc.Statement[1].Action)
}

func TestGenerateReadOnly(t *testing.T) {
	data, err := GeneratePolicy(nil, true)
	require.NoError(t, err)

	var doc PolicyDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Statement, 1)
	assert.Contains(t, doc.Statement[0].Action, "elasticfilesystem:DescribeFileSystems")
	assert.NotContains(t, doc.Statement[0].Action, "ec2:CreateTags")
}
