// Package permissions generates the least-privilege IAM policy for a run.
package permissions

import "github.com/DrSkyle/tagguard/pkg/resource"

// Access holds the IAM actions one kind needs to be read and to be tagged.
type Access struct {
	Read  []string
	Write []string
}

// Catalog maps each resource kind to its IAM actions.
var Catalog = map[resource.Kind]Access{
	resource.KindInstance: {
		Read:  []string{"ec2:DescribeInstances"},
		Write: []string{"ec2:CreateTags", "ec2:DeleteTags"},
	},
	resource.KindDatabase: {
		Read:  []string{"rds:DescribeDBInstances", "rds:ListTagsForResource"},
		Write: []string{"rds:AddTagsToResource", "rds:RemoveTagsFromResource"},
	},
	resource.KindDatabaseCluster: {
		Read:  []string{"rds:DescribeDBClusters", "rds:ListTagsForResource"},
		Write: []string{"rds:AddTagsToResource", "rds:RemoveTagsFromResource"},
	},
	resource.KindBucket: {
		Read: []string{
			"s3:ListAllMyBuckets",
			"s3:GetBucketLocation",
			"s3:GetBucketTagging",
		},
		// Writes read the current set first, then replace it.
		Write: []string{"s3:PutBucketTagging", "s3:DeleteBucketTagging"},
	},
	resource.KindFileSystem: {
		Read:  []string{"elasticfilesystem:DescribeFileSystems"},
		Write: []string{"elasticfilesystem:TagResource", "elasticfilesystem:UntagResource"},
	},
}

// CorePermissions returns the permissions needed to resolve the account.
func CorePermissions() []string {
	return []string{
		"sts:GetCallerIdentity",
		"iam:ListAccountAliases", // Optional, used for the account name
	}
}
