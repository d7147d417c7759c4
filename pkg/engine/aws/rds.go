package aws

import (
	"context"
	"iter"

	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
)

type RDSClient interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	DescribeDBClusters(ctx context.Context, params *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error)
	AddTagsToResource(ctx context.Context, params *rds.AddTagsToResourceInput, optFns ...func(*rds.Options)) (*rds.AddTagsToResourceOutput, error)
	RemoveTagsFromResource(ctx context.Context, params *rds.RemoveTagsFromResourceInput, optFns ...func(*rds.Options)) (*rds.RemoveTagsFromResourceOutput, error)
}

// rdsStatusAvailable is the only status whose resources are evaluated.
const rdsStatusAvailable = "available"

func setRDSTag(ctx context.Context, client RDSClient, arn, key, value string) error {
	_, err := client.AddTagsToResource(ctx, &rds.AddTagsToResourceInput{
		ResourceName: aws.String(arn),
		Tags:         []types.Tag{{Key: aws.String(key), Value: aws.String(value)}},
	})
	return remediationError("add tags to resource", err)
}

func deleteRDSTag(ctx context.Context, client RDSClient, arn, key string) error {
	_, err := client.RemoveTagsFromResource(ctx, &rds.RemoveTagsFromResourceInput{
		ResourceName: aws.String(arn),
		TagKeys:      []string{key},
	})
	return remediationError("remove tags from resource", err)
}

// RDSInstances collects and tags available DB instances. Resource IDs are ARNs.
type RDSInstances struct {
	Client RDSClient
}

func NewRDSInstances(cfg aws.Config) *RDSInstances {
	return &RDSInstances{Client: rds.NewFromConfig(cfg)}
}

func (s *RDSInstances) Kind() resource.Kind { return resource.KindDatabase }

func (s *RDSInstances) SetTag(ctx context.Context, ref resource.Ref, key, value string) error {
	return setRDSTag(ctx, s.Client, ref.ID, key, value)
}

func (s *RDSInstances) DeleteTag(ctx context.Context, ref resource.Ref, key string) error {
	return deleteRDSTag(ctx, s.Client, ref.ID, key)
}

func (s *RDSInstances) Fetch(ctx context.Context) iter.Seq2[resource.Snapshot, error] {
	return func(yield func(resource.Snapshot, error) bool) {
		paginator := rds.NewDescribeDBInstancesPaginator(s.Client, &rds.DescribeDBInstancesInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(resource.Snapshot{}, collectorError(resource.KindDatabase, "describe db instances", err))
				return
			}

			for _, db := range page.DBInstances {
				if aws.ToString(db.DBInstanceStatus) != rdsStatusAvailable {
					continue
				}
				snap := resource.Snapshot{
					Ref: resource.Ref{
						Kind:        resource.KindDatabase,
						ID:          aws.ToString(db.DBInstanceArn),
						DisplayName: aws.ToString(db.DBInstanceIdentifier),
					},
					Tags: parseRDSTags(db.TagList),
				}
				if !yield(snap, nil) {
					return
				}
			}
		}
	}
}

// RDSClusters collects and tags available DB clusters. Resource IDs are ARNs.
type RDSClusters struct {
	Client RDSClient
}

func NewRDSClusters(cfg aws.Config) *RDSClusters {
	return &RDSClusters{Client: rds.NewFromConfig(cfg)}
}

func (s *RDSClusters) Kind() resource.Kind { return resource.KindDatabaseCluster }

func (s *RDSClusters) SetTag(ctx context.Context, ref resource.Ref, key, value string) error {
	return setRDSTag(ctx, s.Client, ref.ID, key, value)
}

func (s *RDSClusters) DeleteTag(ctx context.Context, ref resource.Ref, key string) error {
	return deleteRDSTag(ctx, s.Client, ref.ID, key)
}

func (s *RDSClusters) Fetch(ctx context.Context) iter.Seq2[resource.Snapshot, error] {
	return func(yield func(resource.Snapshot, error) bool) {
		paginator := rds.NewDescribeDBClustersPaginator(s.Client, &rds.DescribeDBClustersInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(resource.Snapshot{}, collectorError(resource.KindDatabaseCluster, "describe db clusters", err))
				return
			}

			for _, cluster := range page.DBClusters {
				if aws.ToString(cluster.Status) != rdsStatusAvailable {
					continue
				}
				snap := resource.Snapshot{
					Ref: resource.Ref{
						Kind:        resource.KindDatabaseCluster,
						ID:          aws.ToString(cluster.DBClusterArn),
						DisplayName: aws.ToString(cluster.DBClusterIdentifier),
					},
					Tags: parseRDSTags(cluster.TagList),
				}
				if !yield(snap, nil) {
					return
				}
			}
		}
	}
}

func parseRDSTags(tags []types.Tag) resource.TagSet {
	out := make(resource.TagSet, len(tags))
	for _, t := range tags {
		if t.Key != nil {
			out[*t.Key] = aws.ToString(t.Value)
		}
	}
	return out
}
