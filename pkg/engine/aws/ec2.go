package aws

import (
	"context"
	"iter"

	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

type EC2Client interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
	DeleteTags(ctx context.Context, params *ec2.DeleteTagsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteTagsOutput, error)
}

// EC2Instances collects and tags EC2 instances. Terminated instances are skipped.
type EC2Instances struct {
	Client EC2Client
}

func NewEC2Instances(cfg aws.Config) *EC2Instances {
	return &EC2Instances{Client: ec2.NewFromConfig(cfg)}
}

func (s *EC2Instances) Kind() resource.Kind { return resource.KindInstance }

func (s *EC2Instances) Fetch(ctx context.Context) iter.Seq2[resource.Snapshot, error] {
	return func(yield func(resource.Snapshot, error) bool) {
		paginator := ec2.NewDescribeInstancesPaginator(s.Client, &ec2.DescribeInstancesInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(resource.Snapshot{}, collectorError(resource.KindInstance, "describe instances", err))
				return
			}

			for _, reservation := range page.Reservations {
				for _, instance := range reservation.Instances {
					if instance.State != nil {
						switch instance.State.Name {
						case types.InstanceStateNameTerminated, types.InstanceStateNameShuttingDown:
							continue
						}
					}

					id := aws.ToString(instance.InstanceId)
					tags := parseTags(instance.Tags)
					name := tags["Name"]
					if name == "" {
						name = id
					}

					snap := resource.Snapshot{
						Ref:  resource.Ref{Kind: resource.KindInstance, ID: id, DisplayName: name},
						Tags: tags,
					}
					if !yield(snap, nil) {
						return
					}
				}
			}
		}
	}
}

func (s *EC2Instances) SetTag(ctx context.Context, ref resource.Ref, key, value string) error {
	_, err := s.Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{ref.ID},
		Tags:      []types.Tag{{Key: aws.String(key), Value: aws.String(value)}},
	})
	return remediationError("create tags", err)
}

// DeleteTag removes key regardless of its current value.
func (s *EC2Instances) DeleteTag(ctx context.Context, ref resource.Ref, key string) error {
	_, err := s.Client.DeleteTags(ctx, &ec2.DeleteTagsInput{
		Resources: []string{ref.ID},
		Tags:      []types.Tag{{Key: aws.String(key)}},
	})
	return remediationError("delete tags", err)
}

func parseTags(tags []types.Tag) resource.TagSet {
	out := make(resource.TagSet, len(tags))
	for _, t := range tags {
		if t.Key != nil {
			out[*t.Key] = aws.ToString(t.Value)
		}
	}
	return out
}
