package aws

import (
	"context"
	"iter"

	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/efs/types"
)

type EFSClient interface {
	DescribeFileSystems(ctx context.Context, params *efs.DescribeFileSystemsInput, optFns ...func(*efs.Options)) (*efs.DescribeFileSystemsOutput, error)
	TagResource(ctx context.Context, params *efs.TagResourceInput, optFns ...func(*efs.Options)) (*efs.TagResourceOutput, error)
	UntagResource(ctx context.Context, params *efs.UntagResourceInput, optFns ...func(*efs.Options)) (*efs.UntagResourceOutput, error)
}

// EFSFileSystems collects and tags available EFS file systems.
type EFSFileSystems struct {
	Client EFSClient
}

func NewEFSFileSystems(cfg aws.Config) *EFSFileSystems {
	return &EFSFileSystems{Client: efs.NewFromConfig(cfg)}
}

func (s *EFSFileSystems) Kind() resource.Kind { return resource.KindFileSystem }

func (s *EFSFileSystems) Fetch(ctx context.Context) iter.Seq2[resource.Snapshot, error] {
	return func(yield func(resource.Snapshot, error) bool) {
		paginator := efs.NewDescribeFileSystemsPaginator(s.Client, &efs.DescribeFileSystemsInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(resource.Snapshot{}, collectorError(resource.KindFileSystem, "describe file systems", err))
				return
			}

			for _, fs := range page.FileSystems {
				if fs.LifeCycleState != types.LifeCycleStateAvailable {
					continue
				}
				id := aws.ToString(fs.FileSystemId)
				name := aws.ToString(fs.Name)
				if name == "" {
					name = id
				}

				tags := make(resource.TagSet, len(fs.Tags))
				for _, t := range fs.Tags {
					if t.Key != nil {
						tags[*t.Key] = aws.ToString(t.Value)
					}
				}

				snap := resource.Snapshot{
					Ref:  resource.Ref{Kind: resource.KindFileSystem, ID: id, DisplayName: name},
					Tags: tags,
				}
				if !yield(snap, nil) {
					return
				}
			}
		}
	}
}

func (s *EFSFileSystems) SetTag(ctx context.Context, ref resource.Ref, key, value string) error {
	_, err := s.Client.TagResource(ctx, &efs.TagResourceInput{
		ResourceId: aws.String(ref.ID),
		Tags:       []types.Tag{{Key: aws.String(key), Value: aws.String(value)}},
	})
	return remediationError("tag resource", err)
}

func (s *EFSFileSystems) DeleteTag(ctx context.Context, ref resource.Ref, key string) error {
	_, err := s.Client.UntagResource(ctx, &efs.UntagResourceInput{
		ResourceId: aws.String(ref.ID),
		TagKeys:    []string{key},
	})
	return remediationError("untag resource", err)
}
