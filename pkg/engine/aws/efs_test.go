package aws

import (
	"context"
	"testing"

	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/efs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEFSClient struct {
	DescribeFileSystemsFunc func(ctx context.Context, params *efs.DescribeFileSystemsInput, optFns ...func(*efs.Options)) (*efs.DescribeFileSystemsOutput, error)
	tagged                  []*efs.TagResourceInput
	untagged                []*efs.UntagResourceInput
}

func (m *mockEFSClient) DescribeFileSystems(ctx context.Context, params *efs.DescribeFileSystemsInput, optFns ...func(*efs.Options)) (*efs.DescribeFileSystemsOutput, error) {
	if m.DescribeFileSystemsFunc != nil {
		return m.DescribeFileSystemsFunc(ctx, params, optFns...)
	}
	return &efs.DescribeFileSystemsOutput{}, nil
}

func (m *mockEFSClient) TagResource(ctx context.Context, params *efs.TagResourceInput, optFns ...func(*efs.Options)) (*efs.TagResourceOutput, error) {
	m.tagged = append(m.tagged, params)
	return &efs.TagResourceOutput{}, nil
}

func (m *mockEFSClient) UntagResource(ctx context.Context, params *efs.UntagResourceInput, optFns ...func(*efs.Options)) (*efs.UntagResourceOutput, error) {
	m.untagged = append(m.untagged, params)
	return &efs.UntagResourceOutput{}, nil
}

func TestEFSFileSystems(t *testing.T) {
	client := &mockEFSClient{
		DescribeFileSystemsFunc: func(ctx context.Context, params *efs.DescribeFileSystemsInput, optFns ...func(*efs.Options)) (*efs.DescribeFileSystemsOutput, error) {
			return &efs.DescribeFileSystemsOutput{FileSystems: []types.FileSystemDescription{
				{FileSystemId: aws.String("fs-1"), Name: aws.String("home"), LifeCycleState: types.LifeCycleStateAvailable,
					Tags: []types.Tag{{Key: aws.String("Name"), Value: aws.String("home")}}},
				{FileSystemId: aws.String("fs-2"), LifeCycleState: types.LifeCycleStateAvailable},
				{FileSystemId: aws.String("fs-3"), LifeCycleState: types.LifeCycleStateCreating},
			}}, nil
		},
	}
	c := &EFSFileSystems{Client: client}

	snaps, errs := collect(t, c)
	require.Empty(t, errs)
	require.Len(t, snaps, 2)
	assert.Equal(t, "home", snaps[0].Ref.DisplayName)
	assert.Equal(t, "fs-2", snaps[1].Ref.DisplayName)

	ref := resource.Ref{Kind: resource.KindFileSystem, ID: "fs-1"}
	require.NoError(t, c.SetTag(context.Background(), ref, "DataClassification", "Internal"))
	require.NoError(t, c.DeleteTag(context.Background(), ref, "aws-migration"))

	require.Len(t, client.tagged, 1)
	assert.Equal(t, "fs-1", aws.ToString(client.tagged[0].ResourceId))
	require.Len(t, client.untagged, 1)
	assert.Equal(t, []string{"aws-migration"}, client.untagged[0].TagKeys)
}
