package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/engine/scanner"
	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEC2Client implements EC2Client for testing purposes. Mutating calls are
// recorded so tests can prove collection never writes.
type mockEC2Client struct {
	DescribeInstancesFunc func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	CreateTagsFunc        func(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
	DeleteTagsFunc        func(ctx context.Context, params *ec2.DeleteTagsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteTagsOutput, error)

	MutatingCalls []string
}

func (m *mockEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if m.DescribeInstancesFunc != nil {
		return m.DescribeInstancesFunc(ctx, params, optFns...)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

func (m *mockEC2Client) CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	m.MutatingCalls = append(m.MutatingCalls, "CreateTags")
	if m.CreateTagsFunc != nil {
		return m.CreateTagsFunc(ctx, params, optFns...)
	}
	return &ec2.CreateTagsOutput{}, nil
}

func (m *mockEC2Client) DeleteTags(ctx context.Context, params *ec2.DeleteTagsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteTagsOutput, error) {
	m.MutatingCalls = append(m.MutatingCalls, "DeleteTags")
	if m.DeleteTagsFunc != nil {
		return m.DeleteTagsFunc(ctx, params, optFns...)
	}
	return &ec2.DeleteTagsOutput{}, nil
}

func instance(id string, state types.InstanceStateName, tags ...types.Tag) types.Instance {
	return types.Instance{
		InstanceId: aws.String(id),
		State:      &types.InstanceState{Name: state},
		Tags:       tags,
	}
}

func tag(k, v string) types.Tag { return types.Tag{Key: aws.String(k), Value: aws.String(v)} }

func collect(t *testing.T, c scanner.Collector) ([]resource.Snapshot, []error) {
	t.Helper()
	var snaps []resource.Snapshot
	var errs []error
	for s, err := range c.Fetch(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		snaps = append(snaps, s)
	}
	return snaps, errs
}

func TestEC2InstancesFetch(t *testing.T) {
	pages := map[string]*ec2.DescribeInstancesOutput{
		"": {
			Reservations: []types.Reservation{{Instances: []types.Instance{
				instance("i-1", types.InstanceStateNameRunning, tag("Name", "web1"), tag("Owner", "ops")),
				instance("i-2", types.InstanceStateNameTerminated, tag("Name", "old")),
			}}},
			NextToken: aws.String("p2"),
		},
		"p2": {
			Reservations: []types.Reservation{{Instances: []types.Instance{
				instance("i-3", types.InstanceStateNameStopped),
			}}},
		},
	}
	client := &mockEC2Client{
		DescribeInstancesFunc: func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return pages[aws.ToString(params.NextToken)], nil
		},
	}
	c := &EC2Instances{Client: client}

	snaps, errs := collect(t, c)

	require.Empty(t, errs)
	require.Len(t, snaps, 2)
	assert.Equal(t, resource.Ref{Kind: resource.KindInstance, ID: "i-1", DisplayName: "web1"}, snaps[0].Ref)
	assert.Equal(t, resource.TagSet{"Name": "web1", "Owner": "ops"}, snaps[0].Tags)
	assert.Equal(t, "i-3", snaps[1].Ref.DisplayName, "falls back to the instance ID")
	assert.Empty(t, client.MutatingCalls, "collection must never write")

	// Restartable: a second range enumerates again.
	again, _ := collect(t, c)
	assert.Len(t, again, 2)
}

func TestEC2InstancesFetchAuthFailure(t *testing.T) {
	client := &mockEC2Client{
		DescribeInstancesFunc: func(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "UnauthorizedOperation", Message: "not allowed"}
		},
	}

	snaps, errs := collect(t, &EC2Instances{Client: client})

	assert.Empty(t, snaps)
	require.Len(t, errs, 1)
	var cerr *scanner.CollectorError
	require.ErrorAs(t, errs[0], &cerr)
	assert.Equal(t, scanner.AuthFailure, cerr.Kind)
	assert.Equal(t, resource.KindInstance, cerr.Resource)
}

func TestEC2InstancesTagging(t *testing.T) {
	var created *ec2.CreateTagsInput
	var deleted *ec2.DeleteTagsInput
	client := &mockEC2Client{
		CreateTagsFunc: func(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
			created = params
			return &ec2.CreateTagsOutput{}, nil
		},
		DeleteTagsFunc: func(ctx context.Context, params *ec2.DeleteTagsInput, optFns ...func(*ec2.Options)) (*ec2.DeleteTagsOutput, error) {
			deleted = params
			return nil, &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound"}
		},
	}
	c := &EC2Instances{Client: client}
	ref := resource.Ref{Kind: resource.KindInstance, ID: "i-1"}

	require.NoError(t, c.SetTag(context.Background(), ref, "DataClassification", "Restricted"))
	assert.Equal(t, []string{"i-1"}, created.Resources)
	assert.Equal(t, "Restricted", aws.ToString(created.Tags[0].Value))

	err := c.DeleteTag(context.Background(), ref, "LegacyTag")
	assert.Equal(t, remediation.NotFound, remediation.KindOf(err))
	assert.Nil(t, deleted.Tags[0].Value, "delete matches any value")
	assert.Equal(t, []string{"CreateTags", "DeleteTags"}, client.MutatingCalls)
}

func TestRemediationErrorClassification(t *testing.T) {
	tests := []struct {
		code string
		want remediation.ErrorKind
	}{
		{"AccessDenied", remediation.PermissionDenied},
		{"UnauthorizedOperation", remediation.PermissionDenied},
		{"DBInstanceNotFound", remediation.NotFound},
		{"NoSuchBucket", remediation.NotFound},
		{"Throttling", remediation.Transient},
		{"InternalError", remediation.Transient},
	}
	for _, tt := range tests {
		err := remediationError("op", &smithy.GenericAPIError{Code: tt.code})
		assert.Equal(t, tt.want, remediation.KindOf(err), tt.code)
	}
	assert.NoError(t, remediationError("op", nil))
	assert.Equal(t, remediation.Transient, remediation.KindOf(remediationError("op", errors.New("EOF"))))
}

func TestCollectorErrorClassification(t *testing.T) {
	tests := []struct {
		err  error
		want scanner.CollectorErrorKind
	}{
		{&smithy.GenericAPIError{Code: "ExpiredToken"}, scanner.AuthFailure},
		{&smithy.GenericAPIError{Code: "RequestLimitExceeded"}, scanner.RateLimited},
		{&smithy.GenericAPIError{Code: "ServiceUnavailable"}, scanner.Unavailable},
		{context.DeadlineExceeded, scanner.Unavailable},
	}
	for _, tt := range tests {
		var cerr *scanner.CollectorError
		require.ErrorAs(t, collectorError(resource.KindBucket, "list", tt.err), &cerr)
		assert.Equal(t, tt.want, cerr.Kind, tt.err.Error())
	}

	assert.True(t, IsThrottled(collectorError(resource.KindBucket, "list", &smithy.GenericAPIError{Code: "SlowDown"})))
	assert.False(t, IsThrottled(errors.New("boom")))
}
