package aws

import (
	"context"
	"iter"
	"sync"

	"github.com/DrSkyle/tagguard/pkg/engine/scanner"
	"github.com/DrSkyle/tagguard/pkg/resource"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Client interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketTagging(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	PutBucketTagging(ctx context.Context, params *s3.PutBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.PutBucketTaggingOutput, error)
	DeleteBucketTagging(ctx context.Context, params *s3.DeleteBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketTaggingOutput, error)
}

// S3Buckets collects and tags S3 buckets.
//
// Bucket tags are a single document: PutBucketTagging replaces the whole set,
// so writes read the current set and merge into it. Requests for a bucket go
// to a client for the bucket's home region.
type S3Buckets struct {
	Client S3Client
	// ForRegion builds a client for a region. Nil sends everything through Client.
	ForRegion func(region string) S3Client

	mu       sync.Mutex
	regional map[string]S3Client
	regions  map[string]string
}

func NewS3Buckets(cfg aws.Config) *S3Buckets {
	return &S3Buckets{
		Client: s3.NewFromConfig(cfg),
		ForRegion: func(region string) S3Client {
			c := cfg.Copy()
			c.Region = region
			return s3.NewFromConfig(c)
		},
	}
}

func (s *S3Buckets) Kind() resource.Kind { return resource.KindBucket }

// Fetch lists every bucket. A bucket whose tags cannot be read is reported as a
// ResourceReadError and the listing continues.
func (s *S3Buckets) Fetch(ctx context.Context) iter.Seq2[resource.Snapshot, error] {
	return func(yield func(resource.Snapshot, error) bool) {
		paginator := s3.NewListBucketsPaginator(s.Client, &s3.ListBucketsInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(resource.Snapshot{}, collectorError(resource.KindBucket, "list buckets", err))
				return
			}

			for _, bucket := range page.Buckets {
				name := aws.ToString(bucket.Name)
				if region := aws.ToString(bucket.BucketRegion); region != "" {
					s.rememberRegion(name, region)
				}
				ref := resource.Ref{Kind: resource.KindBucket, ID: name, DisplayName: name}

				tags, err := s.readTags(ctx, s.clientFor(ctx, name), name)
				if err != nil {
					if isNotFoundError(err) {
						// Deleted between list and read.
						continue
					}
					if !yield(resource.Snapshot{}, &scanner.ResourceReadError{Ref: ref, Err: err}) {
						return
					}
					continue
				}
				if !yield(resource.Snapshot{Ref: ref, Tags: tags}, nil) {
					return
				}
			}
		}
	}
}

// SetTag merges key=value into the bucket's tag set. PutBucketTagging
// replaces the whole set, so unlike every other tagger this costs two calls
// per mutation: GetBucketTagging, then PutBucketTagging. Writing a value the
// bucket already has makes no write.
func (s *S3Buckets) SetTag(ctx context.Context, ref resource.Ref, key, value string) error {
	client := s.clientFor(ctx, ref.ID)
	tags, err := s.readTags(ctx, client, ref.ID)
	if err != nil {
		return remediationError("get bucket tagging", err)
	}
	if current, ok := tags[key]; ok && current == value {
		return nil
	}
	return s.writeTags(ctx, client, ref.ID, tags.With(key, value))
}

// DeleteTag removes key with the same read-then-write sequence as SetTag.
// Removing the last key calls DeleteBucketTagging.
func (s *S3Buckets) DeleteTag(ctx context.Context, ref resource.Ref, key string) error {
	client := s.clientFor(ctx, ref.ID)
	tags, err := s.readTags(ctx, client, ref.ID)
	if err != nil {
		return remediationError("get bucket tagging", err)
	}
	if !tags.Has(key) {
		return nil
	}
	return s.writeTags(ctx, client, ref.ID, tags.Without(key))
}

// readTags returns the bucket's tags. A bucket without a tag set has no tags.
func (s *S3Buckets) readTags(ctx context.Context, client S3Client, bucket string) (resource.TagSet, error) {
	out, err := client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{Bucket: aws.String(bucket)})
	if err != nil {
		if errorCode(err) == "NoSuchTagSet" {
			return resource.TagSet{}, nil
		}
		return nil, err
	}
	tags := make(resource.TagSet, len(out.TagSet))
	for _, t := range out.TagSet {
		if t.Key != nil {
			tags[*t.Key] = aws.ToString(t.Value)
		}
	}
	return tags, nil
}

func (s *S3Buckets) writeTags(ctx context.Context, client S3Client, bucket string, tags resource.TagSet) error {
	if len(tags) == 0 {
		_, err := client.DeleteBucketTagging(ctx, &s3.DeleteBucketTaggingInput{Bucket: aws.String(bucket)})
		return remediationError("delete bucket tagging", err)
	}

	keys := tags.Keys()
	set := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		set = append(set, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	_, err := client.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket:  aws.String(bucket),
		Tagging: &types.Tagging{TagSet: set},
	})
	return remediationError("put bucket tagging", err)
}

func (s *S3Buckets) rememberRegion(bucket, region string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.regions == nil {
		s.regions = make(map[string]string)
	}
	s.regions[bucket] = region
}

// clientFor returns a client for the bucket's home region.
func (s *S3Buckets) clientFor(ctx context.Context, bucket string) S3Client {
	if s.ForRegion == nil {
		return s.Client
	}

	s.mu.Lock()
	region, known := s.regions[bucket]
	s.mu.Unlock()

	if !known {
		region = s.locate(ctx, bucket)
		if region == "" {
			return s.Client
		}
		s.rememberRegion(bucket, region)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.regional == nil {
		s.regional = make(map[string]S3Client)
	}
	client, ok := s.regional[region]
	if !ok {
		client = s.ForRegion(region)
		s.regional[region] = client
	}
	return client
}

// locate resolves a bucket's region, or "" if it cannot be determined.
func (s *S3Buckets) locate(ctx context.Context, bucket string) string {
	loc, err := s.Client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(bucket)})
	if err != nil {
		return ""
	}
	switch region := string(loc.LocationConstraint); region {
	case "":
		// No constraint means the legacy global endpoint.
		return "us-east-1"
	case "EU":
		return "eu-west-1"
	default:
		return region
	}
}
