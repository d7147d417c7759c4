package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw     string
		want    Location
		wantErr bool
	}{
		{raw: "s3://audit-bucket/reports/prod/", want: Location{Scheme: "s3", Bucket: "audit-bucket", Path: "reports/prod"}},
		{raw: "s3://audit-bucket", want: Location{Scheme: "s3", Bucket: "audit-bucket"}},
		{raw: "file:///var/tagguard", want: Location{Scheme: "file", Path: "/var/tagguard"}},
		{raw: "./out", want: Location{Scheme: "file", Path: "./out"}},
		{raw: "s3:///prefix", wantErr: true},
		{raw: "gs://bucket", wantErr: true},
		{raw: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLocation(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	require.NoError(t, s.Put(ctx, "2026/report.json", []byte("{}")))
	require.NoError(t, s.Put(ctx, "2026/report.csv", []byte("a,b")))
	require.NoError(t, s.Put(ctx, "other.txt", []byte("x")))

	data, err := s.Get(ctx, "2026/report.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	keys, err := s.List(ctx, "2026/")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026/report.csv", "2026/report.json"}, keys)

	// Keys cannot escape the root.
	require.NoError(t, s.Put(ctx, "../escape.txt", []byte("x")))
	keys, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, keys, "escape.txt")
}

func TestLocalStoreListMissingRoot(t *testing.T) {
	s := NewLocalStore(t.TempDir() + "/missing")
	keys, err := s.List(context.Background(), "")
	assert.NoError(t, err)
	assert.Empty(t, keys)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(params.Key)] = data
	if f.types != nil {
		f.types[aws.ToString(params.Key)] = aws.ToString(params.ContentType)
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.objects[aws.ToString(params.Key)]))}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(params.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3StorePrefix(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	s := &S3Store{Client: fake, Bucket: "audit", Prefix: "tagguard/prod/"}

	require.NoError(t, s.Put(ctx, "run-1/report.json", []byte("{}")))
	require.NoError(t, s.Put(ctx, "run-1/report.csv", []byte("ResourceID\n")))
	assert.Contains(t, fake.objects, "tagguard/prod/run-1/report.json")
	assert.Equal(t, "application/json", fake.types["tagguard/prod/run-1/report.json"])
	assert.Equal(t, "text/csv", fake.types["tagguard/prod/run-1/report.csv"])

	data, err := s.Get(ctx, "run-1/report.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	keys, err := s.List(ctx, "run-1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1/report.csv", "run-1/report.json"}, keys)
}
