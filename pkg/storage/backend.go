// Package storage persists report artifacts to a local directory or an S3 prefix.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// BlobStore defines the interface for abstract storage backends.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// ErrEmptyLocation is returned by Open for an empty location.
var ErrEmptyLocation = errors.New("storage location is empty")

// Location is a parsed archive destination.
type Location struct {
	// Scheme is "s3" or "file".
	Scheme string
	// Bucket is set for s3 locations.
	Bucket string
	// Path is the key prefix for s3 and the directory for file.
	Path string
}

// ParseLocation accepts "s3://bucket/prefix", "file:///dir" or a plain directory.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, ErrEmptyLocation
	}
	switch {
	case strings.HasPrefix(raw, "s3://"):
		rest := strings.TrimPrefix(raw, "s3://")
		bucket, prefix, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Location{}, fmt.Errorf("invalid s3 location %q: missing bucket", raw)
		}
		return Location{Scheme: "s3", Bucket: bucket, Path: strings.Trim(prefix, "/")}, nil
	case strings.HasPrefix(raw, "file://"):
		return Location{Scheme: "file", Path: strings.TrimPrefix(raw, "file://")}, nil
	case strings.Contains(raw, "://"):
		return Location{}, fmt.Errorf("unsupported storage scheme in %q", raw)
	}
	return Location{Scheme: "file", Path: raw}, nil
}

// Open returns the store for raw. cfg is only used for s3 locations.
func Open(raw string, cfg aws.Config) (BlobStore, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}
	if loc.Scheme == "s3" {
		return NewS3Store(cfg, loc.Bucket, loc.Path), nil
	}
	return NewLocalStore(loc.Path), nil
}
