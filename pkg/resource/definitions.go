// Package resource defines the provider-neutral view of a tagged cloud resource.
package resource

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a resource family. Each kind has exactly one collector.
type Kind string

const (
	KindInstance        Kind = "Instance"
	KindDatabase        Kind = "Database"
	KindDatabaseCluster Kind = "DatabaseCluster"
	KindBucket          Kind = "Bucket"
	KindFileSystem      Kind = "FileSystem"
)

// AllKinds lists every supported kind in processing order.
var AllKinds = []Kind{
	KindInstance,
	KindDatabase,
	KindDatabaseCluster,
	KindBucket,
	KindFileSystem,
}

// CloudFormation-style type names, used in exported reports.
var typeNames = map[Kind]string{
	KindInstance:        "AWS::EC2::Instance",
	KindDatabase:        "AWS::RDS::DBInstance",
	KindDatabaseCluster: "AWS::RDS::DBCluster",
	KindBucket:          "AWS::S3::Bucket",
	KindFileSystem:      "AWS::EFS::FileSystem",
}

// TypeName returns the provider type name for the kind.
func (k Kind) TypeName() string {
	if n, ok := typeNames[k]; ok {
		return n
	}
	return string(k)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := typeNames[k]
	return ok
}

// ParseKind resolves a kind from its name, case-insensitively.
// Short aliases such as "ec2", "rds", "s3" and "efs" are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "instance", "ec2":
		return KindInstance, nil
	case "database", "rds":
		return KindDatabase, nil
	case "databasecluster", "rds-cluster", "aurora":
		return KindDatabaseCluster, nil
	case "bucket", "s3":
		return KindBucket, nil
	case "filesystem", "efs":
		return KindFileSystem, nil
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// Ref identifies a resource. It is immutable once collected.
type Ref struct {
	Kind        Kind   `json:"kind"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

// Less orders refs by ID, then kind, for reproducible output.
func (r Ref) Less(o Ref) bool {
	if r.ID != o.ID {
		return r.ID < o.ID
	}
	return r.Kind < o.Kind
}

// TagSet maps tag keys to values at the moment of a snapshot.
// It is never mutated in place; use With/Without to derive a new set.
type TagSet map[string]string

// NewTagSet copies m into a fresh TagSet.
func NewTagSet(m map[string]string) TagSet {
	out := make(TagSet, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Get returns the value for key and whether it is present.
func (t TagSet) Get(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// Has reports whether key is present.
func (t TagSet) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// With returns a copy of t with key set to value.
func (t TagSet) With(key, value string) TagSet {
	out := NewTagSet(t)
	out[key] = value
	return out
}

// Without returns a copy of t with key removed.
func (t TagSet) Without(key string) TagSet {
	out := NewTagSet(t)
	delete(out, key)
	return out
}

// Keys returns the tag keys in sorted order.
func (t TagSet) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot pairs a resource with the tags read for it.
type Snapshot struct {
	Ref  Ref
	Tags TagSet
}
