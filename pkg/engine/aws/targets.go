package aws

import (
	"fmt"

	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/engine/scanner"
	"github.com/DrSkyle/tagguard/pkg/resource"
)

// ProviderTarget is implemented by every per-kind type in this package.
type ProviderTarget interface {
	scanner.Collector
	remediation.Tagger
}

var (
	_ ProviderTarget = (*EC2Instances)(nil)
	_ ProviderTarget = (*RDSInstances)(nil)
	_ ProviderTarget = (*RDSClusters)(nil)
	_ ProviderTarget = (*S3Buckets)(nil)
	_ ProviderTarget = (*EFSFileSystems)(nil)
)

// Targets builds the collector and tagger for each kind from the client's config.
func (c *Client) Targets(kinds []resource.Kind) ([]scanner.Target, error) {
	out := make([]scanner.Target, 0, len(kinds))
	for _, kind := range kinds {
		var t ProviderTarget
		switch kind {
		case resource.KindInstance:
			t = NewEC2Instances(c.Config)
		case resource.KindDatabase:
			t = NewRDSInstances(c.Config)
		case resource.KindDatabaseCluster:
			t = NewRDSClusters(c.Config)
		case resource.KindBucket:
			t = NewS3Buckets(c.Config)
		case resource.KindFileSystem:
			t = NewEFSFileSystems(c.Config)
		default:
			return nil, fmt.Errorf("no AWS collector for kind %q", kind)
		}
		out = append(out, scanner.Target{Collector: t, Tagger: t})
	}
	return out, nil
}
