package aws

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/engine/scanner"
	"github.com/DrSkyle/tagguard/pkg/resource"
)

// MockProvider is an in-memory account used by --mock runs and tests. Tag
// writes change the stored tags, so a second run sees the result of the first.
type MockProvider struct {
	AccountID string
	Alias     string
	// Latency is added to every call.
	Latency time.Duration

	mu          sync.Mutex
	resources   map[resource.Ref]resource.TagSet
	order       []resource.Ref
	writeErrs   map[string][]error
	collectErrs map[resource.Kind]error
	readErrs    map[string]error
	writes      int
}

// NewMockProvider creates an empty account.
func NewMockProvider(accountID, alias string) *MockProvider {
	return &MockProvider{
		AccountID:   accountID,
		Alias:       alias,
		resources:   make(map[resource.Ref]resource.TagSet),
		writeErrs:   make(map[string][]error),
		collectErrs: make(map[resource.Kind]error),
		readErrs:    make(map[string]error),
	}
}

// Add stores a resource with a copy of tags.
func (p *MockProvider) Add(ref resource.Ref, tags map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.resources[ref]; !ok {
		p.order = append(p.order, ref)
	}
	p.resources[ref] = resource.NewTagSet(tags)
}

// Remove deletes a resource, so later writes see it as gone.
func (p *MockProvider) Remove(ref resource.Ref) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resources, ref)
}

// FailWrites queues errors for the next tag writes on resource id, one per call.
func (p *MockProvider) FailWrites(id string, errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErrs[id] = append(p.writeErrs[id], errs...)
}

// FailCollect makes enumeration of kind fail with err.
func (p *MockProvider) FailCollect(kind resource.Kind, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectErrs[kind] = err
}

// FailRead makes the tags of resource id unreadable.
func (p *MockProvider) FailRead(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErrs[id] = err
}

// Tags returns a copy of the stored tags for ref.
func (p *MockProvider) Tags(ref resource.Ref) resource.TagSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return resource.NewTagSet(p.resources[ref])
}

// Writes counts the tag write calls made so far.
func (p *MockProvider) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

func (p *MockProvider) VerifyIdentity(ctx context.Context) (string, error) {
	return p.AccountID, nil
}

func (p *MockProvider) AccountAlias(ctx context.Context) (string, error) {
	return p.Alias, nil
}

// Targets returns one target per kind backed by this provider.
func (p *MockProvider) Targets(kinds []resource.Kind) []scanner.Target {
	out := make([]scanner.Target, 0, len(kinds))
	for _, k := range kinds {
		t := &mockTarget{provider: p, kind: k}
		out = append(out, scanner.Target{Collector: t, Tagger: t})
	}
	return out
}

func (p *MockProvider) sleep(ctx context.Context) {
	if p.Latency <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(p.Latency):
	}
}

func (p *MockProvider) write(ref resource.Ref, apply func(resource.TagSet) resource.TagSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writes++

	if q := p.writeErrs[ref.ID]; len(q) > 0 {
		p.writeErrs[ref.ID] = q[1:]
		if q[0] != nil {
			return q[0]
		}
	}
	tags, ok := p.resources[ref]
	if !ok {
		return remediation.NewError(remediation.NotFound, errors.New("resource not found"))
	}
	p.resources[ref] = apply(tags)
	return nil
}

type mockTarget struct {
	provider *MockProvider
	kind     resource.Kind
}

func (t *mockTarget) Kind() resource.Kind { return t.kind }

func (t *mockTarget) Fetch(ctx context.Context) iter.Seq2[resource.Snapshot, error] {
	return func(yield func(resource.Snapshot, error) bool) {
		p := t.provider
		p.sleep(ctx)

		p.mu.Lock()
		if err := p.collectErrs[t.kind]; err != nil {
			p.mu.Unlock()
			yield(resource.Snapshot{}, collectorError(t.kind, "mock list", err))
			return
		}
		var snaps []resource.Snapshot
		var reads []error
		for _, ref := range p.order {
			tags, ok := p.resources[ref]
			if !ok || ref.Kind != t.kind {
				continue
			}
			if err := p.readErrs[ref.ID]; err != nil {
				reads = append(reads, &scanner.ResourceReadError{Ref: ref, Err: err})
				continue
			}
			snaps = append(snaps, resource.Snapshot{Ref: ref, Tags: resource.NewTagSet(tags)})
		}
		p.mu.Unlock()

		for _, err := range reads {
			if !yield(resource.Snapshot{}, err) {
				return
			}
		}
		for _, s := range snaps {
			if !yield(s, nil) {
				return
			}
		}
	}
}

func (t *mockTarget) SetTag(ctx context.Context, ref resource.Ref, key, value string) error {
	t.provider.sleep(ctx)
	return t.provider.write(ref, func(tags resource.TagSet) resource.TagSet { return tags.With(key, value) })
}

func (t *mockTarget) DeleteTag(ctx context.Context, ref resource.Ref, key string) error {
	t.provider.sleep(ctx)
	return t.provider.write(ref, func(tags resource.TagSet) resource.TagSet { return tags.Without(key) })
}

// SeedDemo fills p with a small account covering every kind and every kind of drift.
func SeedDemo(p *MockProvider) {
	p.Add(resource.Ref{Kind: resource.KindInstance, ID: "i-0mock1234567890", DisplayName: "web-1"}, map[string]string{
		"Name": "web-1", "Environment": "prod", "Owner": "platform", "Exposure": "External",
		"DataClassification": "Restricted", "Business Criticality": "High",
	})
	p.Add(resource.Ref{Kind: resource.KindInstance, ID: "i-0mock0987654321", DisplayName: "batch-worker"}, map[string]string{
		"Name": "batch-worker", "Environment": "qa", "aws-migration-project-id": "MPE1234",
	})
	p.Add(resource.Ref{Kind: resource.KindDatabase, ID: "arn:aws:rds:us-east-1:123456789012:db:orders", DisplayName: "orders"}, map[string]string{
		"Name": "orders", "Environment": "prod", "Owner": "payments", "DataClassification": "Internal",
	})
	p.Add(resource.Ref{Kind: resource.KindDatabaseCluster, ID: "arn:aws:rds:us-east-1:123456789012:cluster:analytics", DisplayName: "analytics"}, map[string]string{})
	p.Add(resource.Ref{Kind: resource.KindBucket, ID: "mock-logs-bucket", DisplayName: "mock-logs-bucket"}, map[string]string{
		"Name": "mock-logs-bucket", "Owner": "security",
	})
	p.Add(resource.Ref{Kind: resource.KindFileSystem, ID: "fs-0mock12345", DisplayName: "shared-home"}, map[string]string{
		"Name": "shared-home", "Environment": "dev", "Owner": "research", "Exposure": "Internal",
		"DataClassification": "Restricted", "Business Criticality": "Low",
	})
}
