package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/engine/report"
	"github.com/DrSkyle/tagguard/pkg/storage"
	"github.com/aws/smithy-go"
)

// ArchiveSink writes the report exports and a manual remediation plan for
// every mutation that was not applied and whose resource still exists.
type ArchiveSink struct {
	Store storage.BlobStore
	Mode  report.Mode
}

func (s ArchiveSink) Name() string { return "archive" }

// Keys returns the object keys written for r.
func (s ArchiveSink) Keys(r *report.ComplianceReport) []string {
	dir := s.dir(r)
	return []string{
		path.Join(dir, "report.json"),
		path.Join(dir, "report.csv"),
		path.Join(dir, "plan.json"),
		path.Join(dir, "plan.sh"),
	}
}

func (s ArchiveSink) dir(r *report.ComplianceReport) string {
	account := r.AccountIdentifier
	if account == "" {
		account = "unknown"
	}
	return path.Join(account, r.GeneratedAt.UTC().Format("20060102T150405Z"))
}

func (s ArchiveSink) Deliver(ctx context.Context, r *report.ComplianceReport) error {
	mode := s.Mode
	if mode == "" {
		mode = report.ModeNonCompliant
	}

	manifest := remediation.NewManifest(r.AccountIdentifier, r.GeneratedAt, pendingMutations(r.Outcomes))

	renderers := []func(*bytes.Buffer) error{
		func(b *bytes.Buffer) error { return report.WriteJSON(b, r, mode) },
		func(b *bytes.Buffer) error { return report.WriteCSV(b, r, mode) },
		func(b *bytes.Buffer) error { return manifest.WriteJSON(b) },
		func(b *bytes.Buffer) error { return manifest.WriteScript(b) },
	}
	for i, key := range s.Keys(r) {
		var buf bytes.Buffer
		if err := renderers[i](&buf); err != nil {
			return &DeliveryError{Kind: InvalidRecipient, Sink: s.Name(), Err: fmt.Errorf("render %s: %w", key, err)}
		}
		if err := s.Store.Put(ctx, key, buf.Bytes()); err != nil {
			return &DeliveryError{Kind: storeErrorKind(err), Sink: s.Name(), Err: fmt.Errorf("archive %s: %w", key, err)}
		}
	}
	return nil
}

// pendingMutations returns the mutations an operator may still need to run.
// Applied mutations and those against deleted resources are left out.
func pendingMutations(outs []remediation.Outcome) []remediation.Mutation {
	var pending []remediation.Mutation
	for _, o := range outs {
		if o.Status == remediation.StatusApplied {
			continue
		}
		if o.Status == remediation.StatusSkipped && o.Detail == remediation.DetailResourceGone {
			continue
		}
		pending = append(pending, o.Mutation)
	}
	return pending
}

var (
	storeAuthCodes = map[string]bool{
		"AccessDenied":          true,
		"AllAccessDisabled":     true,
		"InvalidAccessKeyId":    true,
		"SignatureDoesNotMatch": true,
		"ExpiredToken":          true,
		"InvalidToken":          true,
	}
	storeThrottleCodes = map[string]bool{
		"SlowDown":             true,
		"Throttling":           true,
		"RequestLimitExceeded": true,
		"ServiceUnavailable":   true,
	}
)

// storeErrorKind classifies a BlobStore write failure. A destination that is
// neither denied nor throttled is treated as unusable.
func storeErrorKind(err error) DeliveryErrorKind {
	if errors.Is(err, fs.ErrPermission) {
		return AuthFailure
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch {
		case storeAuthCodes[ae.ErrorCode()]:
			return AuthFailure
		case storeThrottleCodes[ae.ErrorCode()]:
			return Throttled
		}
	}
	return InvalidRecipient
}
