package engine

import (
	"context"
	"errors"

	"github.com/DrSkyle/tagguard/pkg/engine/aws"
	"github.com/DrSkyle/tagguard/pkg/engine/notifier"
	"github.com/DrSkyle/tagguard/pkg/storage"
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
)

var isThrottled = aws.IsThrottled

// wireProvider builds the targets and identity resolver unless they were
// supplied as options, then the archive sink.
func (e *Engine) wireProvider(ctx context.Context) error {
	if len(e.targets) > 0 {
		return e.wireArchive(nil)
	}
	if e.config.MockMode {
		return e.wireMock()
	}

	region := e.config.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := aws.NewClient(ctx, region, e.config.Profile, e.config.Verbose)
	if err != nil {
		return &ConfigError{Field: "aws", Err: err}
	}

	targets, err := client.Targets(e.config.Kinds)
	if err != nil {
		return &ConfigError{Field: "kinds", Err: err}
	}
	e.targets = targets
	if e.identity == nil {
		e.identity = client
	}

	e.Logger.Info("AWS session ready", "region", region, "profile", e.config.Profile)
	return e.wireArchive(&client.Config)
}

// wireArchive adds an ArchiveSink for Config.OutputDir. S3 destinations need
// a real AWS session.
func (e *Engine) wireArchive(cfg *awssdk.Config) error {
	if e.config.OutputDir == "" {
		return nil
	}
	loc, err := storage.ParseLocation(e.config.OutputDir)
	if err != nil {
		return &ConfigError{Field: "output", Err: err}
	}
	if loc.Scheme == "s3" && cfg == nil {
		return &ConfigError{Field: "output", Err: errors.New("s3 output requires an AWS session")}
	}

	var sdkCfg awssdk.Config
	if cfg != nil {
		sdkCfg = *cfg
	}
	store, err := storage.Open(e.config.OutputDir, sdkCfg)
	if err != nil {
		return &ConfigError{Field: "output", Err: err}
	}
	e.sinks = append(e.sinks, notifier.ArchiveSink{Store: store, Mode: e.config.Mode})
	return nil
}
