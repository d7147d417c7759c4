package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine"
	"github.com/DrSkyle/tagguard/pkg/engine/remediation"
	"github.com/DrSkyle/tagguard/pkg/engine/report"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Evaluate tags and remediate drift",
	Long: `Collects every configured resource kind, evaluates its tags against the
policy, and applies the classification and forbidden-tag fixes.

Use --dry-run to plan without writing.`,
	Example: `  tagguard audit --dry-run
  tagguard audit --kinds ec2,s3 --retry-pass --output s3://audit-bucket/tagguard
  tagguard audit --mock --mode full`,
	RunE: runAudit,
}

func init() {
	flags := auditCmd.Flags()
	flags.Bool("dry-run", false, "Plan mutations without applying them")
	flags.Bool("retry-pass", false, "Retry failed resources once at the end of the run")
	flags.Bool("strict", false, "Exit non-zero on partial results")
	flags.StringSlice("kinds", nil, "Resource kinds (ec2, rds, rds-cluster, s3, efs)")
	flags.String("mode", "noncompliant", "Report mode: noncompliant or full")
	flags.Int("concurrency", 10, "Maximum concurrent provider calls")
	flags.Duration("call-timeout", 30*time.Second, "Timeout per tag write")
	flags.String("output", "", "Artifact destination: directory or s3://bucket/prefix")
	flags.String("slack-webhook", "", "Slack Webhook URL")
	flags.String("slack-channel", "", "Slack channel override")
	flags.String("otel-endpoint", "", "OTLP/HTTP endpoint for traces")

	flags.Bool("mock", false, "Run against the built-in demo account")
	_ = flags.MarkHidden("mock")

	bindFlags(flags, map[string]string{
		"dry-run":       "dry_run",
		"retry-pass":    "retry_pass",
		"strict":        "strict",
		"kinds":         "kinds",
		"mode":          "mode",
		"concurrency":   "concurrency",
		"call-timeout":  "call_timeout",
		"output":        "output",
		"slack-webhook": "slack.webhook",
		"slack-channel": "slack.channel",
		"otel-endpoint": "otel_endpoint",
		"mock":          "mock",
	})
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, logger, err := loadSettings()
	if err != nil {
		return err
	}
	cfg, err := settings.EngineConfig(logger)
	if err != nil {
		logger.Error("Configuration rejected", "error", err)
		return err
	}

	e, err := engine.New(ctx, engine.WithConfig(cfg))
	if err != nil {
		logger.Error("Configuration rejected", "error", err)
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = e.Close(shutdownCtx)
	}()

	rep, err := e.Run(ctx)
	if rep != nil {
		printSummary(cmd.OutOrStdout(), rep, cfg.Mode)
	}
	if errors.Is(err, engine.ErrPartialResult) {
		return fmt.Errorf("audit incomplete: %w", err)
	}
	return err
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF99"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFCC00"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
	boxStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#555555")).
			Padding(0, 1)
)

// printSummary renders the headline counts and the resources listed by mode.
func printSummary(w io.Writer, rep *report.ComplianceReport, mode report.Mode) {
	sum := rep.Summary()

	title := fmt.Sprintf("Account %s", rep.AccountIdentifier)
	if rep.DryRun {
		title += " (dry run)"
	}
	lines := []string{
		titleStyle.Render(title),
		fmt.Sprintf("Resources     %d", sum.Resources),
		okStyle.Render(fmt.Sprintf("Compliant     %d", sum.Compliant)),
		warnStyle.Render(fmt.Sprintf("Non-compliant %d", sum.NonCompliant)),
		okStyle.Render(fmt.Sprintf("Remediated    %d", sum.Remediated)),
		failStyle.Render(fmt.Sprintf("Failed        %d", sum.Failed)),
		fmt.Sprintf("Mutations     %d planned, %d applied, %d skipped", sum.Planned, sum.Applied, sum.Skipped),
	}
	fmt.Fprintln(w, boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))

	for _, f := range rep.Audit(mode) {
		name := f.Resource.ID
		if f.Resource.DisplayName != "" && f.Resource.DisplayName != f.Resource.ID {
			name += " (" + f.Resource.DisplayName + ")"
		}
		status := okStyle.Render("COMPLIANT")
		if !f.Compliant() {
			status = warnStyle.Render(fmt.Sprintf("%d violations", f.Violations()))
		}
		fmt.Fprintf(w, "  %-22s %s %s\n", f.Resource.Kind.TypeName(), name, status)
		for _, o := range rep.OutcomesFor(f.Resource) {
			line := fmt.Sprintf("      %s: %s", o.Mutation, o.Status)
			switch o.Status {
			case remediation.StatusFailed:
				line = failStyle.Render(line + " (" + o.FailureReason + ")")
			case remediation.StatusSkipped:
				line += " (" + o.Detail + ")"
			}
			fmt.Fprintln(w, line)
		}
	}

	for _, warn := range rep.Warnings {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("[WARN] %s %s: %s", warn.Scope, warn.Kind, warn.Message)))
	}
}
