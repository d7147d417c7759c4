package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DrSkyle/tagguard/pkg/engine/report"
)

// maxListed caps the resources named in one message.
const maxListed = 10

// SlackClient posts a report summary to an incoming webhook.
type SlackClient struct {
	WebhookURL string
	Channel    string // Optional: Override default channel
	HTTPClient *http.Client
}

// NewSlackClient initializes the Slack integration.
func NewSlackClient(webhookURL string, channel string) *SlackClient {
	return &SlackClient{
		WebhookURL: webhookURL,
		Channel:    channel,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SlackClient) Name() string { return "slack" }

// Deliver sends the summary. An empty webhook is a no-op.
func (s *SlackClient) Deliver(ctx context.Context, r *report.ComplianceReport) error {
	if s.WebhookURL == "" {
		return nil
	}

	jsonPayload, err := json.Marshal(s.constructPayload(r))
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(jsonPayload))
	if err != nil {
		return &DeliveryError{Kind: InvalidRecipient, Sink: s.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}
	statusErr := fmt.Errorf("received status %d from slack", resp.StatusCode)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &DeliveryError{Kind: AuthFailure, Sink: s.Name(), Err: statusErr}
	case http.StatusTooManyRequests:
		return &DeliveryError{Kind: Throttled, Sink: s.Name(), Err: statusErr}
	case http.StatusBadRequest, http.StatusNotFound, http.StatusGone:
		return &DeliveryError{Kind: InvalidRecipient, Sink: s.Name(), Err: statusErr}
	}
	return errors.Join(errors.New("slack delivery failed"), statusErr)
}

// constructPayload builds the message blocks.
func (s *SlackClient) constructPayload(r *report.ComplianceReport) map[string]interface{} {
	sum := r.Summary()

	statusIcon := "🟢"
	if sum.Failed > 0 || len(r.Warnings) > 0 {
		statusIcon = "🔴"
	} else if sum.NonCompliant > 0 {
		statusIcon = "🟡"
	}
	title := "Tag Compliance Report"
	if r.DryRun {
		title += " (dry run)"
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type": "plain_text",
				"text": fmt.Sprintf("%s %s", statusIcon, title),
			},
		},
		{
			"type": "context",
			"elements": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Scan Date:* %s | *Account:* %s", r.GeneratedAt.Format("2006-01-02"), r.AccountIdentifier),
				},
			},
		},
		{
			"type": "divider",
		},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Resources Evaluated:*\n%d", sum.Resources)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Non-compliant:*\n%d", sum.NonCompliant)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Remediated:*\n%d", sum.Remediated)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Failed:*\n%d", sum.Failed)},
			},
		},
	}

	if failed := r.FailedRemediation(); len(failed) > 0 {
		text := "⚠️ *Remediation failed for:*"
		for i, ref := range failed {
			if i == maxListed {
				text += fmt.Sprintf("\n…and %d more", len(failed)-maxListed)
				break
			}
			text += fmt.Sprintf("\n• `%s` (%s)", ref.ID, ref.Kind.TypeName())
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "section",
			"text": map[string]interface{}{"type": "mrkdwn", "text": text},
		})
	}

	payload := map[string]interface{}{
		"text":   fmt.Sprintf("%s: %s", title, sum),
		"blocks": blocks,
	}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	return payload
}
