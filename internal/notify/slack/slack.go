// Package slack sends claim escalation notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/triage"
)

const (
	maxRationaleLen = 3000
	httpTimeout     = 10 * time.Second
)

// Notifier posts escalated decision records to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
		logger:     logger,
	}
}

// Send implements triage.Notifier.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, r *triage.Record) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(r))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "escalation posted to slack", "record_id", r.ID, "claim_id", r.ClaimID)
	return nil
}

func buildMessage(r *triage.Record) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(r),
			{"type": "divider"},
			fieldsBlock(r),
			{"type": "divider"},
			rationaleBlock(r),
			{"type": "divider"},
			contextBlock(r),
		},
	}
}

func headerBlock(r *triage.Record) map[string]any {
	title := "Claim Escalated"
	if r.Kind == triage.KindOverride {
		title = "Claim Escalated on Review"
	}
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s %s: %s", severityEmoji(r.Decision.Severity), title, r.ClaimID),
		},
	}
}

func fieldsBlock(r *triage.Record) map[string]any {
	d := r.Decision
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", d.Severity)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Action:* %s", d.Action)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Risk score:* %.3f", d.RiskScore)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Provider:* %s", r.Provider)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Policy:* %s", r.PolicyID)},
	}
	if r.Reviewer != "" {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reviewer:* %s", r.Reviewer)})
	} else {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Decided in:* %.2fs", r.Duration)})
	}
	if len(d.RiskFactors) > 0 {
		fields = append(fields, map[string]any{"type": "mrkdwn", "text": "*Risk factors:* " + strings.Join(d.RiskFactors, ", ")})
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func rationaleBlock(r *triage.Record) map[string]any {
	text := r.Decision.Rationale
	if r.Reason != "" {
		text = r.Reason
	}
	text = truncate(text, maxRationaleLen)
	if text == "" {
		text = "_No rationale given._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Rationale*\n\n%s", text),
		},
	}
}

func contextBlock(r *triage.Record) map[string]any {
	ref := "record " + r.ID
	if r.Supersedes != "" {
		ref += " (supersedes " + r.Supersedes + ")"
	}
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("adjuster • %s • %s", ref, r.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func severityEmoji(s claim.Severity) string {
	switch s {
	case claim.SeverityCritical:
		return "\U0001f534" // red circle
	case claim.SeverityHigh:
		return "\U0001f7e0" // orange circle
	case claim.SeverityMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
