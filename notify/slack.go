// Package notify posts one-line action notifications to a Slack incoming
// webhook. Delivery is strictly best effort: a failed or disabled webhook
// never affects the workflow.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/logging"
)

const defaultTimeout = 10 * time.Second

// Options configure a SlackNotifier.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logging.Logger
}

// SlackNotifier implements core.Notifier against a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	opts       Options
}

// NewSlackNotifier creates a notifier for webhookURL. An empty URL yields a
// NoOpNotifier so callers can wire the config value unconditionally.
func NewSlackNotifier(webhookURL string, optFns ...func(o *Options)) core.Notifier {
	if webhookURL == "" {
		return core.NoOpNotifier{}
	}

	opts := Options{Timeout: defaultTimeout, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &SlackNotifier{webhookURL: webhookURL, client: client, opts: opts}
}

type payload struct {
	Text string `json:"text"`
}

// Notify posts text to the webhook. Errors are logged and swallowed.
func (n *SlackNotifier) Notify(ctx context.Context, text string) {
	body, err := json.Marshal(payload{Text: text})
	if err != nil {
		n.opts.Logger.Warn("slack payload not encodable", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.opts.Logger.Warn("slack request not buildable", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.opts.Logger.Warn("slack notification failed", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.opts.Logger.Warn("slack notification rejected", "status", resp.StatusCode)
	}
}
