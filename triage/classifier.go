// Package triage classifies email urgency through the language-model
// collaborator. Prompt construction is deterministic and output parsing is
// strict: anything that does not parse to the closed label set defaults to
// not urgent, so a misbehaving model can never silently escalate.
package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/logging"
	"github.com/hupe1980/mailflow/model"
)

const systemPrompt = "You are a senior email analyst expert at triaging urgent matters."

// maxBodyChars bounds how much body text enters the prompt.
const maxBodyChars = 2000

// Options configure a Classifier.
type Options struct {
	Logger logging.Logger
}

// Classifier is a thin, stateless wrapper around the model collaborator.
type Classifier struct {
	llm  model.Model
	opts Options
}

// NewClassifier creates a Classifier backed by llm.
func NewClassifier(llm model.Model, optFns ...func(o *Options)) *Classifier {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Classifier{llm: llm, opts: opts}
}

// Classify labels the email urgent or not urgent.
func (c *Classifier) Classify(ctx context.Context, email core.EmailItem) (core.UrgencyLabel, error) {
	req := model.Request{
		Instructions: systemPrompt,
		Prompt:       buildPrompt(email),
	}

	start := time.Now()
	resp, err := c.llm.Generate(ctx, req)
	if err != nil {
		c.opts.Logger.Error("urgency classification failed", "email_id", email.ID, "error", err)
		return core.NotUrgent, fmt.Errorf("classify urgency: %w", err)
	}
	c.opts.Logger.Debug("urgency classified", "email_id", email.ID, "raw", resp.Text, "duration", time.Since(start))

	return ParseLabel(resp.Text), nil
}

func buildPrompt(email core.EmailItem) string {
	body := email.Body
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}
	return fmt.Sprintf(`Analyze this email for urgency:

FROM: %s
SUBJECT: %s
CONTENT:
%s

Respond with exactly one word: either 'urgent' or 'not urgent'.`, email.From, email.Subject, body)
}

// ParseLabel maps free-form model output onto the closed label set.
// Unparseable output is NotUrgent.
func ParseLabel(raw string) core.UrgencyLabel {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(s, `."'!`)
	switch s {
	case "urgent":
		return core.Urgent
	case "not urgent", "not_urgent", "not-urgent":
		return core.NotUrgent
	default:
		return core.NotUrgent
	}
}
