// Package compose builds the outgoing text for the workflow: policy-grounded
// draft replies for urgent mail, booking confirmations, and alternative-time
// suggestions. All prompts are constructed deterministically; model output is
// passed through to the mail store unmodified.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/logging"
	"github.com/hupe1980/mailflow/model"
	"github.com/hupe1980/mailflow/policy"
)

const (
	draftSystemPrompt    = "You are an executive communications specialist who crafts executive-level communications (body only)."
	calendarSystemPrompt = "You are a calendar & meeting coordinator expert at scheduling and confirming meetings (body only)."

	// timeFormat renders instants in replies, e.g. "March 5, 2026 at 2:00 PM".
	// The confirmation detector's suggested-time scanner parses this exact
	// layout back out of quoted thread text.
	timeFormat = "January 2, 2006 at 3:04 PM"
)

// maxQueryChars bounds how much body text seeds the policy retrieval query.
const maxQueryChars = 800

// Options configure a Composer.
type Options struct {
	// TopK is the number of policy snippets injected into draft prompts.
	TopK   int
	Logger logging.Logger
}

// Composer generates reply and draft text through the model collaborator,
// grounding urgent drafts in retrieved policy snippets.
type Composer struct {
	llm   model.Model
	index *policy.Index
	opts  Options
}

// NewComposer creates a Composer. index may be nil when no policy corpus is
// configured; drafts then fall back to baseline guidelines.
func NewComposer(llm model.Model, index *policy.Index, optFns ...func(o *Options)) *Composer {
	opts := Options{TopK: 3, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Composer{llm: llm, index: index, opts: opts}
}

// ComposeDraft writes a policy-compliant draft response for an urgent email.
// The returned text is opaque to the caller and saved as a draft verbatim.
func (c *Composer) ComposeDraft(ctx context.Context, email core.EmailItem) (string, error) {
	policyContext := c.retrievePolicyContext(ctx, email)

	prompt := fmt.Sprintf(`Write a professional, policy-compliant draft response for this urgent email.

POLICY CONTEXT (follow strictly):
%s

ORIGINAL EMAIL CONTENT:
%s

Guidelines:
- Acknowledge receipt and show empathy
- Keep response under 3 sentences
- Offer immediate next steps if needed
- Maintain professional tone
- Do not include sensitive information or commitments you cannot verify`, policyContext, email.Body)

	resp, err := c.llm.Generate(ctx, model.Request{Instructions: draftSystemPrompt, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("compose draft: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *Composer) retrievePolicyContext(ctx context.Context, email core.EmailItem) string {
	const fallback = "(No policy context retrieved; follow brevity, professional tone, no sensitive info.)"

	if c.index == nil {
		return fallback
	}

	body := email.Body
	if len(body) > maxQueryChars {
		body = body[:maxQueryChars]
	}
	query := fmt.Sprintf("Urgent reply policy for subject: %s. Body: %s", email.Subject, body)

	matches, err := c.index.Retrieve(ctx, query, c.opts.TopK)
	if err != nil {
		// Retrieval failure degrades the draft, it does not block it.
		c.opts.Logger.Warn("policy retrieval failed", "email_id", email.ID, "error", err)
		return fallback
	}
	if len(matches) == 0 {
		return fallback
	}

	snippets := make([]string, len(matches))
	for i, m := range matches {
		snippets[i] = m.Chunk.Text
	}
	c.opts.Logger.Debug("policy snippets injected", "email_id", email.ID, "count", len(snippets))
	return strings.Join(snippets, "\n\n")
}

// ComposeConfirmation writes the reply confirming a booked meeting.
func (c *Composer) ComposeConfirmation(ctx context.Context, email core.EmailItem, cand core.TimeCandidate, eventLink string) (string, error) {
	prompt := fmt.Sprintf(`Write a professional calendar confirmation email based on this meeting request:

ORIGINAL EMAIL:
FROM: %s
SUBJECT: %s
CONTENT: %s

MEETING DETAILS:
Title: %s
Date & Time: %s
Calendar Link: %s

Guidelines:
- Confirm the meeting is scheduled
- Reference the original request context
- Include all meeting details
- Provide the calendar link
- Keep professional and friendly tone
- Keep under 4 sentences`,
		email.From, email.Subject, email.Body,
		email.MeetingTitle(), cand.Start.Format(timeFormat), eventLink)

	resp, err := c.llm.Generate(ctx, model.Request{Instructions: calendarSystemPrompt, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("compose confirmation: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// ComposeAlternatives writes the reply proposing alternative meeting times.
// alternatives may be empty; NoSlotsMessage is returned in that case without
// a model call.
func (c *Composer) ComposeAlternatives(ctx context.Context, email core.EmailItem, requested core.TimeCandidate, alternatives []core.TimeCandidate) (string, error) {
	if len(alternatives) == 0 {
		return NoSlotsMessage, nil
	}

	lines := make([]string, len(alternatives))
	for i, alt := range alternatives {
		lines[i] = "- " + alt.Start.Format(timeFormat)
	}

	prompt := fmt.Sprintf(`Write a professional email suggesting alternative meeting times:

ORIGINAL EMAIL:
FROM: %s
SUBJECT: %s
CONTENT: %s

SITUATION:
Requested time: %s is not available
Meeting title: %s

ALTERNATIVE TIME OPTIONS:
%s

Guidelines:
- Apologize that requested time is not available
- Reference the original request context
- Suggest the alternative times clearly
- Ask them to confirm preferred time
- Keep professional and helpful tone
- Keep under 5 sentences`,
		email.From, email.Subject, email.Body,
		requested.Start.Format(timeFormat), email.MeetingTitle(),
		strings.Join(lines, "\n"))

	resp, err := c.llm.Generate(ctx, model.Request{Instructions: calendarSystemPrompt, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("compose alternatives: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// NoSlotsMessage is sent when the requested time is busy and no alternative
// exists within the search horizon.
const NoSlotsMessage = "That time seems to be booked in my calendar. I couldn't find alternative slots in the coming days, but I will get back to you with other options as soon as possible."

// FormatCandidate renders a candidate the way replies present times.
func FormatCandidate(cand core.TimeCandidate) string {
	return cand.Start.Format(timeFormat)
}
