// Package mailflow provides a high-level façade over the workflow engine and
// its collaborators. Most applications interact with this package by:
//  1. Creating a Mailflow via New() with a mail store, calendar, model and
//     embedder (optionally overriding defaults)
//  2. Calling Run() once per polling cycle to fetch unread mail and drive
//     each email through the workflow
//
// The façade resolves the run timezone, builds the policy index at startup
// and keeps per-email failures isolated so one bad email never stops the
// batch.
package mailflow

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/mailflow/availability"
	"github.com/hupe1980/mailflow/compose"
	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/engine"
	"github.com/hupe1980/mailflow/logging"
	"github.com/hupe1980/mailflow/model"
	"github.com/hupe1980/mailflow/policy"
	"github.com/hupe1980/mailflow/timeparse"
	"github.com/hupe1980/mailflow/triage"
)

// Options configures the Mailflow instance.
type Options struct {
	// PolicyDir holds the policy documents indexed at startup; empty skips
	// the index entirely (drafts fall back to baseline guidelines).
	PolicyDir string
	// EmbedCachePath persists chunk embeddings between runs.
	EmbedCachePath string
	// PolicyTopK is the number of policy snippets injected per draft.
	PolicyTopK int

	// TimezoneOverride is consulted when the calendar reports no usable
	// timezone; FallbackTimezone when neither source resolves.
	TimezoneOverride string
	FallbackTimezone string

	// MaxResults caps the unread fetch per run.
	MaxResults int
	// MaxAlternatives caps suggested slots when the requested time is busy.
	MaxAlternatives int
	// MeetingDuration is the assumed meeting length.
	MeetingDuration time.Duration

	// Notifier receives one-line messages on completed actions.
	Notifier core.Notifier
	Logger   logging.Logger
}

// RunSummary reports what one Run did.
type RunSummary struct {
	Processed int
	Booked    int
	Suggested int
	Drafted   int
	Skipped   int
	Failed    int
}

// Mailflow aggregates the engine, its collaborators and the run timezone.
type Mailflow struct {
	mail   core.MailStore
	engine *engine.Engine
	loc    *time.Location
	opts   Options
}

// New wires the collaborators into a ready Mailflow. The run timezone is
// resolved once, the policy index is built once; both hold for the instance's
// lifetime.
func New(ctx context.Context, mail core.MailStore, cal core.Calendar, llm model.Model, embedder model.Embedder, optFns ...func(o *Options)) (*Mailflow, error) {
	opts := Options{
		PolicyTopK:       3,
		FallbackTimezone: "Asia/Kathmandu",
		MaxResults:       10,
		MaxAlternatives:  3,
		MeetingDuration:  timeparse.DefaultMeetingDuration,
		Notifier:         core.NoOpNotifier{},
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	loc, err := resolveTimezone(ctx, cal, opts)
	if err != nil {
		return nil, err
	}
	opts.Logger.Info("run timezone resolved", "timezone", loc.String())

	var index *policy.Index
	if opts.PolicyDir != "" {
		index, err = policy.Build(ctx, opts.PolicyDir, embedder, func(o *policy.Options) {
			o.CachePath = opts.EmbedCachePath
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, fmt.Errorf("build policy index: %w", err)
		}
	}

	extractor := timeparse.NewExtractor(loc, func(o *timeparse.Options) {
		o.Duration = opts.MeetingDuration
	})

	eng := engine.New(engine.Deps{
		Mail:     mail,
		Calendar: cal,
		Classifier: triage.NewClassifier(llm, func(o *triage.Options) {
			o.Logger = opts.Logger
		}),
		Composer: compose.NewComposer(llm, index, func(o *compose.Options) {
			o.TopK = opts.PolicyTopK
			o.Logger = opts.Logger
		}),
		Extractor: extractor,
		Detector:  timeparse.NewConfirmationDetector(extractor),
		Checker: availability.NewChecker(cal, func(o *availability.Options) {
			o.MaxAlternatives = opts.MaxAlternatives
			o.Logger = opts.Logger
		}),
	}, func(o *engine.Options) {
		o.Notifier = opts.Notifier
		o.Logger = opts.Logger
	})

	return &Mailflow{mail: mail, engine: eng, loc: loc, opts: opts}, nil
}

// resolveTimezone picks the run timezone: calendar-reported first, then the
// configured override, then the fixed fallback.
func resolveTimezone(ctx context.Context, cal core.Calendar, opts Options) (*time.Location, error) {
	if tz, err := cal.Timezone(ctx); err == nil && tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc, nil
		}
		opts.Logger.Warn("calendar reported unknown timezone", "timezone", tz)
	} else if err != nil {
		opts.Logger.Warn("calendar timezone unavailable", "error", err)
	}

	if opts.TimezoneOverride != "" {
		loc, err := time.LoadLocation(opts.TimezoneOverride)
		if err != nil {
			return nil, &core.ConfigError{Field: "timezone_override", Err: err}
		}
		return loc, nil
	}

	loc, err := time.LoadLocation(opts.FallbackTimezone)
	if err != nil {
		return nil, &core.ConfigError{Field: "fallback_timezone", Err: err}
	}
	return loc, nil
}

// Location returns the resolved run timezone.
func (m *Mailflow) Location() *time.Location { return m.loc }

// Run fetches the unread batch and processes each email to completion,
// sequentially. A failing email is logged and the batch continues; only the
// initial fetch can fail the run.
func (m *Mailflow) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	emails, err := m.mail.ListUnread(ctx, m.opts.MaxResults)
	if err != nil {
		return summary, fmt.Errorf("list unread emails: %w", err)
	}
	m.opts.Logger.Info("run started", "emails", len(emails))

	for _, email := range emails {
		state, err := m.engine.Process(ctx, email)
		if err != nil {
			summary.Failed++
			m.opts.Logger.Error("email workflow failed", "email_id", email.ID, "error", err)
			if !state.Handled {
				continue
			}
		}

		tally(&summary, state)
	}

	m.opts.Logger.Info("run finished",
		"processed", summary.Processed,
		"booked", summary.Booked,
		"suggested", summary.Suggested,
		"drafted", summary.Drafted,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

func tally(summary *RunSummary, state core.WorkflowState) {
	if !state.Handled {
		summary.Skipped++
		return
	}
	summary.Processed++

	switch {
	case state.Outcomes[core.StageCalendar] == engine.OutcomeBooked,
		state.Outcomes[core.StageConfirmation] == engine.OutcomeConfirmed:
		summary.Booked++
	case state.Outcomes[core.StageCalendar] == engine.OutcomeSuggested:
		summary.Suggested++
	case state.Outcomes[core.StageDraft] == engine.OutcomeDraftCreated:
		summary.Drafted++
	}
}
