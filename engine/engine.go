package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/mailflow/availability"
	"github.com/hupe1980/mailflow/compose"
	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/logging"
	"github.com/hupe1980/mailflow/timeparse"
	"github.com/hupe1980/mailflow/triage"
)

// Stage outcome values recorded in WorkflowState.Outcomes.
const (
	OutcomeSkippedNoReply   = "skipped_no_reply"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeOK               = "ok"
	OutcomeBooked           = "booked"
	OutcomeSuggested        = "suggested"
	OutcomeNoCandidate      = "no_candidate"
	OutcomeConfirmed        = "confirmed"
	OutcomeNoMatch          = "no_match"
	OutcomeDraftCreated     = "created"
)

// Deps are the collaborators one Engine sequences. All fields are required.
type Deps struct {
	Mail       core.MailStore
	Calendar   core.Calendar
	Classifier *triage.Classifier
	Composer   *compose.Composer
	Extractor  *timeparse.Extractor
	Detector   *timeparse.ConfirmationDetector
	Checker    *availability.Checker
}

// Options configure an Engine.
type Options struct {
	// Notifier receives a one-line message per completed action.
	Notifier core.Notifier
	Logger   logging.Logger
	// NowFunc supplies the current instant; defaults to time.Now.
	NowFunc func() time.Time
}

// Engine routes one email at a time through the workflow stages:
//
//	Start -> CalendarCheck -> ConfirmationCheck -> TriageCheck -> Draft -> Done
//
// with conditional short-circuiting. At most one side-effect chain (book,
// send, draft, label) runs per email per run; once a chain commits, the email
// is marked processed and no later stage executes. The "ai-processed" label
// on the mail store is the single source of truth for already-handled mail.
type Engine struct {
	deps Deps
	opts Options
}

// New creates an Engine over the given collaborators.
func New(deps Deps, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Notifier: core.NoOpNotifier{},
		Logger:   logging.NoOpLogger{},
		NowFunc:  time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{deps: deps, opts: opts}
}

// Process runs the full workflow for one email and returns the final state.
// A returned error is always a *core.StageError; its Committed flag tells the
// caller whether the email was marked processed despite the failure. Errors
// never carry across emails, the caller decides whether to continue the
// batch.
func (e *Engine) Process(ctx context.Context, email core.EmailItem) (core.WorkflowState, error) {
	runID := uuid.NewString()
	state := core.NewWorkflowState(runID, email)
	now := e.opts.NowFunc()

	log := e.opts.Logger

	// Start: no-reply senders never enter the pipeline and never consume a
	// label write.
	if email.IsNoReplySender() {
		log.Info("no-reply sender, skipping", "email_id", email.ID, "run_id", runID, "from", email.From)
		return state.WithOutcome(core.StageStart, OutcomeSkippedNoReply), nil
	}

	// The list query excludes labeled mail, but the label is re-checked here
	// so a stale listing cannot double-handle an email.
	processed, err := e.deps.Mail.HasLabel(ctx, email.ID, core.ProcessedLabel)
	if err != nil {
		return state, core.NewStageError(core.StageStart, email.ID, fmt.Errorf("check processed label: %w", err))
	}
	if processed || email.Processed {
		log.Info("already processed, skipping", "email_id", email.ID, "run_id", runID)
		state = state.WithOutcome(core.StageStart, OutcomeAlreadyProcessed)
		state.Handled = true
		return state, nil
	}
	state = state.WithOutcome(core.StageStart, OutcomeOK)

	// Quoted thread text is excluded from candidate extraction so a reply
	// that quotes earlier suggestions is not re-parsed as a fresh request.
	// The quoted part still feeds the suggested-time list below.
	reply := stripQuotedLines(email.Body)

	// CalendarCheck: a parseable meeting time routes to booking or
	// alternatives and ends the run.
	cand, err := e.deps.Extractor.Extract(reply, now)
	switch {
	case err == nil:
		return e.runCalendarStage(ctx, state, cand)
	case errors.Is(err, core.ErrNoMatch):
		state = state.WithOutcome(core.StageCalendar, OutcomeNoCandidate)
	default:
		return state, core.NewStageError(core.StageCalendar, email.ID, err)
	}

	// ConfirmationCheck: an accepted previously suggested (or restated) time
	// books directly.
	suggested := e.deps.Extractor.ExtractSuggestedTimes(email.Body, now)
	cand, err = e.deps.Detector.Detect(reply, suggested, now)
	switch {
	case err == nil:
		return e.runConfirmationStage(ctx, state, cand)
	case errors.Is(err, core.ErrNoMatch):
		state = state.WithOutcome(core.StageConfirmation, OutcomeNoMatch)
	default:
		return state, core.NewStageError(core.StageConfirmation, email.ID, err)
	}

	// TriageCheck: urgent mail gets a policy-grounded draft, everything else
	// is labeled and done.
	label, err := e.deps.Classifier.Classify(ctx, email)
	if err != nil {
		return state, core.NewStageError(core.StageTriage, email.ID, err)
	}
	state = state.WithOutcome(core.StageTriage, label.String())

	if label == core.Urgent {
		return e.runDraftStage(ctx, state)
	}

	return e.markProcessed(ctx, state, core.StageTriage, false)
}

// runCalendarStage books the candidate when free, or replies with alternative
// slots when busy. Either way the email ends this run handled.
func (e *Engine) runCalendarStage(ctx context.Context, state core.WorkflowState, cand core.TimeCandidate) (core.WorkflowState, error) {
	email := state.Email
	log := e.opts.Logger

	avail, err := e.deps.Checker.Check(ctx, cand)
	if err != nil {
		return state, core.NewStageError(core.StageCalendar, email.ID, err)
	}

	if avail.Status == core.Free {
		state, err := e.bookAndConfirm(ctx, state, core.StageCalendar, cand)
		if err != nil {
			return state, err
		}
		e.opts.Notifier.Notify(ctx, "Booked: "+email.Subject)
		return state.WithOutcome(core.StageCalendar, OutcomeBooked), nil
	}

	// Busy: an exhausted horizon still gets a reply, the email is never
	// silently dropped.
	body, err := e.deps.Composer.ComposeAlternatives(ctx, email, cand, avail.Alternatives)
	if err != nil {
		return state, core.NewStageError(core.StageCalendar, email.ID, err)
	}
	if err := e.deps.Mail.SendReply(ctx, email, body); err != nil {
		return state, core.NewStageError(core.StageCalendar, email.ID, fmt.Errorf("send alternatives reply: %w", err))
	}
	state = state.WithAction(core.Action{Kind: core.ActionReplySent, Stage: core.StageCalendar, Detail: "alternatives"})
	log.Info("alternatives suggested", "email_id", email.ID, "run_id", state.RunID, "count", len(avail.Alternatives))

	state = state.WithOutcome(core.StageCalendar, OutcomeSuggested)
	return e.markProcessed(ctx, state, core.StageCalendar, true)
}

// runConfirmationStage books the confirmed time without a fresh availability
// probe; the slot was offered from the calendar's own free list.
func (e *Engine) runConfirmationStage(ctx context.Context, state core.WorkflowState, cand core.TimeCandidate) (core.WorkflowState, error) {
	state, err := e.bookAndConfirm(ctx, state, core.StageConfirmation, cand)
	if err != nil {
		return state, err
	}
	e.opts.Notifier.Notify(ctx, "Confirmed: "+state.Email.Subject)
	return state.WithOutcome(core.StageConfirmation, OutcomeConfirmed), nil
}

// bookAndConfirm creates the event, sends the confirmation reply, and marks
// the email processed. The event insert is the commit point: any failure
// after it is post-commit, the email is still marked processed so the next
// run cannot double-book.
func (e *Engine) bookAndConfirm(ctx context.Context, state core.WorkflowState, stage core.Stage, cand core.TimeCandidate) (core.WorkflowState, error) {
	email := state.Email
	log := e.opts.Logger

	ev := core.Event{
		Title:       email.MeetingTitle(),
		Start:       cand.Start,
		End:         cand.End(),
		Attendees:   []string{email.SenderAddress()},
		Description: "Scheduled from email: " + email.Subject,
		Timezone:    cand.Start.Location().String(),
	}

	eventID, link, err := e.deps.Calendar.CreateEvent(ctx, ev)
	if err != nil {
		return state, core.NewStageError(stage, email.ID, fmt.Errorf("create event: %w", err))
	}
	state = state.WithAction(core.Action{Kind: core.ActionEventBooked, Stage: stage, Detail: compose.FormatCandidate(cand), EventID: eventID})
	log.Info("event booked", "email_id", email.ID, "run_id", state.RunID, "event_id", eventID, "start", cand.Start)

	body, err := e.deps.Composer.ComposeConfirmation(ctx, email, cand, link)
	if err != nil {
		return e.settlePostCommit(ctx, state, stage, fmt.Errorf("compose confirmation: %w", err))
	}
	if err := e.deps.Mail.SendReply(ctx, email, body); err != nil {
		return e.settlePostCommit(ctx, state, stage, fmt.Errorf("send confirmation reply: %w", err))
	}
	state = state.WithAction(core.Action{Kind: core.ActionReplySent, Stage: stage, Detail: "confirmation"})

	return e.markProcessed(ctx, state, stage, true)
}

// runDraftStage composes the policy-grounded draft for an urgent email. The
// draft insert is the commit point.
func (e *Engine) runDraftStage(ctx context.Context, state core.WorkflowState) (core.WorkflowState, error) {
	email := state.Email
	log := e.opts.Logger

	body, err := e.deps.Composer.ComposeDraft(ctx, email)
	if err != nil {
		return state, core.NewStageError(core.StageDraft, email.ID, err)
	}
	if err := e.deps.Mail.CreateDraft(ctx, email, body); err != nil {
		return state, core.NewStageError(core.StageDraft, email.ID, fmt.Errorf("create draft: %w", err))
	}
	state = state.WithAction(core.Action{Kind: core.ActionDraftCreated, Stage: core.StageDraft})
	log.Info("draft created", "email_id", email.ID, "run_id", state.RunID)

	state = state.WithOutcome(core.StageDraft, OutcomeDraftCreated)
	state, err = e.markProcessed(ctx, state, core.StageDraft, true)
	if err != nil {
		return state, err
	}
	e.opts.Notifier.Notify(ctx, "Draft created for: "+email.Subject)
	return state, nil
}

// markProcessed applies the idempotency label and flags the state handled.
// committed tells the error classification: when a side effect already
// committed this run, a label failure is post-commit; when the label itself
// is the first side effect, it is a plain pre-commit failure and the email
// will be retried.
func (e *Engine) markProcessed(ctx context.Context, state core.WorkflowState, stage core.Stage, committed bool) (core.WorkflowState, error) {
	email := state.Email

	if err := e.deps.Mail.AddLabel(ctx, email.ID, core.ProcessedLabel); err != nil {
		wrapped := fmt.Errorf("apply %s label: %w", core.ProcessedLabel, err)
		if committed {
			return e.settlePostCommit(ctx, state, stage, wrapped)
		}
		return state, core.NewStageError(stage, email.ID, wrapped)
	}

	state = state.WithAction(core.Action{Kind: core.ActionLabeled, Stage: stage, Detail: core.ProcessedLabel})
	state.Handled = true
	return state, nil
}

// stripQuotedLines drops ">"-prefixed quote lines from a reply body.
func stripQuotedLines(body string) string {
	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// settlePostCommit handles a failure that happened after a side effect
// committed. The email is still marked processed on a best-effort basis;
// retrying the committing action next run would duplicate it.
func (e *Engine) settlePostCommit(ctx context.Context, state core.WorkflowState, stage core.Stage, cause error) (core.WorkflowState, error) {
	email := state.Email
	log := e.opts.Logger

	log.Error("partial failure after committed side effect", "email_id", email.ID, "run_id", state.RunID, "stage", string(stage), "error", cause)

	if err := e.deps.Mail.AddLabel(ctx, email.ID, core.ProcessedLabel); err != nil {
		log.Error("could not mark processed after committed side effect, manual follow-up needed",
			"email_id", email.ID, "run_id", state.RunID, "error", err)
	} else {
		state = state.WithAction(core.Action{Kind: core.ActionLabeled, Stage: stage, Detail: core.ProcessedLabel})
	}

	state.Handled = true
	return state, core.NewPostCommitError(stage, email.ID, cause)
}
