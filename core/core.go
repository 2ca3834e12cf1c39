package core

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// EmailItem is a single fetched mail message. It is immutable once fetched;
// the only mutation path is the idempotency label, applied by the mail store
// at the engine's request.
type EmailItem struct {
	ID         string
	ThreadID   string
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
	// Processed reflects whether the idempotency label was already present
	// at fetch time.
	Processed bool
}

// SenderAddress returns the bare address portion of the From header
// ("Jane <jane@example.com>" -> "jane@example.com").
func (e EmailItem) SenderAddress() string {
	addr, err := mail.ParseAddress(e.From)
	if err != nil {
		return strings.TrimSpace(e.From)
	}
	return addr.Address
}

// MeetingTitle derives an event summary from the subject, falling back to a
// generic title for subject-less mail.
func (e EmailItem) MeetingTitle() string {
	s := strings.TrimSpace(e.Subject)
	if s == "" || s == "No Subject" {
		return "Meeting"
	}
	return s
}

var noReplyPattern = regexp.MustCompile(`(?i)(no[-_]?reply|do[-_]?not[-_]?reply)`)

// IsNoReplySender reports whether the From header matches common automated,
// non-monitored sender conventions. The match is applied to the local part
// of the address only; a domain like "noreply-tracker.example.com" with a
// personal local part does not count.
func (e EmailItem) IsNoReplySender() bool {
	addr := e.SenderAddress()
	local := addr
	if i := strings.Index(addr, "@"); i >= 0 {
		local = addr[:i]
	}
	return noReplyPattern.MatchString(local)
}

// TimeCandidate is a parsed, timezone-qualified instant plus a meeting
// duration. The Start instant is always unambiguous: parsers report a
// no-match rather than guessing between interpretations.
type TimeCandidate struct {
	Start    time.Time
	Duration time.Duration
}

// End returns the end of the candidate window.
func (t TimeCandidate) End() time.Time { return t.Start.Add(t.Duration) }

// Equal compares two candidates by instant and duration.
func (t TimeCandidate) Equal(o TimeCandidate) bool {
	return t.Start.Equal(o.Start) && t.Duration == o.Duration
}

// AvailabilityStatus is the closed outcome set of a free/busy check.
type AvailabilityStatus int

const (
	// Free means the requested window has no conflicting event.
	Free AvailabilityStatus = iota
	// Busy means the window conflicts; Alternatives carries fallback slots.
	Busy
)

// Availability is the result of checking one TimeCandidate against the
// calendar. When Busy, Alternatives holds up to K free slots ordered
// earliest-first; it is empty only when no slot exists within the search
// horizon.
type Availability struct {
	Status       AvailabilityStatus
	Alternatives []TimeCandidate
}

// UrgencyLabel is the closed label set produced by the urgency classifier.
type UrgencyLabel int

const (
	// NotUrgent is the fail-safe default label.
	NotUrgent UrgencyLabel = iota
	// Urgent routes the email to draft composition.
	Urgent
)

// String returns the wire form of the label.
func (u UrgencyLabel) String() string {
	if u == Urgent {
		return "urgent"
	}
	return "not_urgent"
}

// Stage identifies a workflow stage for outcomes, logging and error reports.
type Stage string

const (
	StageStart        Stage = "start"
	StageCalendar     Stage = "calendar_check"
	StageConfirmation Stage = "confirmation_check"
	StageTriage       Stage = "triage_check"
	StageDraft        Stage = "draft"
)

// ActionKind enumerates the externally visible side effects a workflow run
// can take.
type ActionKind string

const (
	ActionEventBooked  ActionKind = "event_booked"
	ActionReplySent    ActionKind = "reply_sent"
	ActionDraftCreated ActionKind = "draft_created"
	ActionLabeled      ActionKind = "labeled"
)

// Action records one committed side effect, for logging and tests.
type Action struct {
	Kind    ActionKind
	Stage   Stage
	Detail  string
	EventID string
}

// WorkflowState is the per-email context threaded through the stages of one
// workflow run. It is owned by exactly one run, created at workflow start and
// discarded at workflow end; stages receive it by value and return the
// updated copy.
type WorkflowState struct {
	RunID    string
	Email    EmailItem
	Outcomes map[Stage]string
	Actions  []Action
	Handled  bool
}

// NewWorkflowState initializes state for one run of the given email.
func NewWorkflowState(runID string, email EmailItem) WorkflowState {
	return WorkflowState{
		RunID:    runID,
		Email:    email,
		Outcomes: map[Stage]string{},
	}
}

// WithOutcome records a stage outcome and returns the updated state.
func (s WorkflowState) WithOutcome(stage Stage, outcome string) WorkflowState {
	m := make(map[Stage]string, len(s.Outcomes)+1)
	for k, v := range s.Outcomes {
		m[k] = v
	}
	m[stage] = outcome
	s.Outcomes = m
	return s
}

// WithAction appends a committed side effect record.
func (s WorkflowState) WithAction(a Action) WorkflowState {
	s.Actions = append(append([]Action(nil), s.Actions...), a)
	return s
}
