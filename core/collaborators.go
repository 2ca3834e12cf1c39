package core

import (
	"context"
	"time"
)

// ProcessedLabel is the idempotency label applied to fully handled mail. Its
// presence is the single source of truth for "already handled".
const ProcessedLabel = "ai-processed"

// MailStore is the mail collaborator consumed by the workflow engine. All
// operations are synchronous from the engine's point of view.
type MailStore interface {
	// ListUnread returns unread inbox messages that do not carry the
	// idempotency label, up to max results.
	ListUnread(ctx context.Context, max int) ([]EmailItem, error)

	// SendReply sends body as a direct reply on the email's thread.
	SendReply(ctx context.Context, email EmailItem, body string) error

	// CreateDraft saves body as a draft reply on the email's thread. Drafts
	// are never auto-sent.
	CreateDraft(ctx context.Context, email EmailItem, body string) error

	// AddLabel applies label to the message.
	AddLabel(ctx context.Context, emailID, label string) error

	// HasLabel reports whether the message carries label.
	HasLabel(ctx context.Context, emailID, label string) (bool, error)
}

// Event describes a calendar event to create.
type Event struct {
	Title       string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Description string
	Timezone    string
}

// Calendar is the calendar collaborator. Free/busy queries and event
// creation target the user's primary calendar only.
type Calendar interface {
	// FreeBusy reports whether the window [start, end) is free of
	// conflicting events.
	FreeBusy(ctx context.Context, start, end time.Time) (bool, error)

	// CreateEvent inserts the event and returns its id and a browser link
	// (link may be empty).
	CreateEvent(ctx context.Context, ev Event) (id string, link string, err error)

	// Timezone returns the user's calendar-reported IANA timezone name.
	Timezone(ctx context.Context) (string, error)
}

// Notifier posts one-line notifications about completed actions to an
// external messaging endpoint. Implementations must never fail the workflow:
// delivery errors are logged and swallowed.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// NoOpNotifier discards all notifications.
type NoOpNotifier struct{}

// Notify implements Notifier.
func (NoOpNotifier) Notify(context.Context, string) {}
