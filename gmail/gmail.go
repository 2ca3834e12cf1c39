// Package gmail implements the mail-store collaborator on top of the Gmail
// API: unread listing filtered by the idempotency label, raw RFC 2822 reply
// and draft creation on the original thread, and label management. The OAuth
// installed-app flow lives in oauth.go.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/logging"
)

const user = "me"

// maxBodyChars bounds the body text handed to downstream stages.
const maxBodyChars = 2000

// Options configure a Store.
type Options struct {
	// CredentialsFile is the OAuth client secret JSON (installed app).
	CredentialsFile string
	// TokenFile caches the user token between runs.
	TokenFile string
	Logger    logging.Logger
}

// Store implements core.MailStore over a Gmail service.
type Store struct {
	srv  *gmailapi.Service
	opts Options

	mu       sync.Mutex
	labelIDs map[string]string
}

// NewStore runs the OAuth installed-app flow (prompting on first use) and
// returns a ready Store.
func NewStore(ctx context.Context, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		CredentialsFile: "credentials.json",
		TokenFile:       "token.json",
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient, err := OAuthClient(ctx, opts.CredentialsFile, opts.TokenFile, gmailapi.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("gmail oauth: %w", err)
	}
	return NewStoreWithClient(ctx, httpClient, optFns...)
}

// NewStoreWithClient builds a Store over an already authenticated HTTP
// client, typically one shared with the calendar service.
func NewStoreWithClient(ctx context.Context, httpClient *http.Client, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	srv, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewStoreFromService(srv, opts), nil
}

// NewStoreFromService wraps an already constructed Gmail service. Used by
// tests and callers with their own credential wiring.
func NewStoreFromService(srv *gmailapi.Service, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Store{srv: srv, opts: opts, labelIDs: map[string]string{}}
}

// ListUnread returns up to max unread inbox messages that do not carry the
// idempotency label. Bodies are plain-text extracted and truncated.
func (s *Store) ListUnread(ctx context.Context, max int) ([]core.EmailItem, error) {
	call := s.srv.Users.Messages.List(user).
		LabelIds("INBOX", "UNREAD").
		Q("-label:" + core.ProcessedLabel).
		Context(ctx)
	if max > 0 {
		call = call.MaxResults(int64(max))
	}

	list, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list unread messages: %w", err)
	}

	emails := make([]core.EmailItem, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := s.srv.Users.Messages.Get(user, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			s.opts.Logger.Warn("could not fetch message, skipping", "message_id", ref.Id, "error", err)
			continue
		}
		emails = append(emails, parseMessage(msg))
	}

	s.opts.Logger.Debug("unread messages fetched", "count", len(emails))
	return emails, nil
}

func parseMessage(msg *gmailapi.Message) core.EmailItem {
	item := core.EmailItem{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		Subject:    "No Subject",
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				item.Subject = h.Value
			case "From":
				item.From = h.Value
			}
		}
		item.Body = plainTextBody(msg.Payload)
	}

	if len(item.Body) > maxBodyChars {
		item.Body = item.Body[:maxBodyChars]
	}
	return item
}

// plainTextBody walks the MIME tree for the first text/plain part.
func plainTextBody(part *gmailapi.MessagePart) string {
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err == nil {
			return string(data)
		}
	}
	for _, p := range part.Parts {
		mime := strings.ToLower(p.MimeType)
		if strings.HasPrefix(mime, "text/") || strings.HasPrefix(mime, "multipart/") {
			if body := plainTextBody(p); body != "" {
				return body
			}
		}
	}
	return ""
}

// SendReply sends body as a direct reply on the email's thread. Replies to
// no-reply senders are silently skipped as a fail-safe, even if the caller
// did not filter them.
func (s *Store) SendReply(ctx context.Context, email core.EmailItem, body string) error {
	if email.IsNoReplySender() {
		s.opts.Logger.Warn("skipping reply to no-reply address", "email_id", email.ID, "from", email.From)
		return nil
	}

	msg := &gmailapi.Message{
		Raw:      encodeReply(email, body),
		ThreadId: email.ThreadID,
	}
	if _, err := s.srv.Users.Messages.Send(user, msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	s.opts.Logger.Info("reply sent", "email_id", email.ID, "thread_id", email.ThreadID)
	return nil
}

// CreateDraft saves body as a draft reply on the email's thread. Drafts are
// never auto-sent.
func (s *Store) CreateDraft(ctx context.Context, email core.EmailItem, body string) error {
	if email.IsNoReplySender() {
		s.opts.Logger.Warn("skipping draft for no-reply address", "email_id", email.ID, "from", email.From)
		return nil
	}

	draft := &gmailapi.Draft{
		Message: &gmailapi.Message{
			Raw:      encodeReply(email, body),
			ThreadId: email.ThreadID,
		},
	}
	if _, err := s.srv.Users.Drafts.Create(user, draft).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	s.opts.Logger.Info("draft created", "email_id", email.ID, "thread_id", email.ThreadID)
	return nil
}

// encodeReply builds the raw RFC 2822 reply message, base64url encoded as
// the Gmail API expects.
func encodeReply(email core.EmailItem, body string) string {
	subject := email.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", email.SenderAddress(), subject, body)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// AddLabel applies label to the message, creating the label on first use.
func (s *Store) AddLabel(ctx context.Context, emailID, label string) error {
	id, err := s.ensureLabel(ctx, label)
	if err != nil {
		return err
	}

	req := &gmailapi.ModifyMessageRequest{AddLabelIds: []string{id}}
	if _, err := s.srv.Users.Messages.Modify(user, emailID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("apply label %s: %w", label, err)
	}
	return nil
}

// HasLabel reports whether the message carries label. A label that does not
// exist yet cannot be on any message.
func (s *Store) HasLabel(ctx context.Context, emailID, label string) (bool, error) {
	id, err := s.labelID(ctx, label)
	if err != nil {
		return false, err
	}
	if id == "" {
		return false, nil
	}

	msg, err := s.srv.Users.Messages.Get(user, emailID).Format("minimal").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("get message labels: %w", err)
	}
	for _, l := range msg.LabelIds {
		if l == id {
			return true, nil
		}
	}
	return false, nil
}

// ensureLabel creates the label if missing and returns its id. The label is
// hidden in both the label list and the message list so it stays an internal
// marker.
func (s *Store) ensureLabel(ctx context.Context, label string) (string, error) {
	id, err := s.labelID(ctx, label)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	created, err := s.srv.Users.Labels.Create(user, &gmailapi.Label{
		Name:                  label,
		LabelListVisibility:   "labelHide",
		MessageListVisibility: "hide",
	}).Context(ctx).Do()
	if err != nil {
		// Concurrent creation by another run is fine, resolve again.
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return s.labelID(ctx, label)
		}
		return "", fmt.Errorf("create label %s: %w", label, err)
	}

	s.mu.Lock()
	s.labelIDs[label] = created.Id
	s.mu.Unlock()
	return created.Id, nil
}

// labelID resolves a label name to its id, empty when the label does not
// exist. Resolved ids are cached for the process lifetime.
func (s *Store) labelID(ctx context.Context, label string) (string, error) {
	s.mu.Lock()
	if id, ok := s.labelIDs[label]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	list, err := s.srv.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list labels: %w", err)
	}
	for _, l := range list.Labels {
		if l.Name == label {
			s.mu.Lock()
			s.labelIDs[label] = l.Id
			s.mu.Unlock()
			return l.Id, nil
		}
	}
	return "", nil
}
