package mailflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/model"
)

type fakeMail struct {
	unread  []core.EmailItem
	labels  map[string][]string
	replies []string
	drafts  []string
}

func newFakeMail(unread ...core.EmailItem) *fakeMail {
	return &fakeMail{unread: unread, labels: map[string][]string{}}
}

func (m *fakeMail) ListUnread(context.Context, int) ([]core.EmailItem, error) {
	return m.unread, nil
}

func (m *fakeMail) SendReply(_ context.Context, _ core.EmailItem, body string) error {
	m.replies = append(m.replies, body)
	return nil
}

func (m *fakeMail) CreateDraft(_ context.Context, _ core.EmailItem, body string) error {
	m.drafts = append(m.drafts, body)
	return nil
}

func (m *fakeMail) AddLabel(_ context.Context, emailID, label string) error {
	m.labels[emailID] = append(m.labels[emailID], label)
	return nil
}

func (m *fakeMail) HasLabel(_ context.Context, emailID, label string) (bool, error) {
	for _, l := range m.labels[emailID] {
		if l == label {
			return true, nil
		}
	}
	return false, nil
}

type fakeCal struct {
	tz        string
	tzErr     error
	createErr error
	created   []core.Event
}

func (c *fakeCal) FreeBusy(context.Context, time.Time, time.Time) (bool, error) { return true, nil }

func (c *fakeCal) CreateEvent(_ context.Context, ev core.Event) (string, string, error) {
	if c.createErr != nil {
		return "", "", c.createErr
	}
	c.created = append(c.created, ev)
	return "evt-1", "https://calendar.example/evt-1", nil
}

func (c *fakeCal) Timezone(context.Context) (string, error) {
	if c.tzErr != nil {
		return "", c.tzErr
	}
	return c.tz, nil
}

func testModel() *model.MockModel {
	llm := model.NewMockModel("mock")
	llm.AddResponse("calendar confirmation", "Your meeting is confirmed.")
	llm.AddResponse("exactly one word", "not urgent")
	return llm
}

func TestNewResolvesCalendarTimezoneFirst(t *testing.T) {
	m, err := New(context.Background(), newFakeMail(), &fakeCal{tz: "Australia/Sydney"},
		testModel(), model.NewMockEmbedder(), func(o *Options) {
			o.TimezoneOverride = "Europe/Berlin"
		})
	require.NoError(t, err)
	assert.Equal(t, "Australia/Sydney", m.Location().String())
}

func TestNewFallsBackToOverrideThenFixed(t *testing.T) {
	cal := &fakeCal{tzErr: errors.New("settings unavailable")}

	m, err := New(context.Background(), newFakeMail(), cal, testModel(), model.NewMockEmbedder(),
		func(o *Options) { o.TimezoneOverride = "Europe/Berlin" })
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", m.Location().String())

	m, err = New(context.Background(), newFakeMail(), cal, testModel(), model.NewMockEmbedder())
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kathmandu", m.Location().String())
}

func TestNewRejectsBadOverride(t *testing.T) {
	cal := &fakeCal{tzErr: errors.New("settings unavailable")}

	_, err := New(context.Background(), newFakeMail(), cal, testModel(), model.NewMockEmbedder(),
		func(o *Options) { o.TimezoneOverride = "Not/AZone" })
	require.Error(t, err)

	var cfgErr *core.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRunProcessesBatch(t *testing.T) {
	mail := newFakeMail(
		core.EmailItem{ID: "msg-1", From: "jane@example.com", Subject: "Sync", Body: "Can we meet tomorrow at 2 PM?"},
		core.EmailItem{ID: "msg-2", From: "bob@example.com", Subject: "Thanks", Body: "Thanks for everything, much appreciated."},
	)
	cal := &fakeCal{tz: "Australia/Sydney"}

	m, err := New(context.Background(), mail, cal, testModel(), model.NewMockEmbedder())
	require.NoError(t, err)

	summary, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Booked)
	assert.Equal(t, 0, summary.Failed)

	require.Len(t, cal.created, 1)
	assert.Equal(t, []string{core.ProcessedLabel}, mail.labels["msg-1"])
	assert.Equal(t, []string{core.ProcessedLabel}, mail.labels["msg-2"])
}

func TestRunIsolatesFailures(t *testing.T) {
	mail := newFakeMail(
		core.EmailItem{ID: "msg-1", From: "jane@example.com", Subject: "Sync", Body: "Can we meet tomorrow at 2 PM?"},
		core.EmailItem{ID: "msg-2", From: "bob@example.com", Subject: "Thanks", Body: "Thanks for everything, much appreciated."},
	)
	cal := &fakeCal{tz: "Australia/Sydney", createErr: errors.New("calendar unavailable")}

	m, err := New(context.Background(), mail, cal, testModel(), model.NewMockEmbedder())
	require.NoError(t, err)

	summary, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Processed, "second email still handled")
	assert.Empty(t, mail.labels["msg-1"], "failed email left for retry")
	assert.Equal(t, []string{core.ProcessedLabel}, mail.labels["msg-2"])
}
