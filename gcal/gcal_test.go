package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/hupe1980/mailflow/core"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := calendarapi.NewService(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	return NewClientFromService(srv)
}

func TestFreeBusy(t *testing.T) {
	var items []*calendarapi.Event
	var gotQuery map[string][]string

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&calendarapi.Events{Items: items})
	})

	start := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	free, err := client.FreeBusy(context.Background(), start, end)
	require.NoError(t, err)
	assert.True(t, free)
	assert.Equal(t, []string{start.Format(time.RFC3339)}, gotQuery["timeMin"])
	assert.Equal(t, []string{end.Format(time.RFC3339)}, gotQuery["timeMax"])
	assert.Equal(t, []string{"true"}, gotQuery["singleEvents"])

	items = []*calendarapi.Event{{Id: "evt-other"}}
	free, err = client.FreeBusy(context.Background(), start, end)
	require.NoError(t, err)
	assert.False(t, free)
}

func TestCreateEvent(t *testing.T) {
	var inserted *calendarapi.Event

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.True(t, strings.Contains(r.URL.Path, "/calendars/primary/events"), r.URL.Path)

		inserted = &calendarapi.Event{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(inserted))
		inserted.Id = "evt-1"
		inserted.HtmlLink = "https://calendar.example/evt-1"

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(inserted)
	})

	loc, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)
	start := time.Date(2026, 3, 5, 14, 0, 0, 0, loc)

	id, link, err := client.CreateEvent(context.Background(), core.Event{
		Title:     "Quick sync",
		Start:     start,
		End:       start.Add(time.Hour),
		Attendees: []string{"jane@example.com"},
		Timezone:  "Australia/Sydney",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", id)
	assert.Equal(t, "https://calendar.example/evt-1", link)

	require.NotNil(t, inserted)
	assert.Equal(t, "Quick sync", inserted.Summary)
	assert.Equal(t, start.Format(time.RFC3339), inserted.Start.DateTime)
	assert.Equal(t, "Australia/Sydney", inserted.Start.TimeZone)
	require.Len(t, inserted.Attendees, 1)
	assert.Equal(t, "jane@example.com", inserted.Attendees[0].Email)
}

func TestTimezone(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/users/me/settings/timezone"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&calendarapi.Setting{Id: "timezone", Value: "Australia/Sydney"})
	})

	tz, err := client.Timezone(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Australia/Sydney", tz)
}
