// Package gcal implements the calendar collaborator on the Google Calendar
// API. Free/busy is answered with an events.list over the requested window on
// the primary calendar, matching how slots were checked before booking in the
// rest of the pipeline.
package gcal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/logging"
)

const primaryCalendar = "primary"

// Options configure a Client.
type Options struct {
	Logger logging.Logger
}

// Client implements core.Calendar over the Google Calendar service.
type Client struct {
	srv  *calendarapi.Service
	opts Options
}

// NewClient builds a Client from an authenticated HTTP client, typically the
// same OAuth client the Gmail store uses.
func NewClient(ctx context.Context, httpClient *http.Client, optFns ...func(o *Options)) (*Client, error) {
	srv, err := calendarapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return NewClientFromService(srv, optFns...), nil
}

// NewClientFromService wraps an already constructed Calendar service.
func NewClientFromService(srv *calendarapi.Service, optFns ...func(o *Options)) *Client {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{srv: srv, opts: opts}
}

// FreeBusy reports whether [start, end) has no conflicting event on the
// primary calendar.
func (c *Client) FreeBusy(ctx context.Context, start, end time.Time) (bool, error) {
	events, err := c.srv.Events.List(primaryCalendar).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return false, fmt.Errorf("query events %s to %s: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), err)
	}
	return len(events.Items) == 0, nil
}

// CreateEvent inserts the event on the primary calendar and returns its id
// and browser link.
func (c *Client) CreateEvent(ctx context.Context, ev core.Event) (string, string, error) {
	body := &calendarapi.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start: &calendarapi.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		},
		End: &calendarapi.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		},
	}
	for _, a := range ev.Attendees {
		if a == "" {
			continue
		}
		body.Attendees = append(body.Attendees, &calendarapi.EventAttendee{Email: a})
	}

	created, err := c.srv.Events.Insert(primaryCalendar, body).Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("insert event %q: %w", ev.Title, err)
	}

	c.opts.Logger.Info("calendar event created", "event_id", created.Id, "title", ev.Title, "start", ev.Start)
	return created.Id, created.HtmlLink, nil
}

// Timezone returns the user's calendar-reported IANA timezone name.
func (c *Client) Timezone(ctx context.Context) (string, error) {
	setting, err := c.srv.Settings.Get("timezone").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get calendar timezone setting: %w", err)
	}
	return setting.Value, nil
}
