package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mailflow/core"
)

// fakeCalendar answers free/busy from a fixed set of busy windows.
type fakeCalendar struct {
	busy    [][2]time.Time
	queries int
	err     error
}

func (f *fakeCalendar) FreeBusy(_ context.Context, start, end time.Time) (bool, error) {
	f.queries++
	if f.err != nil {
		return false, f.err
	}
	for _, w := range f.busy {
		if start.Before(w[1]) && end.After(w[0]) {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeCalendar) CreateEvent(context.Context, core.Event) (string, string, error) {
	return "", "", errors.New("not implemented")
}

func (f *fakeCalendar) Timezone(context.Context) (string, error) { return "UTC", nil }

func window(loc *time.Location, y int, m time.Month, d, h, min, durMinutes int) [2]time.Time {
	start := time.Date(y, m, d, h, min, 0, 0, loc)
	return [2]time.Time{start, start.Add(time.Duration(durMinutes) * time.Minute)}
}

func TestCheck_Free(t *testing.T) {
	cal := &fakeCalendar{}
	c := NewChecker(cal)

	cand := core.TimeCandidate{Start: time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC), Duration: time.Hour}
	res, err := c.Check(context.Background(), cand)
	require.NoError(t, err)

	assert.Equal(t, core.Free, res.Status)
	assert.Empty(t, res.Alternatives)
	assert.Equal(t, 1, cal.queries, "free window needs exactly one query")
}

func TestCheck_BusyProposesOrderedAlternatives(t *testing.T) {
	loc := time.UTC
	cal := &fakeCalendar{busy: [][2]time.Time{
		window(loc, 2026, 3, 4, 14, 0, 60), // requested slot
		window(loc, 2026, 3, 4, 15, 0, 60), // first probe lands here too
	}}
	c := NewChecker(cal)

	cand := core.TimeCandidate{Start: time.Date(2026, 3, 4, 14, 0, 0, 0, loc), Duration: time.Hour}
	res, err := c.Check(context.Background(), cand)
	require.NoError(t, err)

	assert.Equal(t, core.Busy, res.Status)
	require.Len(t, res.Alternatives, 3)

	// Strictly time-ordered.
	for i := 1; i < len(res.Alternatives); i++ {
		assert.True(t, res.Alternatives[i-1].Start.Before(res.Alternatives[i].Start))
	}

	// No alternative overlaps a busy window.
	for _, alt := range res.Alternatives {
		for _, w := range cal.busy {
			overlaps := alt.Start.Before(w[1]) && alt.End().After(w[0])
			assert.False(t, overlaps, "alternative %v overlaps busy window %v", alt.Start, w)
		}
	}

	// 14:30 and 15:00-16:00 region conflict with the busy block; the first
	// free probes are 16:00, 16:30 is rejected (would end 17:30), so the
	// probe moves to the next day.
	assert.Equal(t, time.Date(2026, 3, 4, 16, 0, 0, 0, loc), res.Alternatives[0].Start)
	assert.Equal(t, time.Date(2026, 3, 5, 9, 0, 0, 0, loc), res.Alternatives[1].Start)
	assert.Equal(t, time.Date(2026, 3, 5, 9, 30, 0, 0, loc), res.Alternatives[2].Start)
}

func TestCheck_AlternativesRespectBusinessHours(t *testing.T) {
	loc := time.UTC
	// Requested late in the day: 16:30 with one-hour meetings means nothing
	// else fits today.
	cal := &fakeCalendar{busy: [][2]time.Time{
		window(loc, 2026, 3, 4, 16, 30, 60),
	}}
	c := NewChecker(cal)

	cand := core.TimeCandidate{Start: time.Date(2026, 3, 4, 16, 30, 0, 0, loc), Duration: time.Hour}
	res, err := c.Check(context.Background(), cand)
	require.NoError(t, err)

	require.NotEmpty(t, res.Alternatives)
	first := res.Alternatives[0].Start
	assert.Equal(t, time.Date(2026, 3, 5, 9, 0, 0, 0, loc), first)
	for _, alt := range res.Alternatives {
		assert.GreaterOrEqual(t, alt.Start.Hour(), 9)
		assert.LessOrEqual(t, alt.End().Hour(), 17)
	}
}

func TestCheck_AlternativesSkipWeekend(t *testing.T) {
	loc := time.UTC
	// Friday 2026-03-06 16:30 busy: next candidates land on Monday.
	cal := &fakeCalendar{busy: [][2]time.Time{
		window(loc, 2026, 3, 6, 16, 30, 60),
	}}
	c := NewChecker(cal)

	cand := core.TimeCandidate{Start: time.Date(2026, 3, 6, 16, 30, 0, 0, loc), Duration: time.Hour}
	res, err := c.Check(context.Background(), cand)
	require.NoError(t, err)

	require.NotEmpty(t, res.Alternatives)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, loc), res.Alternatives[0].Start)
	for _, alt := range res.Alternatives {
		assert.NotEqual(t, time.Saturday, alt.Start.Weekday())
		assert.NotEqual(t, time.Sunday, alt.Start.Weekday())
	}
}

func TestCheck_NoSlotWithinHorizon(t *testing.T) {
	loc := time.UTC
	// Whole horizon is solidly booked.
	cal := &fakeCalendar{busy: [][2]time.Time{
		{time.Date(2026, 3, 1, 0, 0, 0, 0, loc), time.Date(2026, 4, 1, 0, 0, 0, 0, loc)},
	}}
	c := NewChecker(cal)

	cand := core.TimeCandidate{Start: time.Date(2026, 3, 4, 14, 0, 0, 0, loc), Duration: time.Hour}
	res, err := c.Check(context.Background(), cand)
	require.NoError(t, err)

	assert.Equal(t, core.Busy, res.Status)
	assert.Empty(t, res.Alternatives)
}

func TestCheck_MaxAlternativesOption(t *testing.T) {
	loc := time.UTC
	cal := &fakeCalendar{busy: [][2]time.Time{
		window(loc, 2026, 3, 4, 14, 0, 60),
	}}
	c := NewChecker(cal, func(o *Options) { o.MaxAlternatives = 1 })

	cand := core.TimeCandidate{Start: time.Date(2026, 3, 4, 14, 0, 0, 0, loc), Duration: time.Hour}
	res, err := c.Check(context.Background(), cand)
	require.NoError(t, err)
	assert.Len(t, res.Alternatives, 1)
}

func TestCheck_FreeBusyError(t *testing.T) {
	cal := &fakeCalendar{err: errors.New("calendar unavailable")}
	c := NewChecker(cal)

	cand := core.TimeCandidate{Start: time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC), Duration: time.Hour}
	_, err := c.Check(context.Background(), cand)
	assert.Error(t, err)
}
