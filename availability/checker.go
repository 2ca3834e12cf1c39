// Package availability answers whether a requested meeting window is free on
// the user's primary calendar and, when it is not, proposes alternative
// slots by probing forward within business hours.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/mailflow/core"
	"github.com/hupe1980/mailflow/logging"
)

// Options configure a Checker.
type Options struct {
	// MaxAlternatives caps the number of proposed slots when busy.
	MaxAlternatives int
	// Step is the probe increment between candidate slots.
	Step time.Duration
	// BusinessStartHour and BusinessEndHour bound proposed slots (local
	// wall-clock hours). A slot must end at or before BusinessEndHour.
	BusinessStartHour int
	BusinessEndHour   int
	// HorizonBusinessDays bounds how many business days forward the probe
	// may reach past the requested day.
	HorizonBusinessDays int
	// Logger receives probe diagnostics.
	Logger logging.Logger
}

// Checker evaluates TimeCandidates against the calendar collaborator.
type Checker struct {
	cal  core.Calendar
	opts Options
}

// NewChecker creates a Checker for cal.
func NewChecker(cal core.Calendar, optFns ...func(o *Options)) *Checker {
	opts := Options{
		MaxAlternatives:     3,
		Step:                30 * time.Minute,
		BusinessStartHour:   9,
		BusinessEndHour:     17,
		HorizonBusinessDays: 5,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Checker{cal: cal, opts: opts}
}

// Check queries free/busy for exactly the candidate's window. When the
// window is busy it probes forward in fixed steps within business hours of
// the same and following business days, collecting the first K free slots in
// strictly increasing time order. The alternatives list is empty only when
// no free slot exists within the horizon; callers must still reply rather
// than silently dropping the email.
func (c *Checker) Check(ctx context.Context, cand core.TimeCandidate) (core.Availability, error) {
	free, err := c.cal.FreeBusy(ctx, cand.Start, cand.End())
	if err != nil {
		return core.Availability{}, fmt.Errorf("free/busy query: %w", err)
	}
	if free {
		return core.Availability{Status: core.Free}, nil
	}

	alts, err := c.findAlternatives(ctx, cand)
	if err != nil {
		return core.Availability{}, err
	}
	return core.Availability{Status: core.Busy, Alternatives: alts}, nil
}

func (c *Checker) findAlternatives(ctx context.Context, cand core.TimeCandidate) ([]core.TimeCandidate, error) {
	var alts []core.TimeCandidate

	probe := cand.Start.Add(c.opts.Step)
	deadline := c.horizonEnd(cand.Start)

	for probe.Before(deadline) && len(alts) < c.opts.MaxAlternatives {
		probe = c.clampToBusinessHours(probe, cand.Duration)
		if !probe.Before(deadline) {
			break
		}

		end := probe.Add(cand.Duration)
		free, err := c.cal.FreeBusy(ctx, probe, end)
		if err != nil {
			return nil, fmt.Errorf("free/busy probe: %w", err)
		}
		if free {
			alts = append(alts, core.TimeCandidate{Start: probe, Duration: cand.Duration})
		}
		probe = probe.Add(c.opts.Step)
	}

	c.opts.Logger.Debug("availability probe finished", "requested", cand.Start, "alternatives", len(alts))
	return alts, nil
}

// clampToBusinessHours moves a probe instant forward to the next instant at
// which a meeting may start: within [start, end-duration] hours on a
// weekday. The clamp never moves time backwards.
func (c *Checker) clampToBusinessHours(t time.Time, dur time.Duration) time.Time {
	for {
		t = skipWeekend(t)

		dayStart := time.Date(t.Year(), t.Month(), t.Day(), c.opts.BusinessStartHour, 0, 0, 0, t.Location())
		dayEnd := time.Date(t.Year(), t.Month(), t.Day(), c.opts.BusinessEndHour, 0, 0, 0, t.Location())

		if t.Before(dayStart) {
			return dayStart
		}
		if t.Add(dur).After(dayEnd) {
			t = dayStart.AddDate(0, 0, 1)
			continue
		}
		return t
	}
}

// horizonEnd returns the exclusive probe deadline: end of business on the
// last business day within the horizon.
func (c *Checker) horizonEnd(from time.Time) time.Time {
	day := skipWeekend(from)
	for i := 0; i < c.opts.HorizonBusinessDays; i++ {
		day = skipWeekend(day.AddDate(0, 0, 1))
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.opts.BusinessEndHour, 0, 0, 0, from.Location())
}

func skipWeekend(t time.Time) time.Time {
	for t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
	}
	return t
}
