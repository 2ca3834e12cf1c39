package timeparse

import (
	"regexp"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/hupe1980/mailflow/core"
)

// DefaultMeetingDuration is assumed for extracted candidates; the source
// text rarely states one.
const DefaultMeetingDuration = 60 * time.Minute

// DefaultGraceWindow is how far in the past a parsed instant may fall before
// it is rejected as stale.
const DefaultGraceWindow = 5 * time.Minute

// dateHintPattern decides whether a matched expression carried an explicit
// date component. Matches without one are lone times of day and roll forward
// to their nearest future occurrence instead of being rejected as past.
var dateHintPattern = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|monday|tuesday|wednesday|thursday|friday|saturday|sunday|january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept?|oct|nov|dec|next|\d{1,2}[/-]\d{1,2}|\d{4})\b`)

// Options configure an Extractor.
type Options struct {
	// Duration assigned to every extracted candidate.
	Duration time.Duration
	// Grace is the past tolerance before a candidate is rejected.
	Grace time.Duration
}

// Extractor parses natural-language date/time expressions into
// TimeCandidates. All results are resolved in the extractor's location;
// relative expressions resolve against the reference instant passed to
// Extract.
type Extractor struct {
	loc    *time.Location
	parser *when.Parser
	opts   Options
}

// NewExtractor creates an Extractor resolving times in loc.
func NewExtractor(loc *time.Location, optFns ...func(o *Options)) *Extractor {
	opts := Options{
		Duration: DefaultMeetingDuration,
		Grace:    DefaultGraceWindow,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)

	return &Extractor{loc: loc, parser: p, opts: opts}
}

// Location returns the extractor's resolution timezone.
func (e *Extractor) Location() *time.Location { return e.loc }

// Extract returns the first unambiguous date/time expression in text as a
// TimeCandidate, or core.ErrNoMatch when none is found. Candidates more than
// the grace window in the past are rejected as no-match rather than guessed
// forward, except lone times of day, which default to their nearest future
// occurrence.
func (e *Extractor) Extract(text string, now time.Time) (core.TimeCandidate, error) {
	base := now.In(e.loc)

	r, err := e.parser.Parse(text, base)
	if err != nil || r == nil {
		return core.TimeCandidate{}, core.ErrNoMatch
	}

	start := r.Time.In(e.loc)
	cutoff := now.Add(-e.opts.Grace)

	if start.Before(cutoff) {
		if dateHintPattern.MatchString(r.Text) {
			// Explicit past date: stale request, not a scheduling ask.
			return core.TimeCandidate{}, core.ErrNoMatch
		}
		// date-less time of day: same clock time on the next day
		start = start.Add(24 * time.Hour)
		if start.Before(cutoff) {
			return core.TimeCandidate{}, core.ErrNoMatch
		}
	}

	return core.TimeCandidate{Start: start, Duration: e.opts.Duration}, nil
}

// fullDatePattern matches spelled-out suggestions as the alternatives
// replies format them, e.g. "August 21, 2026 at 4:30 PM".
var fullDatePattern = regexp.MustCompile(`(?i)\b([a-z]+\s+\d{1,2},\s+\d{4}\s+at\s+\d{1,2}:\d{2}\s*[ap]m)\b`)

// clockPattern matches bare clock times, e.g. "4:30 PM".
var clockPattern = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*([ap])m?\b`)

// ExtractSuggestedTimes pulls previously suggested meeting times out of
// quoted thread text, preserving document order and dropping duplicates.
// Spelled-out date+time suggestions are preferred; a bare clock time is
// resolved to its nearest future occurrence.
func (e *Extractor) ExtractSuggestedTimes(text string, now time.Time) []core.TimeCandidate {
	var out []core.TimeCandidate
	seen := map[time.Time]bool{}

	add := func(t time.Time) {
		if seen[t] {
			return
		}
		seen[t] = true
		out = append(out, core.TimeCandidate{Start: t, Duration: e.opts.Duration})
	}

	consumed := make([]bool, len(text))

	for _, idx := range fullDatePattern.FindAllStringIndex(text, -1) {
		match := text[idx[0]:idx[1]]
		t, err := time.ParseInLocation("January 2, 2006 at 3:04 PM", normalizeMeridiem(match), e.loc)
		if err != nil {
			continue
		}
		add(t)
		for i := idx[0]; i < idx[1]; i++ {
			consumed[i] = true
		}
	}

	for _, idx := range clockPattern.FindAllStringSubmatchIndex(text, -1) {
		if consumed[idx[0]] {
			continue
		}
		match := text[idx[0]:idx[1]]
		t, ok := e.nextClockOccurrence(match, now)
		if ok {
			add(t)
		}
	}

	return out
}

var meridiemFix = regexp.MustCompile(`(?i)([ap])m?\b`)

// normalizeMeridiem upper-cases am/pm markers and restores a trailing M so
// time.Parse accepts casual forms like "4:30pm" and "4:30 p".
func normalizeMeridiem(s string) string {
	return meridiemFix.ReplaceAllStringFunc(s, func(m string) string {
		if m[0] == 'a' || m[0] == 'A' {
			return "AM"
		}
		return "PM"
	})
}

// nextClockOccurrence resolves a bare "H:MM am/pm" to the nearest future
// instant with that wall-clock time.
func (e *Extractor) nextClockOccurrence(clock string, now time.Time) (time.Time, bool) {
	m := clockPattern.FindStringSubmatch(clock)
	if m == nil {
		return time.Time{}, false
	}
	hour, minute := atoi(m[1]), atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return time.Time{}, false
	}
	if m[3] == "p" || m[3] == "P" {
		if hour != 12 {
			hour += 12
		}
	} else if hour == 12 {
		hour = 0
	}

	base := now.In(e.loc)
	t := time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, e.loc)
	if !t.After(base) {
		t = t.Add(24 * time.Hour)
	}
	return t, true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
