package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/mailflow/core"
)

// ordinalPhrasePattern matches selection phrasing like "the second option"
// or "third slot". A bare ordinal ("first of all") does not count.
var ordinalPhrasePattern = regexp.MustCompile(`(?i)\b(first|second|third|fourth|fifth|1st|2nd|3rd|4th|5th)\s+(option|choice|slot|time|one)\b`)

// optionNumberPattern matches phrasing like "option 2" or "option #1".
var optionNumberPattern = regexp.MustCompile(`(?i)\boption\s*#?\s*([1-5])\b`)

var ordinalIndex = map[string]int{
	"first": 0, "1st": 0,
	"second": 1, "2nd": 1,
	"third": 2, "3rd": 2,
	"fourth": 3, "4th": 3,
	"fifth": 4, "5th": 4,
}

// ConfirmationDetector interprets reply text that accepts a meeting time.
// Two strategies are tried in order: ordinal selection against the
// previously suggested list, then an explicitly restated time run through
// the datetime extractor. Generic affirmations alone ("yes", "sounds good")
// never confirm; the detector reports no match and the caller proceeds to
// triage instead of guessing.
type ConfirmationDetector struct {
	extractor *Extractor
}

// NewConfirmationDetector creates a detector sharing the extractor's
// timezone and duration settings.
func NewConfirmationDetector(extractor *Extractor) *ConfirmationDetector {
	return &ConfirmationDetector{extractor: extractor}
}

// Detect returns the confirmed TimeCandidate, or core.ErrNoMatch when the
// reply does not resolvably accept one. suggested is the ordered list of
// previously proposed times from the thread, possibly empty.
func (d *ConfirmationDetector) Detect(text string, suggested []core.TimeCandidate, now time.Time) (core.TimeCandidate, error) {
	if idx, ok := selectionIndex(text); ok && idx < len(suggested) {
		return suggested[idx], nil
	}
	return d.extractor.Extract(text, now)
}

// selectionIndex extracts a zero-based index from selection phrasing.
func selectionIndex(text string) (int, bool) {
	if m := ordinalPhrasePattern.FindStringSubmatch(text); m != nil {
		if idx, ok := ordinalIndex[strings.ToLower(m[1])]; ok {
			return idx, true
		}
	}
	if m := optionNumberPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 {
			return n - 1, true
		}
	}
	return 0, false
}
