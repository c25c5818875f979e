package dates

import (
	"fmt"
	"strings"
)

// FormatError reports a phrase no grammar could turn into a valid date range.
type FormatError struct {
	Phrase string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("dates: unrecognized date format %q", e.Phrase)
	}
	return fmt.Sprintf("dates: bad date format %q: %s", e.Phrase, e.Reason)
}

// TimezoneMismatchError reports a phrase whose explicit offset is not one
// the run operates in. Offset is a normalized "+5:30" style offset, or the
// zone abbreviation as written when it maps to no known offset.
type TimezoneMismatchError struct {
	Phrase string
	Offset string
}

func (e *TimezoneMismatchError) Error() string {
	zone := e.Offset
	if strings.HasPrefix(zone, "+") || strings.HasPrefix(zone, "-") {
		zone = "UTC" + zone
	}
	return fmt.Sprintf("dates: unexpected timezone %s in %q", zone, e.Phrase)
}

func formatErr(phrase, reason string, args ...any) error {
	return &FormatError{Phrase: phrase, Reason: fmt.Sprintf(reason, args...)}
}
