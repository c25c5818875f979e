package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trouver-une-fresque/fresk-scraper/internal/dates"
	"github.com/trouver-une-fresque/fresk-scraper/internal/language"
	"github.com/trouver-une-fresque/fresk-scraper/internal/location"
)

// Reason tags why an event did not become a record.
type Reason string

const (
	ReasonBadDate             Reason = "bad_date"
	ReasonDifferentTimezone   Reason = "different_timezone"
	ReasonDurationTooLong     Reason = "duration_too_long"
	ReasonEndBeforeStart      Reason = "end_before_start"
	ReasonInThePast           Reason = "in_the_past"
	ReasonOnlineUnknown       Reason = "online_unknown"
	ReasonMissingLocation     Reason = "missing_location"
	ReasonAddressUnresolvable Reason = "address_unresolvable"
	ReasonMissingTicketLink   Reason = "missing_ticket_link"
	ReasonMissingField        Reason = "missing_field"
	ReasonUnknownLanguage     Reason = "unrecognized_language"
	ReasonSoldOut             Reason = "sold_out"
	ReasonCanceled            Reason = "canceled"
	ReasonExpired             Reason = "expired"
	ReasonPlenary             Reason = "plenary"
	ReasonGiftCard            Reason = "gift_card"
	ReasonFilteredOut         Reason = "filtered_out"
	ReasonDuplicate           Reason = "duplicate"
	ReasonInvalid             Reason = "invalid"
	ReasonUnexpected          Reason = "unexpected"
)

// ErrFilteredOut marks an event an adapter skipped because it does not
// belong to the source (shared listing pages).
var ErrFilteredOut = errors.New("normalize: filtered out by source keyword")

// Rejection records one discarded event.
type Rejection struct {
	SourceID string `json:"source_id"`
	EventID  string `json:"event_id"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Reason   Reason `json:"reason"`
	Err      error  `json:"-"`
	Detail   string `json:"detail,omitempty"`
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("rejected %s-%s (%s): %v", r.SourceID, r.EventID, r.Reason, r.Err)
	}
	return fmt.Sprintf("rejected %s-%s (%s)", r.SourceID, r.EventID, r.Reason)
}

func (r *Rejection) Unwrap() error { return r.Err }

// NewRejection builds a rejection for an event that never reached Normalize
// (filtered or failed inside an adapter or the orchestrator).
func NewRejection(raw RawEvent, reason Reason, err error) *Rejection {
	return newRejection(raw, reason, err)
}

func newRejection(raw RawEvent, reason Reason, err error) *Rejection {
	link := firstNonEmpty(raw.TicketsLink, raw.SourceLink, raw.DetailLink)
	r := &Rejection{
		SourceID: raw.SourceID,
		EventID:  raw.EventID,
		Title:    raw.Title,
		Link:     link,
		Reason:   reason,
		Err:      err,
	}
	if err != nil {
		r.Detail = err.Error()
	}
	return r
}

// RequiredFieldMissingError reports an event lacking a field every record needs.
type RequiredFieldMissingError struct {
	Field string
}

func (e *RequiredFieldMissingError) Error() string {
	return fmt.Sprintf("normalize: required field %s missing", e.Field)
}

// Summary counts rejections per reason.
type Summary map[Reason]int

// Summarize counts rejections per reason.
func Summarize(rejections []*Rejection) Summary {
	s := make(Summary)
	for _, r := range rejections {
		s[r.Reason]++
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// reasonFor maps the typed errors of the pipeline to a rejection reason.
func reasonFor(err error) Reason {
	var (
		format   *dates.FormatError
		tz       *dates.TimezoneMismatchError
		lang     *language.UnrecognizedLanguageError
		addr     *location.UnresolvableError
		required *RequiredFieldMissingError
	)
	switch {
	case errors.Is(err, ErrFilteredOut):
		return ReasonFilteredOut
	case errors.As(err, &tz):
		return ReasonDifferentTimezone
	case errors.As(err, &format):
		return ReasonBadDate
	case errors.As(err, &lang):
		return ReasonUnknownLanguage
	case errors.As(err, &addr):
		return ReasonAddressUnresolvable
	case errors.As(err, &required):
		return ReasonMissingField
	}
	return ReasonUnexpected
}
