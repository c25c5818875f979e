// Package normalize turns the loosely structured events emitted by source
// adapters into canonical records, or into tagged rejections.
package normalize

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/dates"
	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
	"github.com/trouver-une-fresque/fresk-scraper/internal/keywords"
	"github.com/trouver-une-fresque/fresk-scraper/internal/language"
	"github.com/trouver-une-fresque/fresk-scraper/internal/location"
)

// RawEvent is what an adapter knows about one event. Fields an adapter
// cannot fill stay zero; the normalizer decides what that means.
type RawEvent struct {
	SourceID   string
	EventID    string
	IDOverride string // replaces SourceID in the record id and source_id

	Title       string
	Description string
	TypeLabel   string // extra text for training detection (workshop type)
	KidsText    string // text searched for kids keywords, usually the description

	// Either Start/End are set, or DateText (plus an optional DateHint)
	// is parsed.
	Start    time.Time
	End      time.Time
	DateText string
	DateHint string

	Online        *bool
	OnlineSignals []string // format labels classified when Online is nil
	LocationText  string

	SoldOut  bool
	Canceled bool
	Expired  bool
	GiftCard bool

	TicketsLink string
	DetailLink  string // ticket fallback once the description yields nothing
	SourceLink  string

	// Err is set by adapters that found the event but failed to read it.
	Err error

	LanguageCode       string // per-event override, e.g. from a language label
	SourceLanguage     string // configured on the source descriptor
	SkipPast           bool
	RequireDescription bool
}

// Bool returns a pointer to v, for RawEvent.Online.
func Bool(v bool) *bool { return &v }

// SoldOutPolicy says what happens to sold-out sessions.
type SoldOutPolicy string

const (
	SoldOutKeep   SoldOutPolicy = "keep"
	SoldOutReject SoldOutPolicy = "reject"
)

// Policy holds the run-wide acceptance rules.
type Policy struct {
	MaxDuration   time.Duration
	SoldOut       SoldOutPolicy
	RejectPlenary bool
}

// DefaultPolicy keeps sold-out sessions and rejects anything over a day.
func DefaultPolicy() Policy {
	return Policy{
		MaxDuration:   24 * time.Hour,
		SoldOut:       SoldOutKeep,
		RejectPlenary: true,
	}
}

// Normalizer assembles records. It holds no per-event state: the same
// RawEvent normalized twice gives equal results.
type Normalizer struct {
	dates    *dates.Parser
	resolver location.Resolver
	detector *language.Detector
	policy   Policy
	now      func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock sets the reference time of the past-start check.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// New creates a Normalizer.
func New(parser *dates.Parser, resolver location.Resolver, detector *language.Detector, policy Policy, opts ...Option) *Normalizer {
	n := &Normalizer{
		dates:    parser,
		resolver: resolver,
		detector: detector,
		policy:   policy,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns a record or the reason the event was rejected. Exactly
// one of the results is non-nil.
func (n *Normalizer) Normalize(ctx context.Context, raw RawEvent) (*event.Record, *Rejection) {
	rec, rej := n.normalize(ctx, raw)
	if rej != nil {
		zap.L().Info("rejecting record",
			zap.String("source_id", raw.SourceID),
			zap.String("event_id", raw.EventID),
			zap.String("title", raw.Title),
			zap.String("link", rej.Link),
			zap.String("reason", string(rej.Reason)),
			zap.Error(rej.Err),
		)
		return nil, rej
	}
	zap.L().Info("accepting record", zap.Any("record", rec))
	return rec, nil
}

func (n *Normalizer) normalize(ctx context.Context, raw RawEvent) (*event.Record, *Rejection) {
	reject := func(reason Reason, err error) (*event.Record, *Rejection) {
		return nil, newRejection(raw, reason, err)
	}

	if raw.Err != nil {
		return reject(reasonFor(raw.Err), raw.Err)
	}

	title := strings.TrimSpace(raw.Title)
	switch {
	case strings.TrimSpace(raw.SourceID) == "" && raw.IDOverride == "":
		return reject(ReasonMissingField, &RequiredFieldMissingError{Field: "source_id"})
	case strings.TrimSpace(raw.EventID) == "":
		return reject(ReasonMissingField, &RequiredFieldMissingError{Field: "event_id"})
	case title == "":
		return reject(ReasonMissingField, &RequiredFieldMissingError{Field: "title"})
	case raw.Canceled:
		return reject(ReasonCanceled, nil)
	case raw.Expired:
		return reject(ReasonExpired, nil)
	case raw.GiftCard || keywords.IsGiftCard(title):
		return reject(ReasonGiftCard, nil)
	case n.policy.RejectPlenary && keywords.IsPlenary(title):
		return reject(ReasonPlenary, nil)
	case raw.SoldOut && n.policy.SoldOut == SoldOutReject:
		return reject(ReasonSoldOut, nil)
	}

	// 1. Dates.
	start, end, err := n.times(raw)
	if err != nil {
		return reject(reasonFor(err), err)
	}
	if !end.After(start) {
		return reject(ReasonEndBeforeStart, nil)
	}
	if n.policy.MaxDuration > 0 && end.Sub(start) > n.policy.MaxDuration {
		return reject(ReasonDurationTooLong, nil)
	}
	if raw.SkipPast && start.Before(n.now()) {
		return reject(ReasonInThePast, nil)
	}

	// 2. Online or in person.
	online, ok := onlineStatus(raw)
	if !ok {
		return reject(ReasonOnlineUnknown, nil)
	}

	// 3. Location, all or nothing.
	var addr location.Address
	fullLocation := ""
	if !online {
		text := strings.TrimSpace(raw.LocationText)
		if text == "" {
			return reject(ReasonMissingLocation, &RequiredFieldMissingError{Field: "location"})
		}
		// The resolver sees the lines as written so it can retry without a
		// leading venue name.
		fullLocation = singleLine(text)
		resolved, err := n.resolver.Resolve(ctx, text)
		if err != nil {
			return reject(ReasonAddressUnresolvable, err)
		}
		if !resolved.Complete() {
			return reject(ReasonAddressUnresolvable, &location.UnresolvableError{Text: fullLocation, Reason: "incomplete address"})
		}
		addr = *resolved
	}

	// 4. Ticketing link.
	tickets := strings.TrimSpace(raw.TicketsLink)
	if tickets == "" {
		tickets = ExtractTicketingURL(raw.Description)
	}
	if tickets == "" {
		tickets = strings.TrimSpace(raw.DetailLink)
	}
	if tickets == "" {
		return reject(ReasonMissingTicketLink, &RequiredFieldMissingError{Field: "tickets_link"})
	}
	sourceLink := strings.TrimSpace(raw.SourceLink)
	if sourceLink == "" {
		sourceLink = tickets
	}

	description := strings.TrimSpace(raw.Description)
	if raw.RequireDescription && description == "" {
		return reject(ReasonMissingField, &RequiredFieldMissingError{Field: "description"})
	}

	// 5. Language.
	lang := n.language(raw, title, description)

	// 6. Identity.
	sourceID := strings.TrimSpace(raw.SourceID)
	if raw.IDOverride != "" {
		sourceID = raw.IDOverride
	}

	flags := keywords.Classify(title+" "+raw.TypeLabel, raw.KidsText)

	rec := &event.Record{
		ID:           event.ComposeID(sourceID, strings.TrimSpace(raw.EventID)),
		SourceID:     sourceID,
		Title:        title,
		StartAt:      event.CivilTime{Time: start},
		EndAt:        event.CivilTime{Time: end},
		FullLocation: fullLocation,
		Address:      addr,
		LanguageCode: lang,
		Online:       online,
		Training:     flags.Training,
		SoldOut:      raw.SoldOut,
		Kids:         flags.Kids,
		SourceLink:   sourceLink,
		TicketsLink:  tickets,
		Description:  description,
	}
	if err := rec.Validate(); err != nil {
		return reject(ReasonInvalid, err)
	}
	return rec, nil
}

func (n *Normalizer) times(raw RawEvent) (time.Time, time.Time, error) {
	if !raw.Start.IsZero() {
		end := raw.End
		if end.IsZero() {
			end = raw.Start.Add(dates.DefaultDuration)
		}
		return raw.Start, end, nil
	}
	if strings.TrimSpace(raw.DateText) == "" {
		return time.Time{}, time.Time{}, &RequiredFieldMissingError{Field: "date"}
	}
	return n.dates.ParsePhrase(dates.Phrase{Text: raw.DateText, Hint: raw.DateHint})
}

// singleLine joins the lines of a multi-line location with commas.
func singleLine(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, strings.TrimRight(l, ","))
		}
	}
	return strings.Join(out, ", ")
}

func onlineStatus(raw RawEvent) (bool, bool) {
	if raw.Online != nil {
		return *raw.Online, true
	}
	known := false
	for _, s := range raw.OnlineSignals {
		if strings.TrimSpace(s) == "" {
			continue
		}
		known = true
		if keywords.IsOnline(s) {
			return true, true
		}
	}
	return false, known
}

func (n *Normalizer) language(raw RawEvent, title, description string) *string {
	for _, code := range []string{raw.LanguageCode, raw.SourceLanguage} {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if !n.detector.Supported(code) {
			zap.L().Warn("ignoring unsupported language override",
				zap.String("source_id", raw.SourceID),
				zap.String("code", code),
			)
			continue
		}
		return &code
	}
	return n.detector.Detect(title, description)
}
