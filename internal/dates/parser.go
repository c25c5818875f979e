package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultDuration is applied when a phrase carries only a start time.
const DefaultDuration = 3 * time.Hour

// DefaultAllowedOffsets are the UTC offsets of mainland France.
var DefaultAllowedOffsets = []string{"+1", "+2"}

// Phrase is a raw date text plus an optional machine-readable ISO date
// (for example the datetime attribute of a <time> element).
type Phrase struct {
	Text string
	Hint string
}

// Match is the outcome of a successful parse.
type Match struct {
	Grammar string
	Start   time.Time
	End     time.Time
}

// Parser turns phrases into civil start/end times.
type Parser struct {
	now             func() time.Time
	loc             *time.Location
	allowed         map[string]bool
	defaultDuration time.Duration
	grammars        []Grammar
}

// Option configures a Parser.
type Option func(*Parser)

// WithClock sets the reference time used for year inference.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// WithLocation sets the zone civil times are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) { p.loc = loc }
}

// WithAllowedOffsets replaces the timezone allowlist. Offsets are written
// "+1", "+02" or "+1:00".
func WithAllowedOffsets(offsets []string) Option {
	return func(p *Parser) {
		p.allowed = make(map[string]bool, len(offsets))
		for _, o := range offsets {
			if n, ok := normalizeOffset(o); ok {
				p.allowed[n] = true
			}
		}
	}
}

// WithDefaultDuration sets the duration used when no end time is given.
func WithDefaultDuration(d time.Duration) Option {
	return func(p *Parser) { p.defaultDuration = d }
}

// NewParser creates a Parser with the built-in grammars.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		now:             time.Now,
		loc:             time.Local,
		defaultDuration: DefaultDuration,
		grammars:        grammars,
	}
	WithAllowedOffsets(DefaultAllowedOffsets)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse parses text with the default parser.
func Parse(text string) (time.Time, time.Time, error) {
	return defaultParser.Parse(text)
}

// GrammarNames lists the grammars in evaluation order.
func (p *Parser) GrammarNames() []string {
	names := make([]string, len(p.grammars))
	for i, g := range p.grammars {
		names[i] = g.Name
	}
	return names
}

// Parse returns the start and end of the range described by text.
func (p *Parser) Parse(text string) (time.Time, time.Time, error) {
	m, err := p.Match(text)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return m.Start, m.End, nil
}

// Match runs the grammars in order and reports which one accepted text.
func (p *Parser) Match(text string) (*Match, error) {
	phrase := clean(text)
	if phrase == "" {
		return nil, &FormatError{Phrase: text, Reason: "empty"}
	}
	for _, g := range p.grammars {
		sub := g.Pattern.FindStringSubmatch(phrase)
		if sub == nil {
			continue
		}
		start, end, err := g.Extract(p, phrase, sub)
		if err != nil {
			return nil, err
		}
		return &Match{Grammar: g.Name, Start: start, End: end}, nil
	}
	return nil, &FormatError{Phrase: text}
}

// ParsePhrase prefers combining a machine-readable date hint with the time
// range found in the text. Without a usable hint the whole text goes
// through Parse.
func (p *Parser) ParsePhrase(ph Phrase) (time.Time, time.Time, error) {
	if ph.Hint != "" {
		if day, ok := p.parseHint(ph.Hint); ok {
			text := clean(ph.Text)
			if sub := timeRangePattern.FindStringSubmatch(text); sub != nil {
				return p.combine(text, day, sub)
			}
		}
	}
	return p.Parse(ph.Text)
}

func (p *Parser) parseHint(hint string) (time.Time, bool) {
	hint = strings.TrimSpace(hint)
	if len(hint) > 10 {
		hint = hint[:10]
	}
	t, err := time.ParseInLocation("2006-01-02", hint, p.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// combine builds the range from a hinted day and a timeRangePattern match.
func (p *Parser) combine(phrase string, day time.Time, sub []string) (time.Time, time.Time, error) {
	if sub[7] != "" {
		if err := p.checkOffset(phrase, sub[7]); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	sh, sm, err := clock(phrase, sub[1], sub[2], sub[3])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	eh, em, err := clock(phrase, sub[4], sub[5], sub[6])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, sh, sm, 0, 0, p.loc), time.Date(y, mo, d, eh, em, 0, 0, p.loc), nil
}

// civil builds a wall-clock time and rejects dates time.Date would normalize
// (31 February becoming 3 March).
func (p *Parser) civil(phrase string, year int, month time.Month, day, hour, minute int) (time.Time, error) {
	t := time.Date(year, month, day, hour, minute, 0, 0, p.loc)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, formatErr(phrase, "no day %d in %s %d", day, month, year)
	}
	return t, nil
}

// inferYear picks the nearest occurrence of month/day that is not before
// today. It never rolls backward.
func (p *Parser) inferYear(month time.Month, day int) int {
	now := p.now().In(p.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.loc)
	candidate := time.Date(now.Year(), month, day, 0, 0, 0, 0, p.loc)
	if candidate.Before(today) {
		return now.Year() + 1
	}
	return now.Year()
}

func (p *Parser) year(phrase, s string, month time.Month, day int) (int, error) {
	if s == "" {
		return p.inferYear(month, day), nil
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, formatErr(phrase, "bad year %q", s)
	}
	return y, nil
}

func (p *Parser) checkOffset(phrase, offset string) error {
	n, ok := normalizeOffset(offset)
	if !ok {
		return formatErr(phrase, "bad offset %q", offset)
	}
	if !p.allowed[n] {
		return &TimezoneMismatchError{Phrase: phrase, Offset: n}
	}
	return nil
}

// normalizeOffset maps "+01", "+1:00" and "+1" to "+1", and keeps
// non-zero minutes: "+0530" and "+5:30" both become "+5:30".
func normalizeOffset(s string) (string, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "UTC"))
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return "", false
	}
	sign, digits := s[:1], s[1:]
	hours, minutes := digits, ""
	if i := strings.Index(digits, ":"); i >= 0 {
		hours, minutes = digits[:i], digits[i+1:]
		if len(minutes) != 2 {
			return "", false
		}
	} else if len(digits) > 2 {
		hours, minutes = digits[:len(digits)-2], digits[len(digits)-2:]
	}
	h, err := strconv.Atoi(hours)
	if err != nil || len(hours) > 2 || h > 14 || (sign == "-" && h > 12) {
		return "", false
	}
	m := 0
	if minutes != "" {
		if m, err = strconv.Atoi(minutes); err != nil || m < 0 || m > 59 {
			return "", false
		}
	}
	if h == 0 && m == 0 {
		return "+0", true
	}
	if m == 0 {
		return fmt.Sprintf("%s%d", sign, h), true
	}
	return fmt.Sprintf("%s%d:%02d", sign, h, m), true
}

// clock converts an hour, optional minutes and optional am/pm marker to a
// 24-hour time. 12am is midnight, 12pm is noon, 1-11pm add twelve.
func clock(phrase, hour, minute, marker string) (int, int, error) {
	h, err := strconv.Atoi(hour)
	if err != nil {
		return 0, 0, formatErr(phrase, "bad hour %q", hour)
	}
	m := 0
	if minute != "" {
		if m, err = strconv.Atoi(minute); err != nil {
			return 0, 0, formatErr(phrase, "bad minute %q", minute)
		}
	}
	if m < 0 || m > 59 {
		return 0, 0, formatErr(phrase, "minute %d out of range", m)
	}
	switch strings.ToLower(strings.ReplaceAll(marker, ".", "")) {
	case "":
		if h < 0 || h > 23 {
			return 0, 0, formatErr(phrase, "hour %d out of range", h)
		}
	case "am":
		if h < 1 || h > 12 {
			return 0, 0, formatErr(phrase, "hour %d out of range for am", h)
		}
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 1 || h > 12 {
			return 0, 0, formatErr(phrase, "hour %d out of range for pm", h)
		}
		if h != 12 {
			h += 12
		}
	default:
		return 0, 0, formatErr(phrase, "bad clock marker %q", marker)
	}
	return h, m, nil
}

// clean normalizes Unicode composition and folds the non-breaking spaces
// French typography puts around times and colons.
func clean(text string) string {
	text = norm.NFC.String(text)
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f', '\u2009':
			return ' '
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
