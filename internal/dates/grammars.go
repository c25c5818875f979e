package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Grammar recognizes one family of date phrases. Pattern is anchored at the
// start of the cleaned phrase; Extract receives its submatches.
type Grammar struct {
	Name    string
	Pattern *regexp.Regexp
	Extract func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error)
}

const (
	englishDate = `((?:[A-Za-z]+,?\s+)?[A-Za-z]+\.?\s+\d{1,2},\s*\d{4})`
	clock12     = `(\d{1,2}):(\d{2})(?:\s*([AaPp][Mm]))?`
	dash        = `\s*[-–—]\s*`
)

// timeRangePattern finds a time-only range such as "de 9am à 12pm UTC+1"
// for the hinted-date path.
var timeRangePattern = regexp.MustCompile(`(?i)de\s+(\d{1,2})(?:[:h](\d{2}))?\s*([ap]m)?\s+à\s+(\d{1,2})(?:[:h](\d{2}))?\s*([ap]m)?(?:\s+UTC\s?([+-]\d{1,2}(?::?\d{2})?))?`)

// grammars is evaluated in order. The generic "<date> at <time>" form must
// come after both "from ... to" and "at ... to ... at" forms, and the
// yearless Eventbrite collection form comes last.
var grammars = []Grammar{
	{
		// June 03, 2025, from 05:30pm to 09:30pm (Paris time)
		Name:    "fdc-en",
		Pattern: regexp.MustCompile(`(?i)^([a-z]+)\s+(\d{1,2}),\s+(\d{4}),\s+from\s+(\d{1,2}):(\d{2})\s*([ap]m)\s+to\s+(\d{1,2}):(\d{2})\s*([ap]m)\s+\(.*time\)`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			month, ok := englishMonth(sub[1])
			if !ok {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown month %q", sub[1])
			}
			return p.sameDay(phrase, sub[3], month, sub[2], sub[4:7], sub[7:10])
		},
	},
	{
		// Thu Oct 19, 2023 from 01:00 PM to 02:00 PM
		Name:    "billetweb-range",
		Pattern: regexp.MustCompile(`^` + englishDate + `\s+from\s+` + clock12 + `\s+to\s+` + clock12 + `$`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			day, err := englishDay(phrase, sub[1])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			start, err := p.at(phrase, day, sub[2:5])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			end, err := p.at(phrase, day, sub[5:8])
			return start, end, err
		},
	},
	{
		// Thu Oct 19, 2023 at 01:00 PM to Sat Feb 24, 2024 at 02:00 PM
		Name:    "billetweb-span",
		Pattern: regexp.MustCompile(`^` + englishDate + `\s+at\s+` + clock12 + `\s+to\s+` + englishDate + `\s+at\s+` + clock12 + `$`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			startDay, err := englishDay(phrase, sub[1])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			endDay, err := englishDay(phrase, sub[5])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			start, err := p.at(phrase, startDay, sub[2:5])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			end, err := p.at(phrase, endDay, sub[6:9])
			return start, end, err
		},
	},
	{
		// March 7, 2025 at 10:00 AM
		Name:    "billetweb-at",
		Pattern: regexp.MustCompile(`^` + englishDate + `\s+at\s+` + clock12 + `$`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			day, err := englishDay(phrase, sub[1])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			start, err := p.at(phrase, day, sub[2:5])
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			return start, start.Add(p.defaultDuration), nil
		},
	},
	{
		// ven. 11 avr. 2025 14:00 - 17:30 CEST
		Name:    "eventbrite-fr",
		Pattern: regexp.MustCompile(`^(\p{L}+)\.?\s+(\d{1,2})\s+(\p{L}+)\.?\s+(\d{4})\s+(\d{1,2}):(\d{2})` + dash + `(\d{1,2}):(\d{2})(?:\s+([A-Za-z]{3,4}))?$`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			if !isFrenchWeekday(sub[1]) {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown weekday %q", sub[1])
			}
			if sub[9] != "" {
				offset, ok := zoneAbbreviations[strings.ToUpper(sub[9])]
				if !ok {
					return time.Time{}, time.Time{}, &TimezoneMismatchError{Phrase: phrase, Offset: strings.ToUpper(sub[9])}
				}
				if err := p.checkOffset(phrase, offset); err != nil {
					return time.Time{}, time.Time{}, err
				}
			}
			month, ok := frenchMonth(sub[3])
			if !ok {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown month %q", sub[3])
			}
			return p.sameDay(phrase, sub[4], month, sub[2], []string{sub[5], sub[6], ""}, []string{sub[7], sub[8], ""})
		},
	},
	{
		// 16 mai 2025, de 18h30 à 21h30 (heure de Paris)
		Name:    "fdc-fr",
		Pattern: regexp.MustCompile(`^(\d{1,2})\s+(\p{L}+)\.?\s+(\d{4}),\s+de\s+(\d{1,2})h(\d{2})?\s+à\s+(\d{1,2})h(\d{2})?\s+\(.*\)`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			month, ok := frenchMonth(sub[2])
			if !ok {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown month %q", sub[2])
			}
			return p.sameDay(phrase, sub[3], month, sub[1], []string{sub[4], sub[5], ""}, []string{sub[6], sub[7], ""})
		},
	},
	{
		// 03 mars 2025, 14:00 – 17:00 UTC+1, weekday and year optional
		Name:    "fec",
		Pattern: regexp.MustCompile(`^(?:(\p{L}+)\.?\s+)?(\d{1,2})\s+(\p{L}+)\.?(?:\s+(\d{4}))?,\s+(\d{1,2}):(\d{2})` + dash + `(\d{1,2}):(\d{2})(?:\s+UTC\s?([+-]\d{1,2}(?::?\d{2})?))?$`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			if sub[1] != "" && !isFrenchWeekday(sub[1]) {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown weekday %q", sub[1])
			}
			if sub[9] != "" {
				if err := p.checkOffset(phrase, sub[9]); err != nil {
					return time.Time{}, time.Time{}, err
				}
			}
			month, ok := frenchMonth(sub[3])
			if !ok {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown month %q", sub[3])
			}
			return p.sameDay(phrase, sub[4], month, sub[2], []string{sub[5], sub[6], ""}, []string{sub[7], sub[8], ""})
		},
	},
	{
		// mercredi 12 février 2025 de 19h00 à 22h00
		Name:    "glide",
		Pattern: regexp.MustCompile(`(?i)^(?:(\p{L}+)\s+)?(\d{1,2})\s+(\p{L}+)\s+(\d{4})\s+de\s+(\d{1,2})h(\d{2})?\s+à\s+(\d{1,2})h(\d{2})?$`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			if sub[1] != "" && !isFrenchWeekday(sub[1]) {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown weekday %q", sub[1])
			}
			month, ok := frenchMonth(sub[3])
			if !ok {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown month %q", sub[3])
			}
			return p.sameDay(phrase, sub[4], month, sub[2], []string{sub[5], sub[6], ""}, []string{sub[7], sub[8], ""})
		},
	},
	{
		// Le 12 février 2025, de 18h à 20h
		Name:    "helloasso",
		Pattern: regexp.MustCompile(`(?i)^le\s+(\d{1,2})\s+(\p{L}+)\s+(\d{4}),?\s+de\s+(\d{1,2})h(\d{2})?\s+à\s+(\d{1,2})h(\d{2})?`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			month, ok := frenchMonth(sub[2])
			if !ok {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown month %q", sub[2])
			}
			return p.sameDay(phrase, sub[3], month, sub[1], []string{sub[4], sub[5], ""}, []string{sub[6], sub[7], ""})
		},
	},
	{
		// Sat, January 24 9:00 am, optionally "- 12:00 pm"
		Name:    "eventbrite-collection",
		Pattern: regexp.MustCompile(`(?i)^(?:([a-z]+),?\s+)?([a-z]+)\.?\s+(\d{1,2})\s+(\d{1,2}):(\d{2})\s*([ap]m)(?:` + dash + `(\d{1,2}):(\d{2})\s*([ap]m))?$`),
		Extract: func(p *Parser, phrase string, sub []string) (time.Time, time.Time, error) {
			month, ok := englishMonth(sub[2])
			if !ok {
				return time.Time{}, time.Time{}, formatErr(phrase, "unknown month %q", sub[2])
			}
			if sub[7] == "" {
				start, _, err := p.sameDay(phrase, "", month, sub[3], sub[4:7], sub[4:7])
				if err != nil {
					return time.Time{}, time.Time{}, err
				}
				return start, start.Add(p.defaultDuration), nil
			}
			return p.sameDay(phrase, "", month, sub[3], sub[4:7], sub[7:10])
		},
	},
}

// sameDay builds a range on a single day. Clock slices hold hour, minute
// and am/pm marker. An empty year is inferred.
func (p *Parser) sameDay(phrase, year string, month time.Month, day string, from, to []string) (time.Time, time.Time, error) {
	d, err := strconv.Atoi(day)
	if err != nil {
		return time.Time{}, time.Time{}, formatErr(phrase, "bad day %q", day)
	}
	y, err := p.year(phrase, year, month, d)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	sh, sm, err := clock(phrase, from[0], from[1], from[2])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	eh, em, err := clock(phrase, to[0], to[1], to[2])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := p.civil(phrase, y, month, d, sh, sm)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := p.civil(phrase, y, month, d, eh, em)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// at places a clock time on an already parsed day.
func (p *Parser) at(phrase string, day time.Time, c []string) (time.Time, error) {
	h, m, err := clock(phrase, c[0], c[1], c[2])
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, h, m, 0, 0, p.loc), nil
}

var englishLayouts = []string{
	"Mon Jan 2, 2006",
	"Mon, Jan 2, 2006",
	"Monday January 2, 2006",
	"Monday, January 2, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// englishDay parses an English calendar date, trying each known layout.
func englishDay(phrase, s string) (time.Time, error) {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, ".", "")), " ")
	for _, layout := range englishLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, formatErr(phrase, "bad date %q", s)
}
