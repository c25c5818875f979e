package api

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

// WorkshopIDPrefix marks the category that assigns an event to another
// workshop than the source's.
const WorkshopIDPrefix = "Workshop ID: "

var alarmBlock = regexp.MustCompile(`(?s)BEGIN:VALARM.*?END:VALARM\r?\n?`)

// textUnescaper undoes RFC 5545 TEXT escaping. Applying it to an already
// unescaped value is a no-op unless the value holds literal backslashes.
var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n")

// ICS reads iCalendar agendas published by Google Calendar or Nextcloud.
type ICS struct {
	client Getter
	loc    *time.Location
}

// NewICS creates the iCalendar adapter. Event times are converted to loc.
func NewICS(client Getter, loc *time.Location) *ICS {
	return &ICS{client: client, loc: location(loc)}
}

func (a *ICS) Name() string       { return "ics" }
func (a *ICS) Kind() source.Kind  { return source.KindAPI }
func (a *ICS) Patterns() []string { return []string{"calendar.google.com/calendar/ical", "framagenda.org/remote.php/dav"} }

// SkipPastByDefault is true: agendas keep their whole history.
func (a *ICS) SkipPastByDefault() bool { return true }

// Collect downloads and parses the agenda at d.URL.
func (a *ICS) Collect(ctx context.Context, d source.Descriptor) ([]normalize.RawEvent, error) {
	zap.L().Info("getting icalendar data", zap.Stringer("source", d), zap.String("url", d.URL))

	data, err := a.client.Get(ctx, d.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "ics: fetch %s", d.URL)
	}
	cal, err := ics.ParseCalendar(bytes.NewReader(StripAlarms(data)))
	if err != nil {
		return nil, eris.Wrapf(err, "ics: parse %s", d.URL)
	}

	events := cal.Events()
	out := make([]normalize.RawEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, a.rawEvent(d, ev))
	}
	zap.L().Info("parsed icalendar feed", zap.Stringer("source", d), zap.Int("events", len(out)))
	return out, nil
}

// StripAlarms removes VALARM blocks, which some producers emit malformed.
func StripAlarms(data []byte) []byte {
	return alarmBlock.ReplaceAll(data, nil)
}

func (a *ICS) rawEvent(d source.Descriptor, ev *ics.VEvent) normalize.RawEvent {
	raw := baseEvent(d)
	raw.EventID = ev.Id()
	raw.Title = propValue(ev, ics.ComponentPropertySummary)
	raw.Description = propValue(ev, ics.ComponentPropertyDescription)
	raw.TicketsLink = propValue(ev, ics.ComponentPropertyUrl)

	start, err := ev.GetStartAt()
	if err != nil {
		raw.Err = &normalize.RequiredFieldMissingError{Field: "dtstart"}
		return raw
	}
	raw.Start = start.In(a.loc)
	if end, err := ev.GetEndAt(); err == nil {
		raw.End = end.In(a.loc)
	}

	if override := workshopID(ev); override != "" {
		zap.L().Info("workshop id override", zap.String("uid", raw.EventID), zap.String("workshop_id", override))
		raw.IDOverride = override
	}

	loc := propValue(ev, ics.ComponentPropertyLocation)
	switch {
	case loc == "":
		raw.Online = normalize.Bool(true)
	case normalize.IsMeetingURL(loc):
		raw.Online = normalize.Bool(true)
	default:
		raw.Online = normalize.Bool(false)
		raw.LocationText = loc
	}
	return raw
}

func propValue(ev *ics.VEvent, p ics.ComponentProperty) string {
	if prop := ev.GetProperty(p); prop != nil {
		return strings.TrimSpace(textUnescaper.Replace(prop.Value))
	}
	return ""
}

func workshopID(ev *ics.VEvent) string {
	for _, prop := range ev.GetProperties(ics.ComponentPropertyCategories) {
		for _, category := range strings.Split(prop.Value, ",") {
			category = strings.TrimSpace(category)
			if id, ok := strings.CutPrefix(category, WorkshopIDPrefix); ok && strings.TrimSpace(id) != "" {
				return strings.TrimSpace(id)
			}
		}
	}
	return ""
}
