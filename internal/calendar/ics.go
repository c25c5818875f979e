// Package calendar exports accepted records as an iCalendar feed.
package calendar

import (
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
)

const (
	uidDomain = "trouverunefresque.org"
	// floatingLayout writes wall-clock times without a zone.
	floatingLayout = "20060102T150405"
)

// Export renders one VEVENT per record. Start and end are floating local
// times, as read from the sources.
func Export(records []*event.Record) string {
	cal := ics.NewCalendarFor("Trouver une Fresque//fresk-scraper//FR")
	cal.SetMethod(ics.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRCalName("Trouver une Fresque")

	now := time.Now()
	for _, rec := range records {
		addEvent(cal, rec, now)
	}
	return cal.Serialize()
}

func addEvent(cal *ics.Calendar, rec *event.Record, now time.Time) {
	ev := cal.AddEvent(rec.ID + "@" + uidDomain)

	stamp := rec.ScrapedAt
	if stamp.IsZero() {
		stamp = now
	}
	ev.SetDtStampTime(stamp)
	ev.SetProperty(ics.ComponentPropertyDtStart, rec.StartAt.Format(floatingLayout))
	ev.SetProperty(ics.ComponentPropertyDtEnd, rec.EndAt.Format(floatingLayout))

	ev.SetSummary(rec.Title)
	ev.SetDescription(description(rec))
	if rec.Online {
		ev.SetLocation("En ligne")
	} else {
		ev.SetLocation(rec.FullLocation)
		ev.SetGeo(rec.Latitude, rec.Longitude)
	}
	ev.SetURL(rec.TicketsLink)
	ev.SetStatus(ics.ObjectStatusConfirmed)
	ev.SetSequence(0)
	ev.SetProperty(ics.ComponentPropertyTransp, "OPAQUE")

	for _, c := range categories(rec) {
		ev.AddProperty(ics.ComponentPropertyCategories, c)
	}
}

// description appends the booking link, and a warning for full sessions.
func description(rec *event.Record) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(rec.Description))
	if rec.SoldOut {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Complet")
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString("Inscription : " + rec.TicketsLink)
	return b.String()
}

func categories(rec *event.Record) []string {
	var out []string
	if rec.Online {
		out = append(out, "online")
	}
	if rec.Training {
		out = append(out, "training")
	}
	if rec.Kids {
		out = append(out, "kids")
	}
	return out
}
