// Package api reads sources that publish their workshops as a feed or a
// JSON endpoint: iCalendar agendas, the Glorieuses Make hook and the
// Fresque de la Mobilité sessions.
package api

import (
	"context"
	"time"

	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

// Getter downloads payloads. *fetch.Client implements it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
	GetJSON(ctx context.Context, url string, v any) error
}

// All returns the feed adapters in routing order.
func All(client Getter, loc *time.Location) []source.Adapter {
	return []source.Adapter{
		NewICS(client, loc),
		NewGlorieuses(client, loc),
		NewMobilite(client, loc),
	}
}

// baseEvent fills the fields every adapter copies from the descriptor.
func baseEvent(d source.Descriptor) normalize.RawEvent {
	return normalize.RawEvent{
		SourceID:       string(d.ID),
		SourceLanguage: d.LanguageCode,
	}
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
