package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/dates"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

// GlorieusesRecord is one row of the Glorieuses Make hook.
type GlorieusesRecord struct {
	ID          any     `json:"RECORD_ID()"`
	Label       string  `json:"Label event"`
	Date        string  `json:"Date"`
	DateFin     string  `json:"Date fin"`
	Format      *string `json:"Format"`
	Adresse     string  `json:"Adresse"`
	Ville       string  `json:"Ville"`
	Type        string  `json:"Type"`
	Billetterie string  `json:"Lien billeterie"`
}

// Glorieuses reads the Fresque des Glorieuses JSON feed.
type Glorieuses struct {
	client Getter
	loc    *time.Location
}

// NewGlorieuses creates the Glorieuses adapter.
func NewGlorieuses(client Getter, loc *time.Location) *Glorieuses {
	return &Glorieuses{client: client, loc: location(loc)}
}

func (a *Glorieuses) Name() string            { return "glorieuses" }
func (a *Glorieuses) Kind() source.Kind       { return source.KindAPI }
func (a *Glorieuses) Patterns() []string      { return []string{"hook.eu1.make.com"} }
func (a *Glorieuses) SkipPastByDefault() bool { return false }

// Collect fetches the record list at d.URL.
func (a *Glorieuses) Collect(ctx context.Context, d source.Descriptor) ([]normalize.RawEvent, error) {
	zap.L().Info("getting data from glorieuses api", zap.Stringer("source", d))

	var records []GlorieusesRecord
	if err := a.client.GetJSON(ctx, d.URL, &records); err != nil {
		return nil, eris.Wrap(err, "glorieuses: fetch records")
	}

	out := make([]normalize.RawEvent, 0, len(records))
	for _, r := range records {
		out = append(out, a.rawEvent(d, r))
	}
	return out, nil
}

func (a *Glorieuses) rawEvent(d source.Descriptor, r GlorieusesRecord) normalize.RawEvent {
	raw := baseEvent(d)
	raw.EventID = recordID(r.ID)
	raw.Title = r.Label
	raw.Description = r.Label
	raw.TypeLabel = r.Type
	raw.TicketsLink = r.Billetterie

	start, err := parseISO(r.Date)
	if err != nil {
		raw.Err = err
		return raw
	}
	end, err := parseISO(r.DateFin)
	if err != nil {
		raw.Err = err
		return raw
	}
	raw.Start, raw.End = start.In(a.loc), end.In(a.loc)

	if r.Format != nil {
		raw.OnlineSignals = []string{*r.Format}
	}
	if addr := strings.TrimSpace(r.Adresse); addr != "" {
		raw.LocationText = addr + ", " + strings.TrimSpace(r.Ville)
	}
	return raw
}

func recordID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}

// parseISO reads the millisecond UTC timestamps the Make hooks emit.
func parseISO(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &dates.FormatError{Phrase: s, Reason: "not an ISO 8601 timestamp"}
	}
	return t, nil
}
