package api

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

const (
	MobiliteSessionsURL = "https://hook.eu1.make.com/ui9bvl4c3w69dxdlb7goskl3o22x74um"
	MobiliteVersionsURL = "https://hook.eu1.make.com/sy4ud6vxutts9h62t4tt6gv0xr5rrkyd"
	MobiliteDetailsURL  = "https://app.fresquedelamobilite.org/atelier_details/"
)

// MobiliteRow holds the fields read from both endpoints. Session rows carry
// the schedule; version rows carry the workshop description.
type MobiliteRow struct {
	ID           string   `json:"_id"`
	Version      string   `json:"atelier_version_custom_atelier_version"`
	Format       *string  `json:"format_option_version_format"`
	Type         *string  `json:"type_option_version_type"`
	Perimeter    *string  `json:"p_rim_tre_option_version_p_rim_tre"`
	Theme        *string  `json:"th_me_option_version_th_me"`
	Places       *float64 `json:"nb_places_number"`
	Participants *float64 `json:"nb_participants_number"`
	Date         *string  `json:"date_date"`
	Minutes      *float64 `json:"dur_e__en_minutes__number"`
	Address      *string  `json:"lieu_adresse_exact_text"`
}

type mobiliteResponse struct {
	Response struct {
		Results []MobiliteRow `json:"results"`
	} `json:"response"`
}

// Mobilite reads the Fresque de la Mobilité sessions.
type Mobilite struct {
	client      Getter
	loc         *time.Location
	sessionsURL string
	versionsURL string
}

// MobiliteOption configures the adapter.
type MobiliteOption func(*Mobilite)

// WithEndpoints replaces the two Make hooks.
func WithEndpoints(sessions, versions string) MobiliteOption {
	return func(m *Mobilite) {
		m.sessionsURL = sessions
		m.versionsURL = versions
	}
}

// NewMobilite creates the Mobilité adapter.
func NewMobilite(client Getter, loc *time.Location, opts ...MobiliteOption) *Mobilite {
	m := &Mobilite{
		client:      client,
		loc:         location(loc),
		sessionsURL: MobiliteSessionsURL,
		versionsURL: MobiliteVersionsURL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (a *Mobilite) Name() string            { return "mobilite" }
func (a *Mobilite) Kind() source.Kind       { return source.KindAPI }
func (a *Mobilite) Patterns() []string      { return []string{"app.fresquedelamobilite.org"} }
func (a *Mobilite) SkipPastByDefault() bool { return false }

// Collect fetches sessions and versions and joins them.
func (a *Mobilite) Collect(ctx context.Context, d source.Descriptor) ([]normalize.RawEvent, error) {
	zap.L().Info("getting data from fresque de la mobilite api", zap.Stringer("source", d))

	var sessions, versions mobiliteResponse
	if err := a.client.GetJSON(ctx, a.sessionsURL, &sessions); err != nil {
		return nil, eris.Wrap(err, "mobilite: fetch sessions")
	}
	if err := a.client.GetJSON(ctx, a.versionsURL, &versions); err != nil {
		return nil, eris.Wrap(err, "mobilite: fetch versions")
	}

	byID := make(map[string]MobiliteRow, len(versions.Response.Results))
	for _, v := range versions.Response.Results {
		byID[v.ID] = v
	}

	out := make([]normalize.RawEvent, 0, len(sessions.Response.Results))
	for _, s := range sessions.Response.Results {
		row := s
		if v, ok := byID[s.Version]; ok {
			row = mergeRows(s, v)
		}
		out = append(out, a.rawEvent(d, row))
	}
	return out, nil
}

// mergeRows is a left join: session values win, versions fill the gaps.
func mergeRows(s, v MobiliteRow) MobiliteRow {
	pick := func(a, b *string) *string {
		if a != nil {
			return a
		}
		return b
	}
	s.Format = pick(s.Format, v.Format)
	s.Type = pick(s.Type, v.Type)
	s.Perimeter = pick(s.Perimeter, v.Perimeter)
	s.Theme = pick(s.Theme, v.Theme)
	return s
}

func (a *Mobilite) rawEvent(d source.Descriptor, r MobiliteRow) normalize.RawEvent {
	raw := baseEvent(d)
	raw.EventID = r.ID
	raw.DetailLink = MobiliteDetailsURL + r.ID
	raw.TicketsLink = raw.DetailLink
	raw.SourceLink = raw.DetailLink

	missing := func(field string) normalize.RawEvent {
		raw.Err = &normalize.RequiredFieldMissingError{Field: field}
		return raw
	}
	switch {
	case r.Format == nil:
		return missing("format_option_version_format")
	case r.Type == nil:
		return missing("type_option_version_type")
	case r.Perimeter == nil:
		return missing("p_rim_tre_option_version_p_rim_tre")
	case r.Theme == nil:
		return missing("th_me_option_version_th_me")
	case r.Places == nil || r.Participants == nil:
		return missing("nb_places_number")
	case r.Date == nil:
		return missing("date_date")
	case r.Minutes == nil:
		return missing("dur_e__en_minutes__number")
	}

	raw.Title = strings.Join([]string{*r.Type, *r.Theme, *r.Perimeter, *r.Format}, " ")
	raw.TypeLabel = *r.Type
	raw.KidsText = *r.Perimeter
	raw.OnlineSignals = []string{*r.Format}
	raw.SoldOut = *r.Places-*r.Participants <= 0
	if r.Address != nil {
		raw.LocationText = *r.Address
	}

	start, err := parseISO(*r.Date)
	if err != nil {
		raw.Err = err
		return raw
	}
	raw.Start = start.In(a.loc)
	raw.End = raw.Start.Add(time.Duration(*r.Minutes * float64(time.Minute)))
	return raw
}
