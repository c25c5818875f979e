package harvest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trouver-une-fresque/fresk-scraper/internal/dates"
	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
	"github.com/trouver-une-fresque/fresk-scraper/internal/language"
	"github.com/trouver-une-fresque/fresk-scraper/internal/location"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

var runTime = time.Date(2025, time.January, 15, 9, 0, 30, 0, time.UTC)

type fakeAdapter struct {
	name     string
	kind     source.Kind
	pattern  string
	skipPast bool
	events   map[source.ID][]normalize.RawEvent
	errs     map[source.ID]error
	calls    []source.ID
	onCall   func()
}

func (f *fakeAdapter) Name() string            { return f.name }
func (f *fakeAdapter) Kind() source.Kind       { return f.kind }
func (f *fakeAdapter) Patterns() []string      { return []string{f.pattern} }
func (f *fakeAdapter) SkipPastByDefault() bool { return f.skipPast }

func (f *fakeAdapter) Collect(_ context.Context, d source.Descriptor) ([]normalize.RawEvent, error) {
	f.calls = append(f.calls, d.ID)
	if f.onCall != nil {
		f.onCall()
	}
	if err := f.errs[d.ID]; err != nil {
		return nil, err
	}
	return f.events[d.ID], nil
}

type fakeResolver map[string]*location.Address

func (f fakeResolver) Resolve(_ context.Context, text string) (*location.Address, error) {
	if addr, ok := f[text]; ok {
		return addr, nil
	}
	return nil, &location.UnresolvableError{Text: text, Reason: "no complete match"}
}

type countingRecorder struct {
	accepted map[string]int
	rejected map[string]int
	failed   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{accepted: map[string]int{}, rejected: map[string]int{}, failed: map[string]int{}}
}

func (c *countingRecorder) Accepted(src string)         { c.accepted[src]++ }
func (c *countingRecorder) Rejected(src, reason string) { c.rejected[src+"/"+reason]++ }
func (c *countingRecorder) SourceFailed(src string)     { c.failed[src]++ }

// skipRecorder records the SkipPast flag each raw event reached the
// normalizer with.
type skipRecorder struct {
	inner Normalizer
	seen  map[string]bool
}

func (s *skipRecorder) Normalize(ctx context.Context, raw normalize.RawEvent) (*event.Record, *normalize.Rejection) {
	s.seen[raw.SourceID+"-"+raw.EventID] = raw.SkipPast
	return s.inner.Normalize(ctx, raw)
}

type panicNormalizer struct{}

func (p *panicNormalizer) Normalize(_ context.Context, raw normalize.RawEvent) (*event.Record, *normalize.Rejection) {
	if raw.EventID == "boom" {
		panic("index out of range")
	}
	return &event.Record{ID: event.ComposeID(raw.SourceID, raw.EventID), SourceID: raw.SourceID, Title: raw.Title}, nil
}

var paris = &location.Address{
	Name:        "Maison des Associations",
	Address:     "12 rue de la Paix",
	City:        "Paris",
	Department:  "75",
	ZipCode:     "75002",
	CountryCode: "FR",
	Latitude:    48.8686,
	Longitude:   2.3314,
}

func newNormalizer() *normalize.Normalizer {
	parser := dates.NewParser(
		dates.WithLocation(time.UTC),
		dates.WithClock(func() time.Time { return runTime }),
	)
	return normalize.New(parser, fakeResolver{"12 rue de la Paix, Paris": paris},
		language.NewDetector(nil), normalize.DefaultPolicy(),
		normalize.WithClock(func() time.Time { return runTime }))
}

func fecRaw(id string) normalize.RawEvent {
	return normalize.RawEvent{
		SourceID:           "310",
		EventID:            id,
		Title:              "Fresque de l'Économie Circulaire",
		Description:        "Un atelier pour comprendre l'économie circulaire.",
		DateText:           "03 mars 2025, 14:00 – 17:00 UTC+1",
		Online:             normalize.Bool(true),
		TicketsLink:        "https://www.lafresquedeleconomiecirculaire.com/event-details/" + id,
		SourceLink:         "https://www.lafresquedeleconomiecirculaire.com/event-details/" + id,
		SourceLanguage:     "fr",
		RequireDescription: true,
	}
}

func inPerson(id, where string) normalize.RawEvent {
	raw := fecRaw(id)
	raw.Online = normalize.Bool(false)
	raw.LocationText = where
	return raw
}

func descriptor(id, url string, kind source.Kind) source.Descriptor {
	return source.Descriptor{ID: source.ID(id), Name: "source " + id, URL: url, Type: kind}
}

func newHarvester(reg *source.Registry, n Normalizer, opts ...Option) *Harvester {
	opts = append([]Option{
		WithClock(func() time.Time { return runTime }),
		WithRunID("run-1"),
	}, opts...)
	return New(reg, n, opts...)
}

func TestRunOnlineRecordAccepted(t *testing.T) {
	fec := &fakeAdapter{
		name: "fec", kind: source.KindScraper, pattern: "lafresquedeleconomiecirculaire.com",
		events: map[source.ID][]normalize.RawEvent{"310": {fecRaw("abc")}},
	}
	h := newHarvester(source.NewRegistry(fec), newNormalizer())

	res := h.Run(context.Background(), []source.Descriptor{
		descriptor("310", "https://www.lafresquedeleconomiecirculaire.com/evenements", source.KindScraper),
	})

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "310-abc", rec.ID)
	assert.True(t, rec.Online)
	assert.Equal(t, location.Address{}, rec.Address)
	assert.Empty(t, rec.FullLocation)
	assert.Equal(t, time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC), rec.StartAt.Time)
	assert.Equal(t, time.Date(2025, 3, 3, 17, 0, 0, 0, time.UTC), rec.EndAt.Time)
	assert.Equal(t, runTime.Truncate(time.Second), rec.ScrapedAt)
	assert.Equal(t, "run-1", res.RunID)
	assert.Empty(t, res.Rejections)
	assert.False(t, res.Interrupted)
}

func TestRunUnresolvableAddressContinues(t *testing.T) {
	fec := &fakeAdapter{
		name: "fec", kind: source.KindScraper, pattern: "lafresquedeleconomiecirculaire.com",
		events: map[source.ID][]normalize.RawEvent{"310": {
			inPerson("a", "Nowhere Street, Atlantis"),
			inPerson("b", "12 rue de la Paix, Paris"),
		}},
	}
	metrics := newCountingRecorder()
	h := newHarvester(source.NewRegistry(fec), newNormalizer(), WithMetrics(metrics))

	res := h.Run(context.Background(), []source.Descriptor{
		descriptor("310", "https://www.lafresquedeleconomiecirculaire.com/evenements", source.KindScraper),
	})

	require.Len(t, res.Rejections, 1)
	assert.Equal(t, normalize.ReasonAddressUnresolvable, res.Rejections[0].Reason)
	assert.Equal(t, "a", res.Rejections[0].EventID)
	var unresolvable *location.UnresolvableError
	assert.True(t, errors.As(res.Rejections[0], &unresolvable))

	require.Len(t, res.Records, 1)
	assert.Equal(t, "310-b", res.Records[0].ID)
	assert.Equal(t, "Paris", res.Records[0].City)
	assert.Equal(t, "12 rue de la Paix, Paris", res.Records[0].FullLocation)

	assert.Equal(t, 1, metrics.accepted["310"])
	assert.Equal(t, 1, metrics.rejected["310/address_unresolvable"])
	assert.Equal(t, normalize.Summary{normalize.ReasonAddressUnresolvable: 1}, res.Summary())
}

func TestRunDuplicateFirstWins(t *testing.T) {
	second := fecRaw("abc")
	second.Title = "Copie"
	fec := &fakeAdapter{
		name: "fec", kind: source.KindScraper, pattern: "lafresquedeleconomiecirculaire.com",
		events: map[source.ID][]normalize.RawEvent{"310": {fecRaw("abc"), second}},
	}
	h := newHarvester(source.NewRegistry(fec), newNormalizer())

	res := h.Run(context.Background(), []source.Descriptor{
		descriptor("310", "https://www.lafresquedeleconomiecirculaire.com/evenements", source.KindScraper),
	})

	require.Len(t, res.Records, 1)
	assert.Equal(t, "Fresque de l'Économie Circulaire", res.Records[0].Title)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, normalize.ReasonDuplicate, res.Rejections[0].Reason)
	assert.Equal(t, "Copie", res.Rejections[0].Title)
}

func TestRunAdapterErrorMovesOn(t *testing.T) {
	failing := &fakeAdapter{
		name: "billetweb", kind: source.KindScraper, pattern: "billetweb.fr",
		errs: map[source.ID]error{"100": errors.New("iframe missing")},
	}
	fec := &fakeAdapter{
		name: "fec", kind: source.KindScraper, pattern: "lafresquedeleconomiecirculaire.com",
		events: map[source.ID][]normalize.RawEvent{"310": {fecRaw("abc")}},
	}
	metrics := newCountingRecorder()
	h := newHarvester(source.NewRegistry(failing, fec), newNormalizer(), WithMetrics(metrics))

	res := h.Run(context.Background(), []source.Descriptor{
		descriptor("100", "https://www.billetweb.fr/multi_event.php?user=1", source.KindScraper),
		descriptor("310", "https://www.lafresquedeleconomiecirculaire.com/evenements", source.KindScraper),
	})

	require.Len(t, res.Failures, 1)
	assert.Equal(t, source.ID("100"), res.Failures[0].Source.ID)
	assert.Equal(t, "billetweb", res.Failures[0].Adapter)
	assert.EqualError(t, res.Failures[0].Err, "iframe missing")
	assert.Len(t, res.Records, 1)
	assert.Equal(t, 1, metrics.failed["100"])
}

func TestRunRecoversPanics(t *testing.T) {
	panicky := &fakeAdapter{
		name: "fec", kind: source.KindScraper, pattern: "lafresquedeleconomiecirculaire.com",
		events: map[source.ID][]normalize.RawEvent{"310": {
			{SourceID: "310", EventID: "boom", Title: "A"},
			{SourceID: "310", EventID: "ok", Title: "B"},
		}},
	}
	h := newHarvester(source.NewRegistry(panicky), &panicNormalizer{})

	res := h.Run(context.Background(), []source.Descriptor{
		descriptor("310", "https://www.lafresquedeleconomiecirculaire.com/evenements", source.KindScraper),
	})

	require.Len(t, res.Rejections, 1)
	assert.Equal(t, normalize.ReasonUnexpected, res.Rejections[0].Reason)
	assert.Contains(t, res.Rejections[0].Detail, "index out of range")
	require.Len(t, res.Records, 1)
	assert.Equal(t, "310-ok", res.Records[0].ID)
}

func TestRunUnmatchedSources(t *testing.T) {
	fec := &fakeAdapter{name: "fec", kind: source.KindScraper, pattern: "lafresquedeleconomiecirculaire.com"}
	metrics := newCountingRecorder()
	h := newHarvester(source.NewRegistry(fec), newNormalizer(), WithMetrics(metrics))

	res := h.Run(context.Background(), []source.Descriptor{
		descriptor("999", "https://example.org/agenda", source.KindScraper),
		// Right URL, wrong kind.
		descriptor("998", "https://www.lafresquedeleconomiecirculaire.com/evenements", source.KindAPI),
	})

	assert.Len(t, res.Unmatched, 2)
	assert.Empty(t, fec.calls)
	assert.Equal(t, 1, metrics.failed["999"])
}

func TestRunSkipPastResolution(t *testing.T) {
	yes, no := true, false
	ics := &fakeAdapter{
		name: "ics", kind: source.KindAPI, pattern: "calendar.google.com", skipPast: true,
		events: map[source.ID][]normalize.RawEvent{
			"1": {{SourceID: "1", EventID: "a"}},
			"2": {{SourceID: "2", EventID: "b"}},
		},
	}
	glide := &fakeAdapter{
		name: "glide", kind: source.KindScraper, pattern: "glide.page",
		events: map[source.ID][]normalize.RawEvent{"3": {{SourceID: "3", EventID: "c"}}},
	}
	descs := func() []source.Descriptor {
		d2 := descriptor("2", "https://calendar.google.com/calendar/ical/b", source.KindAPI)
		d2.SkipPast = &no
		return []source.Descriptor{
			descriptor("1", "https://calendar.google.com/calendar/ical/a", source.KindAPI),
			d2,
			descriptor("3", "https://1erdegre.glide.page/dl/x", source.KindScraper),
		}
	}

	tests := []struct {
		name     string
		override *bool
		want     map[string]bool
	}{
		{
			name: "adapter defaults",
			want: map[string]bool{"1-a": true, "2-b": false, "3-c": false},
		},
		{
			name:     "global override on",
			override: &yes,
			want:     map[string]bool{"1-a": true, "2-b": false, "3-c": true},
		},
		{
			name:     "global override off",
			override: &no,
			want:     map[string]bool{"1-a": false, "2-b": false, "3-c": false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &skipRecorder{inner: &panicNormalizer{}, seen: map[string]bool{}}
			h := newHarvester(source.NewRegistry(ics, glide), rec, WithSkipPast(tt.override))
			h.Run(context.Background(), descs())
			assert.Equal(t, tt.want, rec.seen)
		})
	}
}

func TestRunStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fec := &fakeAdapter{
		name: "fec", kind: source.KindScraper, pattern: "lafresquedeleconomiecirculaire.com",
		events: map[source.ID][]normalize.RawEvent{
			"310": {fecRaw("abc")},
			"311": {fecRaw("def")},
		},
		onCall: cancel,
	}
	h := newHarvester(source.NewRegistry(fec), newNormalizer())

	res := h.Run(ctx, []source.Descriptor{
		descriptor("310", "https://www.lafresquedeleconomiecirculaire.com/a", source.KindScraper),
		descriptor("311", "https://www.lafresquedeleconomiecirculaire.com/b", source.KindScraper),
	})

	assert.True(t, res.Interrupted)
	assert.Equal(t, []source.ID{"310"}, fec.calls)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "310-abc", res.Records[0].ID)
}

func TestRunGeneratesRunID(t *testing.T) {
	h := New(source.NewRegistry(), newNormalizer())
	res := h.Run(context.Background(), nil)
	assert.Len(t, res.RunID, 36)
	assert.Empty(t, res.Records)
}
