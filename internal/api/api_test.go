package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trouver-une-fresque/fresk-scraper/internal/dates"
	"github.com/trouver-une-fresque/fresk-scraper/internal/fetch"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

const agenda = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Google Inc//Google Calendar 70.9054//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-1@google.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250603T160000Z\r\n" +
	"DTEND:20250603T190000Z\r\n" +
	"SUMMARY:Fresque du Sol\r\n" +
	"DESCRIPTION:Inscription : https://www.billetweb.fr/fresque-du-sol-42\r\n" +
	"LOCATION:Maison du Vélo\\n12 rue de la Paix\\, 75002 Paris\r\n" +
	"CATEGORIES:Atelier,Workshop ID: 300\r\n" +
	"BEGIN:VALARM\r\n" +
	"ACTION:DISPLAY\r\n" +
	"TRIGGER;BOGUS\r\n" +
	"END:VALARM\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-2@google.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250610T160000Z\r\n" +
	"DTEND:20250610T190000Z\r\n" +
	"SUMMARY:Fresque du Sol en ligne\r\n" +
	"LOCATION:https://meet.google.com/abc-defg-hij\r\n" +
	"URL:https://example.org/tickets/2\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-3@google.com\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250611T160000Z\r\n" +
	"SUMMARY:Formation animateur\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func client() *fetch.Client {
	return fetch.New(fetch.Options{Interval: -1})
}

func TestICSCollect(t *testing.T) {
	srv := serve(t, map[string]string{"/calendar/ical/basic.ics": agenda})
	a := NewICS(client(), time.UTC)
	d := source.Descriptor{ID: "700", Name: "Fresque du Sol", URL: srv.URL + "/calendar/ical/basic.ics", Type: source.KindAPI, LanguageCode: "fr"}

	events, err := a.Collect(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, events, 3)

	first := events[0]
	assert.Equal(t, "700", first.SourceID)
	assert.Equal(t, "evt-1@google.com", first.EventID)
	assert.Equal(t, "300", first.IDOverride)
	assert.Equal(t, "Fresque du Sol", first.Title)
	assert.Equal(t, time.Date(2025, 6, 3, 16, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, time.Date(2025, 6, 3, 19, 0, 0, 0, time.UTC), first.End)
	require.NotNil(t, first.Online)
	assert.False(t, *first.Online)
	assert.Equal(t, "Maison du Vélo\n12 rue de la Paix, 75002 Paris", first.LocationText)
	assert.Empty(t, first.TicketsLink)
	assert.Equal(t, "fr", first.SourceLanguage)

	second := events[1]
	require.NotNil(t, second.Online)
	assert.True(t, *second.Online)
	assert.Equal(t, "https://example.org/tickets/2", second.TicketsLink)
	assert.Empty(t, second.IDOverride)

	third := events[2]
	require.NotNil(t, third.Online)
	assert.True(t, *third.Online, "no location means online")
	assert.True(t, third.End.IsZero())

	assert.True(t, a.SkipPastByDefault())
}

func TestICSFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewICS(client(), time.UTC).Collect(context.Background(), source.Descriptor{ID: "1", URL: srv.URL})
	var se *fetch.StatusError
	assert.True(t, errors.As(err, &se))
}

func TestStripAlarms(t *testing.T) {
	in := "BEGIN:VEVENT\r\nBEGIN:VALARM\r\nX\r\nEND:VALARM\r\nSUMMARY:a\r\nBEGIN:VALARM\r\nY\r\nEND:VALARM\r\nEND:VEVENT\r\n"
	assert.Equal(t, "BEGIN:VEVENT\r\nSUMMARY:a\r\nEND:VEVENT\r\n", string(StripAlarms([]byte(in))))
}

const glorieusesPayload = `[
	{"RECORD_ID()": "rec1", "Label event": "Fresque des Glorieuses", "Date": "2025-03-12T17:00:00.000Z",
	 "Date fin": "2025-03-12T20:00:00.000Z", "Format": "Présentiel", "Adresse": "12 rue de la Paix",
	 "Ville": "Paris", "Type": "Atelier", "Lien billeterie": "https://example.org/g/1"},
	{"RECORD_ID()": 42, "Label event": "Formation Glorieuses", "Date": "2025-03-13T17:00:00.000Z",
	 "Date fin": "2025-03-13T20:00:00.000Z", "Format": null, "Adresse": "", "Ville": "",
	 "Type": "Formation", "Lien billeterie": "https://example.org/g/2"},
	{"RECORD_ID()": "rec3", "Label event": "Sans date", "Date": "bientôt", "Date fin": "",
	 "Format": "En ligne", "Type": "Atelier", "Lien billeterie": "https://example.org/g/3"}
]`

func TestGlorieusesCollect(t *testing.T) {
	srv := serve(t, map[string]string{"/hook": glorieusesPayload})
	a := NewGlorieuses(client(), time.UTC)
	d := source.Descriptor{ID: "600", Name: "Glorieuses", URL: srv.URL + "/hook", Type: source.KindAPI, LanguageCode: "fr"}

	events, err := a.Collect(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "rec1", events[0].EventID)
	assert.Equal(t, time.Date(2025, 3, 12, 17, 0, 0, 0, time.UTC), events[0].Start)
	assert.Equal(t, "12 rue de la Paix, Paris", events[0].LocationText)
	assert.Equal(t, []string{"Présentiel"}, events[0].OnlineSignals)
	assert.Equal(t, "Fresque des Glorieuses", events[0].Description)

	assert.Equal(t, "42", events[1].EventID)
	assert.Empty(t, events[1].OnlineSignals)
	assert.Equal(t, "Formation", events[1].TypeLabel)

	var fe *dates.FormatError
	assert.True(t, errors.As(events[2].Err, &fe))
}

const mobiliteSessions = `{"response": {"results": [
	{"_id": "s1", "atelier_version_custom_atelier_version": "v1", "nb_places_number": 12,
	 "nb_participants_number": 12, "date_date": "2025-04-02T16:00:00.000Z",
	 "dur_e__en_minutes__number": 180, "lieu_adresse_exact_text": "12 rue de la Paix, 75002 Paris"},
	{"_id": "s2", "atelier_version_custom_atelier_version": "v2", "nb_places_number": 10,
	 "nb_participants_number": 3, "date_date": "2025-04-03T16:00:00.000Z",
	 "dur_e__en_minutes__number": 150},
	{"_id": "s3", "atelier_version_custom_atelier_version": "unknown", "nb_places_number": 10,
	 "nb_participants_number": 3, "date_date": "2025-04-03T16:00:00.000Z",
	 "dur_e__en_minutes__number": 150}
]}}`

const mobiliteVersions = `{"response": {"results": [
	{"_id": "v1", "format_option_version_format": "Présentiel", "type_option_version_type": "Atelier",
	 "p_rim_tre_option_version_p_rim_tre": "Grand public", "th_me_option_version_th_me": "Mobilité du quotidien"},
	{"_id": "v2", "format_option_version_format": "En ligne", "type_option_version_type": "Formation",
	 "p_rim_tre_option_version_p_rim_tre": "Enfants", "th_me_option_version_th_me": "Mobilité"}
]}}`

func TestMobiliteCollect(t *testing.T) {
	srv := serve(t, map[string]string{"/sessions": mobiliteSessions, "/versions": mobiliteVersions})
	a := NewMobilite(client(), time.UTC, WithEndpoints(srv.URL+"/sessions", srv.URL+"/versions"))
	d := source.Descriptor{ID: "500", Name: "Mobilité", URL: "https://app.fresquedelamobilite.org/", Type: source.KindAPI}

	events, err := a.Collect(context.Background(), d)
	require.NoError(t, err)
	require.Len(t, events, 3)

	s1 := events[0]
	assert.Equal(t, "s1", s1.EventID)
	assert.Equal(t, "Atelier Mobilité du quotidien Grand public Présentiel", s1.Title)
	assert.True(t, s1.SoldOut)
	assert.Equal(t, time.Date(2025, 4, 2, 19, 0, 0, 0, time.UTC), s1.End)
	assert.Equal(t, "12 rue de la Paix, 75002 Paris", s1.LocationText)
	assert.Equal(t, MobiliteDetailsURL+"s1", s1.TicketsLink)

	s2 := events[1]
	assert.False(t, s2.SoldOut)
	assert.Equal(t, "Enfants", s2.KidsText)
	assert.Equal(t, "Formation", s2.TypeLabel)
	assert.Equal(t, 150*time.Minute, s2.End.Sub(s2.Start))

	var missing *normalize.RequiredFieldMissingError
	assert.True(t, errors.As(events[2].Err, &missing), "unknown version leaves fields empty")
}

func TestRouting(t *testing.T) {
	reg := source.NewRegistry(All(client(), time.UTC)...)
	tests := []struct {
		url  string
		want string
	}{
		{"https://calendar.google.com/calendar/ical/abc/public/basic.ics", "ics"},
		{"https://framagenda.org/remote.php/dav/public-calendars/xyz?export", "ics"},
		{"https://hook.eu1.make.com/abc", "glorieuses"},
		{"https://app.fresquedelamobilite.org/", "mobilite"},
	}
	for _, tt := range tests {
		a, ok := reg.Match(source.Descriptor{URL: tt.url, Type: source.KindAPI})
		require.True(t, ok, tt.url)
		assert.Equal(t, tt.want, a.Name())
	}
}
