package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
)

const frJSON = `[
	{"name": "Fresque du Climat", "id": 200, "url": "https://climatefresk.org/fr-FR/trouver-un-atelier", "type": "scraper", "language_code": "fr"},
	{"name": "Fresque de la Mobilité", "id": "500", "url": "https://app.fresquedelamobilite.org/api/sessions", "type": "api", "skip_past": true},
	{"name": "Fresque du Numérique", "id": 300, "url": "https://www.billetweb.fr/multi_event.php?user=84999", "type": "scraper", "iframe": "event21569", "filter": "atelier"}
]`

func TestParseJSON(t *testing.T) {
	descs, err := Parse([]byte(frJSON), "json")
	require.NoError(t, err)
	require.Len(t, descs, 3)

	assert.Equal(t, ID("200"), descs[0].ID)
	assert.Equal(t, "fr", descs[0].LanguageCode)
	assert.Equal(t, ID("500"), descs[1].ID)
	require.NotNil(t, descs[1].SkipPast)
	assert.True(t, *descs[1].SkipPast)
	assert.Equal(t, "event21569", descs[2].Iframe)

	scrapers, apis := Split(descs)
	assert.Len(t, scrapers, 2)
	assert.Len(t, apis, 1)
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
- id: 700
  name: Les Glorieuses
  url: https://hook.eu1.make.com/abc
  type: api
  language_code: fr
`)
	descs, err := Parse(data, "yaml")
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, ID("700"), descs[0].ID)
	assert.Equal(t, KindAPI, descs[0].Type)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing url", `[{"name": "x", "id": 1, "type": "api"}]`},
		{"missing name", `[{"id": 1, "url": "https://x.org", "type": "api"}]`},
		{"unknown type", `[{"name": "x", "id": 1, "url": "https://x.org", "type": "rss"}]`},
		{"bad language", `[{"name": "x", "id": 1, "url": "https://x.org", "type": "api", "language_code": "fra"}]`},
		{"not a list", `{"name": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), "json")
			assert.Error(t, err)
		})
	}
}

func TestLoadCountry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fr.json"), []byte(frJSON), 0644))

	descs, err := LoadCountry(dir, "fr")
	require.NoError(t, err)
	assert.Len(t, descs, 3)

	_, err = LoadCountry(dir, "de")
	assert.Error(t, err)
}

type stubAdapter struct {
	name     string
	kind     Kind
	patterns []string
}

func (s *stubAdapter) Name() string            { return s.name }
func (s *stubAdapter) Kind() Kind              { return s.kind }
func (s *stubAdapter) Patterns() []string      { return s.patterns }
func (s *stubAdapter) SkipPastByDefault() bool { return false }
func (s *stubAdapter) Collect(ctx context.Context, d Descriptor) ([]normalize.RawEvent, error) {
	return nil, nil
}

func TestRegistryRoute(t *testing.T) {
	billetweb := &stubAdapter{name: "billetweb", kind: KindScraper, patterns: []string{"billetweb.fr"}}
	fdc := &stubAdapter{name: "fdc", kind: KindScraper, patterns: []string{"climatefresk.org", "fresqueduclimat.org"}}
	mobilite := &stubAdapter{name: "mobilite", kind: KindAPI, patterns: []string{"app.fresquedelamobilite.org"}}
	reg := NewRegistry(billetweb, fdc)
	reg.Register(mobilite)

	descs, err := Parse([]byte(frJSON), "json")
	require.NoError(t, err)
	descs = append(descs, Descriptor{ID: "9", Name: "Unknown", URL: "https://example.org", Type: KindScraper})

	assignments, unmatched := reg.Route(descs)
	require.Len(t, assignments, 3)
	assert.Equal(t, "billetweb", assignments[0].Adapter.Name())
	assert.Equal(t, "fdc", assignments[1].Adapter.Name())
	assert.Equal(t, "mobilite", assignments[2].Adapter.Name())
	assert.Equal(t, ID("300"), assignments[0].Sources[0].ID)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "Unknown", unmatched[0].Name)

	_, ok := reg.Match(Descriptor{URL: "https://www.billetweb.fr/x", Type: KindAPI})
	assert.False(t, ok, "kind must match")
}
