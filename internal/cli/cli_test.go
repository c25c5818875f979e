package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSources = `[
  {"id": 200, "name": "Fresque du Climat", "url": "https://www.billetweb.fr/pro/fdc", "type": "scraper"},
  {"id": "201", "name": "Agenda", "url": "https://calendar.google.com/calendar/ical/abc/public/basic.ics", "type": "api"},
  {"id": 300, "name": "Unknown site", "url": "https://example.org/ateliers", "type": "scraper"}
]`

// workspace writes a config file pointing every path into a temp dir and
// returns the config path and that dir.
func workspace(t *testing.T, sources string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	countries := filepath.Join(dir, "countries")
	require.NoError(t, os.MkdirAll(countries, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(countries, "fr.json"), []byte(sources), 0o644))

	cfg := "log:\n  level: error\n" +
		"run:\n  timezone: UTC\n" +
		"  countries_dir: " + countries + "\n" +
		"  results_dir: " + filepath.Join(dir, "results") + "\n" +
		"geocode:\n  cache_path: " + filepath.Join(dir, "geocode.db") + "\n" +
		"metrics:\n  textfile: " + filepath.Join(dir, "fresk.prom") + "\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseDateCmd(t *testing.T) {
	cfgPath, _ := workspace(t, "[]")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "grammar match",
			args: []string{"parse-date", "16 mai 2025, de 18h30 à 21h30 (heure de Paris)"},
			want: []string{"grammar: fdc-fr", "start:   2025-05-16 18:30:00", "end:     2025-05-16 21:30:00"},
		},
		{
			name: "hint",
			args: []string{"parse-date", "de 9am à 12pm UTC+1", "--hint", "2025-12-05"},
			want: []string{"grammar: hint", "start:   2025-12-05 09:00:00", "end:     2025-12-05 12:00:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append(tt.args, "--config", cfgPath)...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}

	t.Run("unparseable phrase", func(t *testing.T) {
		_, err := execute(t, "parse-date", "next tuesday afternoon", "--config", cfgPath)
		assert.Error(t, err)
	})
}

func TestSourcesCmd(t *testing.T) {
	cfgPath, _ := workspace(t, testSources)

	out, err := execute(t, "sources", "--config", cfgPath)
	require.NoError(t, err)

	assert.Contains(t, out, "ADAPTER")
	assert.Regexp(t, `200\s+Fresque du Climat\s+scraper\s+billetweb`, out)
	assert.Regexp(t, `201\s+Agenda\s+api\s+ics`, out)
	assert.Regexp(t, `300\s+Unknown site\s+scraper\s+-`, out)
}

func TestSourcesCmdMissingCountry(t *testing.T) {
	cfgPath, _ := workspace(t, "[]")

	_, err := execute(t, "sources", "--config", cfgPath, "--country", "be")
	assert.Error(t, err)
}

func TestRootRejectsBadFlags(t *testing.T) {
	cfgPath, _ := workspace(t, "[]")

	tests := []struct {
		name string
		args []string
	}{
		{"format", []string{"--format", "xml"}},
		{"sort", []string{"--sort", "price"}},
		{"dates", []string{"--dates", "March"}},
		{"online and in person", []string{"--online", "--in-person"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append(tt.args, "--config", cfgPath)...)
			assert.Error(t, err)
		})
	}
}

func TestRootRunWithoutAdapters(t *testing.T) {
	sources := `[{"id": 300, "name": "Unknown site", "url": "https://example.org/ateliers", "type": "scraper"}]`
	cfgPath, dir := workspace(t, sources)

	out, err := execute(t, "--config", cfgPath, "--format", "json")
	require.NoError(t, err)

	var result OutputResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "fr", result.Country)
	assert.NotEmpty(t, result.RunID)
	assert.Zero(t, result.RecordCount)
	require.Len(t, result.FailedSources, 1)
	assert.Contains(t, result.FailedSources[0], "no adapter")
	assert.FileExists(t, result.EventsFile)

	assert.FileExists(t, filepath.Join(dir, "results", "fr", "latest.json"))
	assert.FileExists(t, filepath.Join(dir, "fresk.prom"))
}
