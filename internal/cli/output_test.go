package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
)

func sampleResult() *OutputResult {
	day := time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC)
	r := rec("200-a", "200", "Fresque du Climat", day)
	r.City = "Paris"
	r.TicketsLink = "https://www.billetweb.fr/fresque-a"

	result := newOutputResult(normalize.Summary{
		normalize.ReasonInThePast: 2,
		normalize.ReasonBadDate:   1,
	})
	result.RunID = "run-1"
	result.Country = "fr"
	result.ScrapedAt = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	result.EventsFile = "results/fr/20250115_090000/events_20250115_090000.json"
	result.Records = []*event.Record{r}
	result.RecordCount = 1
	result.New = []*event.Record{r}
	result.Removed = []string{"200-old"}
	result.Changes = []*event.Change{{RecordID: "300-x", Field: "sold_out", OldValue: "false", NewValue: "true"}}
	result.FailedSources = []string{`500 "Broken" (billetweb): timeout`}
	return result
}

func TestNewOutputResult(t *testing.T) {
	result := newOutputResult(normalize.Summary{
		normalize.ReasonInThePast: 2,
		normalize.ReasonBadDate:   1,
	})
	assert.Equal(t, 3, result.RejectionCount)
	assert.Equal(t, 2, result.Rejections[string(normalize.ReasonInThePast)])
}

func TestWriteOutputText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOutput(&buf, sampleResult(), FormatText, false))
	out := buf.String()

	assert.Contains(t, out, "Run run-1 (fr) at 2025-01-15T09:00:00Z")
	assert.Contains(t, out, "1 records accepted, 3 rejected")
	assert.Contains(t, out, "NEW: 2025-03-03 14:00 Fresque du Climat")
	assert.Contains(t, out, "REMOVED: 200-old")
	assert.Contains(t, out, `FAILED: 500 "Broken" (billetweb): timeout`)
	assert.Contains(t, out, "Results written to results/fr/")
	assert.NotContains(t, out, "CHANGED")
	assert.NotContains(t, out, "Tickets:")
}

func TestWriteOutputTextVerbose(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOutput(&buf, sampleResult(), FormatText, true))
	out := buf.String()

	assert.Contains(t, out, "ID: 200-a")
	assert.Contains(t, out, "City: Paris")
	assert.Contains(t, out, "Tickets: https://www.billetweb.fr/fresque-a")
	assert.Contains(t, out, `CHANGED: 300-x sold_out: "false" -> "true"`)
}

func TestWriteOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOutput(&buf, sampleResult(), FormatJSON, false))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, float64(1), decoded["record_count"])
	assert.Equal(t, float64(3), decoded["rejection_count"])
	assert.Equal(t, []any{"200-old"}, decoded["removed_ids"])
	assert.NotContains(t, decoded, "records")
	assert.NotContains(t, decoded, "interrupted")

	newRecords, ok := decoded["new_records"].([]any)
	require.True(t, ok)
	require.Len(t, newRecords, 1)
	assert.Equal(t, "200-a", newRecords[0].(map[string]any)["id"])
}

func TestWriteOutputICS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOutput(&buf, sampleResult(), FormatICS, false))
	out := buf.String()

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "UID:200-a@trouverunefresque.org")
	assert.Contains(t, out, "DTSTART:20250303T140000")
}

func TestWriteOutputUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteOutput(&buf, sampleResult(), OutputFormat("xml"), false))
}
