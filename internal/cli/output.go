package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/trouver-une-fresque/fresk-scraper/internal/calendar"
	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatICS  OutputFormat = "ics"
)

// OutputResult contains data to be output
type OutputResult struct {
	RunID          string          `json:"run_id"`
	Country        string          `json:"country"`
	ScrapedAt      time.Time       `json:"scraped_at"`
	EventsFile     string          `json:"events_file,omitempty"`
	Records        []*event.Record `json:"-"`
	RecordCount    int             `json:"record_count"`
	RejectionCount int             `json:"rejection_count"`
	Rejections     map[string]int  `json:"rejections_by_reason"`
	FailedSources  []string        `json:"failed_sources,omitempty"`
	New            []*event.Record `json:"new_records"`
	Removed        []string        `json:"removed_ids"`
	Changes        []*event.Change `json:"changes"`
	Interrupted    bool            `json:"interrupted,omitempty"`
	Filter         string          `json:"filter,omitempty"`
}

func newOutputResult(summary normalize.Summary) *OutputResult {
	out := &OutputResult{Rejections: make(map[string]int)}
	for reason, n := range summary {
		out.Rejections[string(reason)] = n
		out.RejectionCount += n
	}
	return out
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	case FormatICS:
		_, err := io.WriteString(w, calendar.Export(result.Records))
		return err
	default:
		return eris.Errorf("cli: unknown format %q", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	fmt.Fprintf(w, "Run %s (%s) at %s\n", result.RunID, result.Country, result.ScrapedAt.Format(time.RFC3339))
	if result.Interrupted {
		fmt.Fprintln(w, "Run interrupted, results are partial.")
	}
	fmt.Fprintf(w, "%d records accepted, %d rejected\n", result.RecordCount, result.RejectionCount)
	if result.Filter != "" {
		fmt.Fprintf(w, "Filter: %s (%d records shown)\n", result.Filter, len(result.Records))
	}

	if len(result.Rejections) > 0 {
		reasons := make([]string, 0, len(result.Rejections))
		for r := range result.Rejections {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(w, "  %-22s %d\n", r, result.Rejections[r])
		}
	}
	for _, s := range result.FailedSources {
		fmt.Fprintf(w, "FAILED: %s\n", s)
	}

	for _, r := range result.New {
		fmt.Fprintf(w, "NEW: %s %s\n", r.StartAt.Format("2006-01-02 15:04"), r.Title)
		if verbose {
			fmt.Fprintf(w, "     ID: %s\n", r.ID)
			if r.City != "" {
				fmt.Fprintf(w, "     City: %s\n", r.City)
			}
			fmt.Fprintf(w, "     Tickets: %s\n", r.TicketsLink)
		}
	}
	for _, id := range result.Removed {
		fmt.Fprintf(w, "REMOVED: %s\n", id)
	}
	if verbose {
		for _, c := range result.Changes {
			fmt.Fprintf(w, "CHANGED: %s %s: %q -> %q\n", c.RecordID, c.Field, c.OldValue, c.NewValue)
		}
	}
	if result.EventsFile != "" {
		fmt.Fprintf(w, "\nResults written to %s\n", result.EventsFile)
	}
	return nil
}
