// export-calendar turns the events file of a past run into an .ics file
// that can be imported into a calendar app.
//
//	go run ./scripts/export-calendar.go results/fr/20250115_090000/events_20250115_090000.json
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/trouver-une-fresque/fresk-scraper/internal/calendar"
	"github.com/trouver-une-fresque/fresk-scraper/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: export-calendar <events.json> [out.ics]")
		os.Exit(2)
	}
	in := os.Args[1]
	out := strings.TrimSuffix(in, ".json") + ".ics"
	if len(os.Args) > 2 {
		out = os.Args[2]
	}

	records, err := storage.LoadRecords(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading records: %v\n", err)
		os.Exit(1)
	}

	// Write to file (owner read/write only)
	if err := os.WriteFile(out, []byte(calendar.Export(records)), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated calendar file with %d events: %s\n", len(records), out)
}
