// Package filter narrows the records a run prints.
//
// Criteria combine with AND; list criteria match when any entry matches.
// Filtering only affects output: the results directory and the database
// always receive the full batch.
//
//	f := filter.NewFilter()
//	f.Cities = []string{"Paris"}
//	f.WeekendsOnly = true
//	records = f.Apply(records)
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
)

// Filter represents record filtering criteria
type Filter struct {
	// Start date range, inclusive. Compared on wall-clock time.
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`

	// Title filtering (case-insensitive substring match)
	Titles []string `json:"titles,omitempty"`

	// City filtering (case-insensitive substring match)
	Cities []string `json:"cities,omitempty"`

	// Source ids, exact match
	Sources []string `json:"sources,omitempty"`

	WeekendsOnly bool `json:"weekends_only,omitempty"`

	// Online keeps only online (true) or only in-person (false) records.
	Online *bool `json:"online,omitempty"`

	// SkipSoldOut drops records flagged sold out.
	SkipSoldOut bool `json:"skip_sold_out,omitempty"`
}

// NewFilter creates a new empty filter with no active criteria.
func NewFilter() *Filter {
	return &Filter{
		Titles:  []string{},
		Cities:  []string{},
		Sources: []string{},
	}
}

// IsEmpty checks if the filter has any active criteria.
func (f *Filter) IsEmpty() bool {
	return f.DateFrom == nil &&
		f.DateTo == nil &&
		len(f.Titles) == 0 &&
		len(f.Cities) == 0 &&
		len(f.Sources) == 0 &&
		!f.WeekendsOnly &&
		f.Online == nil &&
		!f.SkipSoldOut
}

// Matches checks if a record matches all active filter criteria.
func (f *Filter) Matches(r *event.Record) bool {
	if f.IsEmpty() {
		return true
	}

	start := civil(r.StartAt.Time)
	if f.DateFrom != nil && start.Before(civil(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && start.After(civil(*f.DateTo)) {
		return false
	}

	if f.WeekendsOnly {
		weekday := start.Weekday()
		if weekday != time.Saturday && weekday != time.Sunday {
			return false
		}
	}

	if f.Online != nil && r.Online != *f.Online {
		return false
	}
	if f.SkipSoldOut && r.SoldOut {
		return false
	}

	if len(f.Titles) > 0 && !containsAny(r.Title, f.Titles) {
		return false
	}
	if len(f.Cities) > 0 && !containsAny(r.City, f.Cities) {
		return false
	}

	if len(f.Sources) > 0 {
		matched := false
		for _, id := range f.Sources {
			if r.SourceID == id {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// Apply returns the records matching the filter. An empty filter returns
// the input unchanged.
func (f *Filter) Apply(records []*event.Record) []*event.Record {
	if f.IsEmpty() {
		return records
	}

	filtered := make([]*event.Record, 0, len(records))
	for _, r := range records {
		if f.Matches(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// String returns a human-readable description of the active filter criteria.
// Format: "From: 2025-03-01 | To: 2025-03-31 | Cities: Paris | Weekends only"
func (f *Filter) String() string {
	if f.IsEmpty() {
		return "No active filters"
	}

	var parts []string

	if f.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("From: %s", f.DateFrom.Format(time.DateOnly)))
	}
	if f.DateTo != nil {
		parts = append(parts, fmt.Sprintf("To: %s", f.DateTo.Format(time.DateOnly)))
	}
	if len(f.Titles) > 0 {
		parts = append(parts, fmt.Sprintf("Titles: %s", strings.Join(f.Titles, ", ")))
	}
	if len(f.Cities) > 0 {
		parts = append(parts, fmt.Sprintf("Cities: %s", strings.Join(f.Cities, ", ")))
	}
	if len(f.Sources) > 0 {
		parts = append(parts, fmt.Sprintf("Sources: %s", strings.Join(f.Sources, ", ")))
	}
	if f.WeekendsOnly {
		parts = append(parts, "Weekends only")
	}
	if f.Online != nil {
		if *f.Online {
			parts = append(parts, "Online only")
		} else {
			parts = append(parts, "In person only")
		}
	}
	if f.SkipSoldOut {
		parts = append(parts, "Not sold out")
	}

	return strings.Join(parts, " | ")
}

// Clone creates a deep copy of the filter.
func (f *Filter) Clone() *Filter {
	clone := &Filter{
		WeekendsOnly: f.WeekendsOnly,
		SkipSoldOut:  f.SkipSoldOut,
		Titles:       append([]string{}, f.Titles...),
		Cities:       append([]string{}, f.Cities...),
		Sources:      append([]string{}, f.Sources...),
	}
	if f.DateFrom != nil {
		df := *f.DateFrom
		clone.DateFrom = &df
	}
	if f.DateTo != nil {
		dt := *f.DateTo
		clone.DateTo = &dt
	}
	if f.Online != nil {
		online := *f.Online
		clone.Online = &online
	}
	return clone
}

func containsAny(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// civil drops the zone so record times and bounds compare as wall clock.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
