package cli

import (
	"sort"
	"strings"

	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate   SortOrder = "date"
	SortBySource SortOrder = "source"
	SortByTitle  SortOrder = "title"
)

// sortRecords sorts records in place. Ties fall back to the start date,
// then the id, so output is stable across runs.
func sortRecords(records []*event.Record, order SortOrder) {
	switch order {
	case SortByDate:
		sort.SliceStable(records, func(i, j int) bool {
			return compareByDate(records[i], records[j])
		})
	case SortBySource:
		sort.SliceStable(records, func(i, j int) bool {
			if records[i].SourceID != records[j].SourceID {
				return records[i].SourceID < records[j].SourceID
			}
			return compareByDate(records[i], records[j])
		})
	case SortByTitle:
		sort.SliceStable(records, func(i, j int) bool {
			ti, tj := strings.ToLower(records[i].Title), strings.ToLower(records[j].Title)
			if ti != tj {
				return ti < tj
			}
			return compareByDate(records[i], records[j])
		})
	}
}

// compareByDate reports whether i starts before j
func compareByDate(i, j *event.Record) bool {
	if !i.StartAt.Equal(j.StartAt.Time) {
		return i.StartAt.Before(j.StartAt.Time)
	}
	return i.ID < j.ID
}
