package event

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Snapshot holds the records of one run, keyed by Record.ID.
type Snapshot struct {
	Records   map[string]*Record `json:"records"`
	UpdatedAt string             `json:"updated_at"` // RFC3339 timestamp
}

// NewSnapshot creates an empty snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Records: make(map[string]*Record),
	}
}

// CreateSnapshot creates a snapshot from a list of records
func CreateSnapshot(records []*Record, updatedAt string) *Snapshot {
	snap := NewSnapshot()
	snap.UpdatedAt = updatedAt
	for _, r := range records {
		snap.Records[r.ID] = r
	}
	return snap
}

// Change is one attribute that differs between two runs for the same id.
type Change struct {
	RecordID   string    `json:"record_id"`
	Field      string    `json:"field"` // "new", "start_at", "end_at", "sold_out", "location", "title", "tickets_link"
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// DiffResult contains the results of comparing a run with a snapshot
type DiffResult struct {
	New     []*Record
	Removed []*Record
	Changes []*Change
}

// Diff compares current records against the previous snapshot
func Diff(previous *Snapshot, current []*Record, now time.Time) *DiffResult {
	result := &DiffResult{
		New:     make([]*Record, 0),
		Removed: make([]*Record, 0),
		Changes: make([]*Change, 0),
	}
	if previous == nil {
		previous = NewSnapshot()
	}

	seen := make(map[string]bool, len(current))
	for _, r := range current {
		seen[r.ID] = true
		prev, exists := previous.Records[r.ID]
		if !exists {
			result.New = append(result.New, r)
			continue
		}
		result.Changes = append(result.Changes, DetectChanges(prev, r, now)...)
	}

	for id, r := range previous.Records {
		if !seen[id] {
			result.Removed = append(result.Removed, r)
		}
	}

	sort.Slice(result.New, func(i, j int) bool { return result.New[i].ID < result.New[j].ID })
	sort.Slice(result.Removed, func(i, j int) bool { return result.Removed[i].ID < result.Removed[j].ID })
	sort.SliceStable(result.Changes, func(i, j int) bool { return result.Changes[i].RecordID < result.Changes[j].RecordID })

	return result
}

// DetectChanges compares two versions of a record
func DetectChanges(previous, current *Record, now time.Time) []*Change {
	if previous == nil {
		return []*Change{{
			RecordID:   current.ID,
			Field:      "new",
			NewValue:   current.Title,
			DetectedAt: now,
		}}
	}

	var changes []*Change
	add := func(field, oldValue, newValue string) {
		if oldValue != newValue {
			changes = append(changes, &Change{
				RecordID:   current.ID,
				Field:      field,
				OldValue:   oldValue,
				NewValue:   newValue,
				DetectedAt: now,
			})
		}
	}

	add("title", previous.Title, current.Title)
	add("start_at", previous.StartAt.Format(CivilLayout), current.StartAt.Format(CivilLayout))
	add("end_at", previous.EndAt.Format(CivilLayout), current.EndAt.Format(CivilLayout))
	add("sold_out", strconv.FormatBool(previous.SoldOut), strconv.FormatBool(current.SoldOut))
	add("location", locationKey(previous), locationKey(current))
	add("tickets_link", previous.TicketsLink, current.TicketsLink)

	return changes
}

func locationKey(r *Record) string {
	if r.Online {
		return "online"
	}
	return fmt.Sprintf("%s, %s %s", r.Address.Address, r.ZipCode, r.City)
}
