package filter

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ParseDateRange parses a date range string into start and end times.
//
// Supported formats:
//   - "2025-03-14" - a single day
//   - "2025-03" - an entire month
//   - "2025-03-01..2025-04-15" - explicit bounds, either side may be a month
//   - "2025-03-01.." or "..2025-04-15" - open ranges
//
// Start is at 00:00:00, end at 23:59:59, both in UTC wall clock.
func ParseDateRange(input string) (*time.Time, *time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil, eris.New("filter: date range cannot be empty")
	}

	left, right, isRange := strings.Cut(input, "..")
	if !isRange {
		from, to, err := parseBound(input)
		if err != nil {
			return nil, nil, err
		}
		return &from, &to, nil
	}

	left, right = strings.TrimSpace(left), strings.TrimSpace(right)
	if left == "" && right == "" {
		return nil, nil, eris.New("filter: date range needs at least one bound")
	}

	var from, to *time.Time
	if left != "" {
		start, _, err := parseBound(left)
		if err != nil {
			return nil, nil, err
		}
		from = &start
	}
	if right != "" {
		_, end, err := parseBound(right)
		if err != nil {
			return nil, nil, err
		}
		to = &end
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, nil, eris.Errorf("filter: start of %q is after its end", input)
	}
	return from, to, nil
}

// parseBound returns the first and last second of a day or a month.
func parseBound(s string) (time.Time, time.Time, error) {
	if day, err := time.Parse(time.DateOnly, s); err == nil {
		return day, day.Add(24*time.Hour - time.Second), nil
	}
	if month, err := time.Parse("2006-01", s); err == nil {
		return month, month.AddDate(0, 1, 0).Add(-time.Second), nil
	}
	return time.Time{}, time.Time{}, eris.Errorf("filter: invalid date %q, use 2025-03-14 or 2025-03", s)
}
