package dates

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

var frenchMonths = map[string]time.Month{
	"janvier":   time.January,
	"février":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"août":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"décembre":  time.December,
}

var frenchShortMonths = map[string]time.Month{
	"janv": time.January,
	"févr": time.February,
	"mars": time.March,
	"avr":  time.April,
	"mai":  time.May,
	"juin": time.June,
	"juil": time.July,
	"août": time.August,
	"sept": time.September,
	"oct":  time.October,
	"nov":  time.November,
	"déc":  time.December,
}

var englishMonths = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
	"jan":       time.January,
	"feb":       time.February,
	"mar":       time.March,
	"apr":       time.April,
	"jun":       time.June,
	"jul":       time.July,
	"aug":       time.August,
	"sep":       time.September,
	"sept":      time.September,
	"oct":       time.October,
	"nov":       time.November,
	"dec":       time.December,
}

var frenchWeekdays = map[string]time.Weekday{
	"lundi":    time.Monday,
	"mardi":    time.Tuesday,
	"mercredi": time.Wednesday,
	"jeudi":    time.Thursday,
	"vendredi": time.Friday,
	"samedi":   time.Saturday,
	"dimanche": time.Sunday,
	"lun":      time.Monday,
	"mar":      time.Tuesday,
	"mer":      time.Wednesday,
	"jeu":      time.Thursday,
	"ven":      time.Friday,
	"sam":      time.Saturday,
	"dim":      time.Sunday,
}

// zoneAbbreviations maps the abbreviations Eventbrite prints after a time
// range to their UTC offset.
var zoneAbbreviations = map[string]string{
	"UTC":  "+0",
	"GMT":  "+0",
	"WET":  "+0",
	"BST":  "+1",
	"WEST": "+1",
	"CET":  "+1",
	"CEST": "+2",
	"EET":  "+2",
	"EEST": "+3",
}

func key(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	return strings.ToLower(norm.NFC.String(s))
}

func frenchMonth(s string) (time.Month, bool) {
	k := key(s)
	if m, ok := frenchMonths[k]; ok {
		return m, true
	}
	m, ok := frenchShortMonths[k]
	return m, ok
}

func englishMonth(s string) (time.Month, bool) {
	m, ok := englishMonths[key(s)]
	return m, ok
}

func isFrenchWeekday(s string) bool {
	_, ok := frenchWeekdays[key(s)]
	return ok
}
