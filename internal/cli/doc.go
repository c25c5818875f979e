// Package cli implements the fresk-scraper command line.
//
// The root command scrapes every source of a country, writes the results
// directory, prints a summary (or the records as iCalendar) and optionally
// pushes the records to the database. parse-date and sources help debug
// the date grammars and the source routing.
package cli
