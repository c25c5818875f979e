// Package dates converts the date-range phrases published by workshop
// listing sites into (start, end) civil timestamps.
//
// A Parser holds an ordered list of grammars. Each grammar recognizes one
// family of phrases ("16 mai 2025, de 18h30 à 21h30 (heure de Paris)",
// "Thu Oct 19, 2023 from 01:00 PM to 02:00 PM", ...) and the parser commits
// to the first grammar whose pattern matches the beginning of the phrase.
// Order is significant: several patterns are prefixes of others.
//
// Phrases matching no grammar, or matching one but carrying an impossible
// date, fail with *FormatError. A timezone token outside the configured
// allowlist fails with *TimezoneMismatchError.
package dates
