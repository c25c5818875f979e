// Package location resolves the free-text venue of an in-person workshop
// into a structured postal address with coordinates.
//
// Resolution is all-or-nothing: a Resolver either returns an Address whose
// every field is populated or fails with *UnresolvableError. The Nominatim
// client queries OpenStreetMap; CachedResolver keeps results, negative ones
// included, in a SQLite table so reruns do not hit the geocoder again.
package location
