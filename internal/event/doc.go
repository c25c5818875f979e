// Package event defines the canonical workshop record produced by a run and
// the snapshot used to compare one run with the previous one.
//
// A Record is created once by the normalizer and never mutated. Its id is
// "{source_id}-{event_id}"; reruns may legitimately emit the same id with
// different attribute values (a session that became sold out, for instance),
// which is what Diff reports.
package event
