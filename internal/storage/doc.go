// Package storage lays out the results of a run on disk.
//
// Every run writes into its own timestamped directory:
//
//	results/{country}/{YYYYMMDD_HHMMSS}/events_{ts}.json
//	results/{country}/{YYYYMMDD_HHMMSS}/rejections_{ts}.jsonl
//	results/{country}/{YYYYMMDD_HHMMSS}/summary_{ts}.json
//
// and refreshes results/{country}/latest.json, the snapshot the next run is
// diffed against.
package storage
