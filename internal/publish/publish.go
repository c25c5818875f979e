// Package publish sends the records of a run to their destination: the
// Trouver une Fresque database, or the terminal for a dry run.
package publish

import (
	"context"

	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
)

// Publisher delivers the accepted records of a run.
type Publisher interface {
	Publish(ctx context.Context, records []*event.Record) error
}
