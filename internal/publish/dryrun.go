package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
)

// DryRun prints what would be pushed without touching the database.
type DryRun struct {
	w io.Writer
}

// NewDryRun creates a dry-run publisher writing to w, or stdout when nil.
func NewDryRun(w io.Writer) *DryRun {
	if w == nil {
		w = os.Stdout
	}
	return &DryRun{w: w}
}

// Publish prints one row per record and the total.
func (d *DryRun) Publish(_ context.Context, records []*event.Record) error {
	tw := tabwriter.NewWriter(d.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tWHERE\tFLAGS\tTITLE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.StartAt.Format("2006-01-02 15:04"), where(r), flags(r), truncate(r.Title, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(d.w, "\n%d records would be pushed\n", len(records))
	return err
}

func where(r *event.Record) string {
	if r.Online {
		return "online"
	}
	return r.City
}

func flags(r *event.Record) string {
	out := ""
	for _, f := range []struct {
		on    bool
		label string
	}{{r.SoldOut, "S"}, {r.Training, "T"}, {r.Kids, "K"}} {
		if f.on {
			out += f.label
		}
	}
	if out == "" {
		return "-"
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
