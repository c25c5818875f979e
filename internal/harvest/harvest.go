// Package harvest runs a scrape: it routes the sources of a country to
// their adapters, normalizes every raw event and keeps the records that
// survive, one source at a time.
package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

// Normalizer turns a raw event into a record or a rejection.
// *normalize.Normalizer implements it.
type Normalizer interface {
	Normalize(ctx context.Context, raw normalize.RawEvent) (*event.Record, *normalize.Rejection)
}

// Recorder receives the per-source counts of a run. *logger.Metrics
// implements it.
type Recorder interface {
	Accepted(source string)
	Rejected(source, reason string)
	SourceFailed(source string)
}

type nopRecorder struct{}

func (nopRecorder) Accepted(string)         {}
func (nopRecorder) Rejected(string, string) {}
func (nopRecorder) SourceFailed(string)     {}

// SourceFailure is a source abandoned because its adapter returned an error.
type SourceFailure struct {
	Source  source.Descriptor
	Adapter string
	Err     error
}

// Result is everything a run produced.
type Result struct {
	RunID      string
	ScrapedAt  time.Time
	Records    []*event.Record
	Rejections []*normalize.Rejection
	Failures   []SourceFailure
	Unmatched  []source.Descriptor
	// Interrupted is set when the context was canceled before every source ran.
	Interrupted bool
}

// Summary counts the rejections per reason.
func (r *Result) Summary() normalize.Summary {
	return normalize.Summarize(r.Rejections)
}

// Harvester runs adapters sequentially.
type Harvester struct {
	registry   *source.Registry
	normalizer Normalizer
	metrics    Recorder
	skipPast   *bool
	now        func() time.Time
	runID      func() string
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithMetrics sets the recorder fed during the run.
func WithMetrics(r Recorder) Option {
	return func(h *Harvester) {
		if r != nil {
			h.metrics = r
		}
	}
}

// WithSkipPast overrides the adapters' default for sources that do not set
// skip_past themselves.
func WithSkipPast(skip *bool) Option {
	return func(h *Harvester) { h.skipPast = skip }
}

// WithClock sets the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(h *Harvester) { h.now = now }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(h *Harvester) { h.runID = func() string { return id } }
}

// New creates a Harvester.
func New(registry *source.Registry, normalizer Normalizer, opts ...Option) *Harvester {
	h := &Harvester{
		registry:   registry,
		normalizer: normalizer,
		metrics:    nopRecorder{},
		now:        time.Now,
		runID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run collects every source. Failures of a source or of a single event
// never stop the run; a canceled context stops it between sources and the
// records accepted so far are still returned.
func (h *Harvester) Run(ctx context.Context, descs []source.Descriptor) *Result {
	res := &Result{
		RunID:     h.runID(),
		ScrapedAt: h.now().Truncate(time.Second),
	}
	log := zap.L().With(zap.String("run_id", res.RunID))

	assignments, unmatched := h.registry.Route(descs)
	for _, d := range unmatched {
		log.Warn("no adapter for source", zap.String("source_id", string(d.ID)), zap.String("url", d.URL))
		h.metrics.SourceFailed(string(d.ID))
	}
	res.Unmatched = unmatched

	seen := make(map[string]bool)
	for _, a := range assignments {
		log.Info("running adapter", zap.String("adapter", a.Adapter.Name()), zap.Int("sources", len(a.Sources)))
		for _, d := range a.Sources {
			if ctx.Err() != nil {
				log.Warn("run interrupted", zap.Error(ctx.Err()))
				res.Interrupted = true
				h.finish(log, res)
				return res
			}
			h.collect(ctx, log, a.Adapter, d, res, seen)
		}
	}
	h.finish(log, res)
	return res
}

func (h *Harvester) collect(ctx context.Context, log *zap.Logger, a source.Adapter, d source.Descriptor, res *Result, seen map[string]bool) {
	log = log.With(zap.String("adapter", a.Name()), zap.String("source_id", string(d.ID)))
	log.Info("collecting source", zap.String("name", d.Name))

	raws, err := h.safeCollect(ctx, a, d)
	if err != nil {
		log.Error("source abandoned", zap.Error(err))
		res.Failures = append(res.Failures, SourceFailure{Source: d, Adapter: a.Name(), Err: err})
		h.metrics.SourceFailed(string(d.ID))
		return
	}

	skipPast := h.resolveSkipPast(a, d)
	accepted := 0
	for _, raw := range raws {
		raw.SkipPast = skipPast
		rec, rej := h.normalize(ctx, raw)
		if rej == nil && seen[rec.ID] {
			log.Warn("duplicate record id", zap.String("id", rec.ID), zap.String("link", rec.TicketsLink))
			rej = normalize.NewRejection(raw, normalize.ReasonDuplicate, eris.Errorf("harvest: duplicate id %s", rec.ID))
		}
		if rej != nil {
			res.Rejections = append(res.Rejections, rej)
			h.metrics.Rejected(rej.SourceID, string(rej.Reason))
			continue
		}
		seen[rec.ID] = true
		rec.ScrapedAt = res.ScrapedAt
		res.Records = append(res.Records, rec)
		h.metrics.Accepted(rec.SourceID)
		accepted++
	}
	log.Info("source done", zap.Int("raw", len(raws)), zap.Int("accepted", accepted))
}

// resolveSkipPast picks the source's own setting, then the global
// override, then the adapter default.
func (h *Harvester) resolveSkipPast(a source.Adapter, d source.Descriptor) bool {
	switch {
	case d.SkipPast != nil:
		return *d.SkipPast
	case h.skipPast != nil:
		return *h.skipPast
	}
	return a.SkipPastByDefault()
}

func (h *Harvester) safeCollect(ctx context.Context, a source.Adapter, d source.Descriptor) (raws []normalize.RawEvent, err error) {
	defer func() {
		if p := recover(); p != nil {
			raws, err = nil, eris.Errorf("harvest: adapter %s panicked: %v", a.Name(), p)
		}
	}()
	return a.Collect(ctx, d)
}

func (h *Harvester) normalize(ctx context.Context, raw normalize.RawEvent) (rec *event.Record, rej *normalize.Rejection) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("recovered panic while normalizing",
				zap.String("source_id", raw.SourceID),
				zap.String("event_id", raw.EventID),
				zap.String("panic", fmt.Sprint(p)))
			rec = nil
			rej = normalize.NewRejection(raw, normalize.ReasonUnexpected, eris.Errorf("harvest: panic: %v", p))
		}
	}()
	return h.normalizer.Normalize(ctx, raw)
}

func (h *Harvester) finish(log *zap.Logger, res *Result) {
	fields := []zap.Field{
		zap.Int("records", len(res.Records)),
		zap.Int("rejections", len(res.Rejections)),
		zap.Int("failed_sources", len(res.Failures)),
		zap.Int("unmatched_sources", len(res.Unmatched)),
	}
	for reason, n := range res.Summary() {
		fields = append(fields, zap.Int("rejected_"+string(reason), n))
	}
	log.Info("run summary", fields...)
}
