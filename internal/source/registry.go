package source

import (
	"context"
	"strings"

	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
)

// Adapter reads one family of sources. Collect returns the raw events of a
// single source; an error means the source was abandoned and any events
// gathered so far are discarded.
type Adapter interface {
	Name() string
	Kind() Kind
	Patterns() []string
	SkipPastByDefault() bool
	Collect(ctx context.Context, d Descriptor) ([]normalize.RawEvent, error)
}

// Registry routes descriptors to adapters by URL substring.
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry holding adapters in priority order.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Register appends an adapter.
func (r *Registry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// Adapters returns the registered adapters in order.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// Match returns the first adapter of the descriptor's kind whose pattern
// appears in its URL.
func (r *Registry) Match(d Descriptor) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Kind() != d.Type {
			continue
		}
		for _, p := range a.Patterns() {
			if strings.Contains(d.URL, p) {
				return a, true
			}
		}
	}
	return nil, false
}

// Assignment groups the sources handled by one adapter.
type Assignment struct {
	Adapter Adapter
	Sources []Descriptor
}

// Route groups descriptors by adapter, in adapter registration order, and
// returns the descriptors no adapter claims.
func (r *Registry) Route(descs []Descriptor) ([]Assignment, []Descriptor) {
	byAdapter := make(map[Adapter][]Descriptor)
	var unmatched []Descriptor
	for _, d := range descs {
		a, ok := r.Match(d)
		if !ok {
			unmatched = append(unmatched, d)
			continue
		}
		byAdapter[a] = append(byAdapter[a], d)
	}

	var out []Assignment
	for _, a := range r.adapters {
		if sources, ok := byAdapter[a]; ok {
			out = append(out, Assignment{Adapter: a, Sources: sources})
		}
	}
	return out, unmatched
}
