package scraper

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/browser"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

// siteLayout knows where a site puts things.
type siteLayout interface {
	name() string
	patterns() []string
	// links walks the listing of d and returns the event pages, in order.
	links(ctx context.Context, sess browser.Session, d source.Descriptor) ([]string, error)
	// events reads the event page the session is on. One page may hold
	// several sessions.
	events(ctx context.Context, sess browser.Session, d source.Descriptor, link string) ([]normalize.RawEvent, error)
}

// linkFilter is implemented by layouts whose listings are shared between
// sources and narrowed by the descriptor's filter keyword.
type linkFilter interface {
	keep(d source.Descriptor, link string) bool
}

// Scraper is a browser-driven source adapter.
type Scraper struct {
	layout   siteLayout
	open     browser.Opener
	attempts int
	backoff  time.Duration
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithRetry sets the retry budget for transient page failures.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Scraper) {
		s.attempts = attempts
		s.backoff = backoff
	}
}

func newScraper(layout siteLayout, open browser.Opener, opts ...Option) *Scraper {
	s := &Scraper{
		layout:   layout,
		open:     open,
		attempts: browser.DefaultAttempts,
		backoff:  browser.DefaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// All returns the browser adapters in routing order.
func All(open browser.Opener, opts ...Option) []source.Adapter {
	layouts := []siteLayout{
		billetweb{},
		fdc{},
		eventbrite{},
		fec{},
		glide{},
		helloasso{},
	}
	out := make([]source.Adapter, 0, len(layouts))
	for _, l := range layouts {
		out = append(out, newScraper(l, open, opts...))
	}
	return out
}

func (s *Scraper) Name() string            { return s.layout.name() }
func (s *Scraper) Kind() source.Kind       { return source.KindScraper }
func (s *Scraper) Patterns() []string      { return s.layout.patterns() }
func (s *Scraper) SkipPastByDefault() bool { return false }

// Collect opens a session, walks the listing of d and reads every event
// page. Pages missing a required element become rejected events; any
// other failure abandons the source.
func (s *Scraper) Collect(ctx context.Context, d source.Descriptor) (out []normalize.RawEvent, err error) {
	log := zap.L().With(zap.String("adapter", s.Name()), zap.Stringer("source", d))
	log.Info("scraping source", zap.String("url", d.URL))

	sess, err := s.open(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: open session", s.Name())
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("closing browser session", zap.Error(cerr))
		}
	}()

	var links []string
	err = browser.Retry(ctx, s.attempts, s.backoff, func(ctx context.Context) error {
		var err error
		links, err = s.layout.links(ctx, sess, d)
		return err
	})
	if err != nil {
		return nil, eris.Wrapf(err, "%s: read listing of %s", s.Name(), d.URL)
	}
	log.Info("found event pages", zap.Int("count", len(links)))

	filter, _ := s.layout.(linkFilter)
	for i, link := range links {
		log.Info("processing event", zap.Int("index", i+1), zap.Int("total", len(links)), zap.String("link", link))

		if filter != nil && !filter.keep(d, link) {
			out = append(out, failed(d, link, normalize.ErrFilteredOut))
			continue
		}

		var events []normalize.RawEvent
		err := browser.Retry(ctx, s.attempts, s.backoff, func(ctx context.Context) error {
			if err := sess.Navigate(ctx, link); err != nil {
				return err
			}
			var err error
			events, err = s.layout.events(ctx, sess, d, link)
			return err
		})

		var missing *normalize.RequiredFieldMissingError
		switch {
		case err == nil:
			out = append(out, events...)
		case errors.As(err, &missing):
			out = append(out, failed(d, link, missing))
		case errors.Is(err, browser.ErrNotFound):
			out = append(out, failed(d, link, &normalize.RequiredFieldMissingError{Field: err.Error()}))
		default:
			return nil, eris.Wrapf(err, "%s: read event %s", s.Name(), link)
		}
	}
	return out, nil
}

// baseEvent fills the fields every layout copies from the descriptor.
func baseEvent(d source.Descriptor, link string) normalize.RawEvent {
	return normalize.RawEvent{
		SourceID:       string(d.ID),
		SourceLanguage: d.LanguageCode,
		SourceLink:     link,
	}
}

func failed(d source.Descriptor, link string, err error) normalize.RawEvent {
	raw := baseEvent(d, link)
	raw.Err = err
	return raw
}

func missingField(field string) error {
	return &normalize.RequiredFieldMissingError{Field: field}
}

// text returns the text of the first selector that matches.
func text(ctx context.Context, sess browser.Session, selectors ...string) (string, bool) {
	for _, sel := range selectors {
		if el, err := sess.Find(ctx, sel); err == nil {
			return strings.TrimSpace(el.Text()), true
		}
	}
	return "", false
}

// requireText is text for an element the event cannot do without.
func requireText(ctx context.Context, sess browser.Session, field string, selectors ...string) (string, error) {
	s, ok := text(ctx, sess, selectors...)
	if !ok {
		return "", missingField(field)
	}
	return s, nil
}

// hrefs returns the resolved, de-duplicated href of every match.
func hrefs(ctx context.Context, sess browser.Session, selector string) ([]string, error) {
	els, err := sess.FindAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(els))
	out := make([]string, 0, len(els))
	for _, el := range els {
		href := el.Attr("href")
		if href == "" {
			continue
		}
		abs, err := browser.Resolve(sess.CurrentURL(), href)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out, nil
}

// openFrame navigates into the document of the first iframe matching
// selector.
func openFrame(ctx context.Context, sess browser.Session, selector string) error {
	el, err := sess.Find(ctx, selector)
	if err != nil {
		return err
	}
	src := el.Attr("src")
	if src == "" {
		return eris.Wrapf(browser.ErrNotFound, "iframe %q has no src", selector)
	}
	abs, err := browser.Resolve(sess.CurrentURL(), src)
	if err != nil {
		return &browser.FatalError{Op: "frame", Err: err}
	}
	return sess.Navigate(ctx, abs)
}

const maxLoadMore = 100

// loadMore clicks selector until it disappears or stops responding.
// Clicks that fail are tolerated up to maxFailures.
func loadMore(ctx context.Context, sess browser.Session, selector string, maxFailures int) {
	failures := 0
	for i := 0; i < maxLoadMore; i++ {
		if _, err := sess.Find(ctx, selector); err != nil {
			return
		}
		if err := sess.Click(ctx, selector); err != nil {
			failures++
			zap.L().Debug("load more failed", zap.String("selector", selector), zap.Error(err))
			if failures >= maxFailures {
				return
			}
		}
	}
}

// clickIfPresent clicks an optional expander and ignores failures.
func clickIfPresent(ctx context.Context, sess browser.Session, selector string) {
	if _, err := sess.Find(ctx, selector); err != nil {
		return
	}
	if err := sess.Click(ctx, selector); err != nil {
		zap.L().Debug("optional click failed", zap.String("selector", selector), zap.Error(err))
	}
}

// lastSegment returns the last non-empty path element of link.
func lastSegment(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

func sameHost(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Host, ub.Host)
}
