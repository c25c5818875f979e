package browser

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/trouver-une-fresque/fresk-scraper/internal/fetch"
)

// Static is a Session over plain HTTP. It cannot run scripts: clicks follow
// the href of the clicked element and scrolling does nothing.
type Static struct {
	client  *fetch.Client
	doc     *goquery.Document
	url     string
	history []string
}

// NewStatic creates a static session.
func NewStatic(client *fetch.Client) *Static {
	return &Static{client: client}
}

// Navigate loads rawURL.
func (s *Static) Navigate(ctx context.Context, rawURL string) error {
	if err := s.load(ctx, rawURL); err != nil {
		return err
	}
	if s.url != "" {
		s.history = append(s.history, s.url)
	}
	s.url = rawURL
	return nil
}

func (s *Static) load(ctx context.Context, rawURL string) error {
	data, err := s.client.Get(ctx, rawURL)
	if err != nil {
		var se *fetch.StatusError
		switch {
		case ctx.Err() != nil:
			return &FatalError{Op: "navigate", Err: err}
		case errors.As(err, &se) && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests:
			return &FatalError{Op: "navigate", Err: err}
		}
		return &TransientError{Op: "navigate", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return &FatalError{Op: "navigate", Err: eris.Wrap(err, "parse html")}
	}
	s.doc = doc
	return nil
}

// Find returns the first element matching selector.
func (s *Static) Find(_ context.Context, selector string) (*Element, error) {
	if s.doc == nil {
		return nil, eris.Wrapf(ErrNotFound, "selector %q: no page loaded", selector)
	}
	return first(s.doc.Find(selector), selector)
}

// FindAll returns every element matching selector.
func (s *Static) FindAll(_ context.Context, selector string) ([]*Element, error) {
	if s.doc == nil {
		return nil, nil
	}
	return all(s.doc.Find(selector)), nil
}

// Click follows the link of the first element matching selector.
func (s *Static) Click(ctx context.Context, selector string) error {
	el, err := s.Find(ctx, selector)
	if err != nil {
		return err
	}
	return s.follow(ctx, el.sel, selector)
}

// ClickText follows the link of the first element matching selector whose
// text is text.
func (s *Static) ClickText(ctx context.Context, selector, text string) error {
	if s.doc == nil {
		return eris.Wrapf(ErrNotFound, "selector %q: no page loaded", selector)
	}
	sel := withText(s.doc.Find(selector), text)
	if sel.Length() == 0 {
		return eris.Wrapf(ErrNotFound, "selector %q with text %q", selector, text)
	}
	return s.follow(ctx, sel.First(), selector)
}

// follow navigates to the href of sel, of its closest link ancestor, or of
// its first link descendant.
func (s *Static) follow(ctx context.Context, sel *goquery.Selection, selector string) error {
	href, ok := sel.Attr("href")
	if !ok {
		href, ok = sel.Closest("a[href]").Attr("href")
	}
	if !ok {
		href, ok = sel.Find("a[href]").First().Attr("href")
	}
	if !ok || href == "" {
		return &FatalError{Op: "click", Err: eris.Errorf("selector %q is not a link", selector)}
	}
	target, err := Resolve(s.url, href)
	if err != nil {
		return &FatalError{Op: "click", Err: err}
	}
	return s.Navigate(ctx, target)
}

// ScrollToBottom is a no-op.
func (s *Static) ScrollToBottom(context.Context) error { return nil }

// CurrentURL returns the URL of the loaded page.
func (s *Static) CurrentURL() string { return s.url }

// Back reloads the previous page.
func (s *Static) Back(ctx context.Context) error {
	if len(s.history) == 0 {
		return &FatalError{Op: "back", Err: eris.New("no history")}
	}
	prev := s.history[len(s.history)-1]
	if err := s.load(ctx, prev); err != nil {
		return err
	}
	s.history = s.history[:len(s.history)-1]
	s.url = prev
	return nil
}

// Close releases nothing.
func (s *Static) Close() error { return nil }

// Resolve makes href absolute against base.
func Resolve(base, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", eris.Wrapf(err, "parse href %q", href)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "parse base url %q", base)
	}
	return b.ResolveReference(ref).String(), nil
}
