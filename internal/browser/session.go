// Package browser drives listing pages for the scraper adapters.
//
// A Session navigates, clicks and scrolls; reads go through a goquery
// snapshot of the current DOM, so adapters query pages the same way whether
// they are rendered by Chrome or fetched as static HTML.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/trouver-une-fresque/fresk-scraper/internal/fetch"
)

// ErrNotFound is returned when a selector matches nothing. It is terminal
// for the element, never retried.
var ErrNotFound = errors.New("browser: element not found")

// TransientError is a failure that may go away on retry: a stale node, a
// detached execution context, a navigation that timed out.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("browser: %s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError aborts the current source.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("browser: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Session is one browser tab.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, selector string) (*Element, error)
	FindAll(ctx context.Context, selector string) ([]*Element, error)
	Click(ctx context.Context, selector string) error
	// ClickText clicks the first element matching selector whose text is text.
	ClickText(ctx context.Context, selector, text string) error
	ScrollToBottom(ctx context.Context) error
	CurrentURL() string
	Back(ctx context.Context) error
	Close() error
}

// Driver names a Session implementation.
type Driver string

const (
	DriverChrome Driver = "chrome"
	DriverStatic Driver = "static"
)

// Config configures sessions.
type Config struct {
	Driver    Driver        `yaml:"driver" mapstructure:"driver"`
	Headless  bool          `yaml:"headless" mapstructure:"headless"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Settle is how long to wait after a navigation or click before the DOM
	// is read.
	Settle time.Duration `yaml:"settle" mapstructure:"settle"`
	// Interval is the minimum delay between two navigations.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// Opener acquires a session. Callers close it when done.
type Opener func(ctx context.Context) (Session, error)

// NewOpener returns an Opener for cfg. client serves the static driver.
func NewOpener(cfg Config, client *fetch.Client) Opener {
	return func(ctx context.Context) (Session, error) {
		switch cfg.Driver {
		case DriverStatic:
			return NewStatic(client), nil
		case DriverChrome, "":
			return NewChrome(ctx, cfg)
		default:
			return nil, eris.Errorf("browser: unknown driver %q", cfg.Driver)
		}
	}
}

// Element is a node of a DOM snapshot.
type Element struct {
	sel *goquery.Selection
}

// NewElement wraps a goquery selection.
func NewElement(sel *goquery.Selection) *Element {
	return &Element{sel: sel}
}

// Text returns the rendered text, one line per block element.
func (e *Element) Text() string {
	return innerText(e.sel)
}

// Attr returns an attribute value, or "" when absent.
func (e *Element) Attr(name string) string {
	v, _ := e.sel.Attr(name)
	return strings.TrimSpace(v)
}

// HasClass reports whether the element carries class.
func (e *Element) HasClass(class string) bool {
	return e.sel.HasClass(class)
}

// HTML returns the inner HTML.
func (e *Element) HTML() string {
	h, _ := e.sel.Html()
	return h
}

// Parent returns the parent element.
func (e *Element) Parent() *Element {
	return &Element{sel: e.sel.Parent()}
}

// Find returns the first descendant matching selector.
func (e *Element) Find(selector string) (*Element, error) {
	return first(e.sel.Find(selector), selector)
}

// FindAll returns every descendant matching selector.
func (e *Element) FindAll(selector string) []*Element {
	return all(e.sel.Find(selector))
}

// Selection exposes the underlying goquery selection.
func (e *Element) Selection() *goquery.Selection {
	return e.sel
}

func first(sel *goquery.Selection, selector string) (*Element, error) {
	if sel.Length() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "selector %q", selector)
	}
	return &Element{sel: sel.First()}, nil
}

// withText narrows sel to the elements whose trimmed text is text.
func withText(sel *goquery.Selection, text string) *goquery.Selection {
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == text
	})
}

func all(sel *goquery.Selection) []*Element {
	out := make([]*Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s})
	})
	return out
}
