package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultSettle   = 2 * time.Second
	DefaultInterval = time.Second
)

// Chrome is a Session backed by a headless (or visible) Chrome.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	timeout time.Duration
	settle  time.Duration
	limiter *rate.Limiter

	doc *goquery.Document
	url string
}

// NewChrome starts a browser. Close must be called to stop it.
func NewChrome(ctx context.Context, cfg Config) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1366, 900),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	bctx, cancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(bctx); err != nil {
		cancel()
		allocCancel()
		return nil, &FatalError{Op: "start", Err: eris.Wrap(err, "launch chrome")}
	}

	c := &Chrome{
		ctx:         bctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     cfg.Timeout,
		settle:      cfg.Settle,
		limiter:     rate.NewLimiter(rate.Every(DefaultInterval), 1),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.settle <= 0 {
		c.settle = DefaultSettle
	}
	if cfg.Interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.Interval), 1)
	}
	zap.L().Debug("chrome session started", zap.Bool("headless", cfg.Headless))
	return c, nil
}

// run executes actions on the browser context, bounded by the session
// timeout and cancelled along with ctx.
func (c *Chrome) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return classify(ctx, op, err)
	}
	return nil
}

// snapshot reads the DOM and the current URL after the page settles.
func (c *Chrome) snapshot(ctx context.Context, op string) error {
	var html, loc string
	err := c.run(ctx, op,
		chromedp.Sleep(c.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&loc),
	)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &FatalError{Op: op, Err: eris.Wrap(err, "parse dom snapshot")}
	}
	c.doc = doc
	c.url = loc
	return nil
}

// Navigate loads rawURL and waits for its body.
func (c *Chrome) Navigate(ctx context.Context, rawURL string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &FatalError{Op: "navigate", Err: err}
	}
	if err := c.run(ctx, "navigate",
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return err
	}
	return c.snapshot(ctx, "navigate")
}

// Find returns the first element of the snapshot matching selector.
func (c *Chrome) Find(_ context.Context, selector string) (*Element, error) {
	if c.doc == nil {
		return nil, eris.Wrapf(ErrNotFound, "selector %q: no page loaded", selector)
	}
	return first(c.doc.Find(selector), selector)
}

// FindAll returns the snapshot elements matching selector.
func (c *Chrome) FindAll(_ context.Context, selector string) ([]*Element, error) {
	if c.doc == nil {
		return nil, nil
	}
	return all(c.doc.Find(selector)), nil
}

// Click clicks the first visible element matching selector.
func (c *Chrome) Click(ctx context.Context, selector string) error {
	if _, err := c.Find(ctx, selector); err != nil {
		return err
	}
	if err := c.run(ctx, "click",
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return err
	}
	return c.snapshot(ctx, "click")
}

// ClickText clicks the first element matching selector whose text is text.
func (c *Chrome) ClickText(ctx context.Context, selector, text string) error {
	if c.doc == nil || withText(c.doc.Find(selector), text).Length() == 0 {
		return eris.Wrapf(ErrNotFound, "selector %q with text %q", selector, text)
	}
	sel, _ := json.Marshal(selector)
	want, _ := json.Marshal(text)
	script := fmt.Sprintf(`(() => {
		for (const el of document.querySelectorAll(%s)) {
			if (el.textContent.trim() === %s) { el.click(); return true; }
		}
		return false;
	})()`, sel, want)

	var clicked bool
	if err := c.run(ctx, "click", chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return &TransientError{Op: "click", Err: eris.Errorf("element %q with text %q went stale", selector, text)}
	}
	return c.snapshot(ctx, "click")
}

// ScrollToBottom scrolls the window so lazy lists load their next items.
func (c *Chrome) ScrollToBottom(ctx context.Context) error {
	if err := c.run(ctx, "scroll",
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
	); err != nil {
		return err
	}
	return c.snapshot(ctx, "scroll")
}

// CurrentURL returns the URL at the last snapshot.
func (c *Chrome) CurrentURL() string { return c.url }

// Back goes one step back in history.
func (c *Chrome) Back(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &FatalError{Op: "back", Err: err}
	}
	if err := c.run(ctx, "back",
		chromedp.NavigateBack(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return err
	}
	return c.snapshot(ctx, "back")
}

// Close stops the browser.
func (c *Chrome) Close() error {
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	c.allocCancel()
	if err != nil && !eris.Is(err, context.Canceled) {
		return eris.Wrap(err, "browser: close")
	}
	return nil
}

var transientMessages = []string{
	"could not find node",
	"node with given id",
	"detached",
	"stale",
	"execution context was destroyed",
	"cannot find context with specified id",
	"context deadline exceeded",
}

func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return &FatalError{Op: op, Err: err}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return &TransientError{Op: op, Err: err}
		}
	}
	return &FatalError{Op: op, Err: err}
}
