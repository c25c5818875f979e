// Package fetch downloads pages and API payloads for the feed adapters.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent = "fresk-scraper/1.0 (trouverunefresque.org)"
	DefaultTimeout   = 30 * time.Second
	DefaultInterval  = 500 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Interval is the minimum delay between two requests to the same host.
	// Zero uses DefaultInterval; a negative value disables the delay.
	Interval time.Duration
}

// StatusError is returned for any response other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client is an HTTP client with a per-host request delay.
type Client struct {
	client    *http.Client
	userAgent string
	interval  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	return &Client{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		interval:  opts.Interval,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		if c.interval < 0 {
			lim = rate.NewLimiter(rate.Inf, 1)
		} else {
			lim = rate.NewLimiter(rate.Every(c.interval), 1)
		}
		c.limiters[host] = lim
	}
	return lim
}

// Get returns the body of rawURL decoded to UTF-8.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	zap.L().Debug("fetched",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := decodeBody(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: read body of %s", rawURL)
	}
	return data, nil
}

// GetJSON fetches rawURL and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	data, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "fetch: decode json from %s", rawURL)
	}
	return nil
}

func decodeBody(r io.Reader, contentType string) (io.Reader, error) {
	if contentType == "" {
		return r, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r, nil
	}
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}
