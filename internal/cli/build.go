package cli

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/api"
	"github.com/trouver-une-fresque/fresk-scraper/internal/browser"
	"github.com/trouver-une-fresque/fresk-scraper/internal/config"
	"github.com/trouver-une-fresque/fresk-scraper/internal/dates"
	"github.com/trouver-une-fresque/fresk-scraper/internal/fetch"
	"github.com/trouver-une-fresque/fresk-scraper/internal/language"
	"github.com/trouver-une-fresque/fresk-scraper/internal/location"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
	"github.com/trouver-une-fresque/fresk-scraper/internal/scraper"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
)

// newParser builds the date parser for the run timezone.
func newParser(cfg *config.Config, loc *time.Location) *dates.Parser {
	return dates.NewParser(
		dates.WithLocation(loc),
		dates.WithAllowedOffsets(cfg.Dates.AllowedOffsets),
		dates.WithDefaultDuration(cfg.Dates.DefaultDuration),
	)
}

// newRegistry registers the feed adapters, then the browser ones.
func newRegistry(cfg *config.Config, loc *time.Location) *source.Registry {
	client := fetch.New(fetch.Options{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
		Interval:  cfg.Fetch.Interval,
	})
	reg := source.NewRegistry(api.All(client, loc)...)
	for _, a := range scraper.All(browser.NewOpener(cfg.Browser, client)) {
		reg.Register(a)
	}
	return reg
}

// newResolver wraps the geocoder with its SQLite cache. Without a cache
// path, or when the cache cannot be opened, the geocoder is used directly.
func newResolver(ctx context.Context, cfg *config.Config) (location.Resolver, func()) {
	nominatim := location.NewNominatim(
		location.WithBaseURL(cfg.Geocode.BaseURL),
		location.WithUserAgent(cfg.Geocode.UserAgent),
		location.WithInterval(cfg.Geocode.Interval),
	)
	if cfg.Geocode.CachePath == "" {
		return nominatim, func() {}
	}
	cache, err := location.OpenCache(ctx, cfg.Geocode.CachePath, cfg.Geocode.CacheTTL)
	if err != nil {
		zap.L().Warn("geocode cache disabled", zap.String("path", cfg.Geocode.CachePath), zap.Error(err))
		return nominatim, func() {}
	}
	if n, err := cache.Purge(ctx); err != nil {
		zap.L().Warn("geocode cache purge failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("purged expired geocode entries", zap.Int64("count", n))
	}
	return location.NewCachedResolver(nominatim, cache), func() {
		if err := cache.Close(); err != nil {
			zap.L().Warn("closing geocode cache", zap.Error(err))
		}
	}
}

func newNormalizer(cfg *config.Config, parser *dates.Parser, resolver location.Resolver) *normalize.Normalizer {
	return normalize.New(parser, resolver, language.NewDetector(cfg.Language.Supported), cfg.NormalizePolicy())
}
