// Package config loads the scraper configuration from an optional
// config.yaml and FRESK_* environment variables, and sets up logging.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trouver-une-fresque/fresk-scraper/internal/browser"
	"github.com/trouver-une-fresque/fresk-scraper/internal/dates"
	"github.com/trouver-une-fresque/fresk-scraper/internal/language"
	"github.com/trouver-une-fresque/fresk-scraper/internal/location"
	"github.com/trouver-une-fresque/fresk-scraper/internal/normalize"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Run      RunConfig      `yaml:"run" mapstructure:"run"`
	Policy   PolicyConfig   `yaml:"policy" mapstructure:"policy"`
	Dates    DatesConfig    `yaml:"dates" mapstructure:"dates"`
	Language LanguageConfig `yaml:"language" mapstructure:"language"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Browser  browser.Config `yaml:"browser" mapstructure:"browser"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RunConfig locates inputs and outputs of a run.
type RunConfig struct {
	Country      string `yaml:"country" mapstructure:"country"`
	CountriesDir string `yaml:"countries_dir" mapstructure:"countries_dir"`
	ResultsDir   string `yaml:"results_dir" mapstructure:"results_dir"`
	// Timezone is the IANA zone the sources' wall-clock times are read in.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// PolicyConfig holds the acceptance rules of the normalizer.
type PolicyConfig struct {
	MaxDuration   time.Duration `yaml:"max_duration" mapstructure:"max_duration"`
	SoldOut       string        `yaml:"sold_out" mapstructure:"sold_out"`
	RejectPlenary bool          `yaml:"reject_plenary" mapstructure:"reject_plenary"`
	// SkipPast overrides the adapters' default for sources that leave
	// skip_past unset. Empty keeps the defaults.
	SkipPast string `yaml:"skip_past" mapstructure:"skip_past"`
}

// DatesConfig tunes the date-phrase parser.
type DatesConfig struct {
	AllowedOffsets  []string      `yaml:"allowed_offsets" mapstructure:"allowed_offsets"`
	DefaultDuration time.Duration `yaml:"default_duration" mapstructure:"default_duration"`
}

// LanguageConfig lists the languages records may carry.
type LanguageConfig struct {
	Supported []string `yaml:"supported" mapstructure:"supported"`
}

// GeocodeConfig configures the Nominatim resolver and its cache.
type GeocodeConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Interval  time.Duration `yaml:"interval" mapstructure:"interval"`
	CachePath string        `yaml:"cache_path" mapstructure:"cache_path"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// FetchConfig configures the HTTP client used by feeds and static pages.
type FetchConfig struct {
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Interval  time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DatabaseConfig points at the Trouver une Fresque database.
type DatabaseConfig struct {
	URL   string `yaml:"url" mapstructure:"url"`
	Table string `yaml:"table" mapstructure:"table"`
}

// MetricsConfig configures the end-of-run metrics export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// Load reads configuration from file and environment. path names an
// explicit config file; empty looks for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FRESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("run.country", "fr")
	v.SetDefault("run.countries_dir", "countries")
	v.SetDefault("run.results_dir", "results")
	v.SetDefault("run.timezone", "Europe/Paris")
	v.SetDefault("policy.max_duration", "24h")
	v.SetDefault("policy.sold_out", string(normalize.SoldOutKeep))
	v.SetDefault("policy.reject_plenary", true)
	v.SetDefault("policy.skip_past", "")
	v.SetDefault("dates.allowed_offsets", dates.DefaultAllowedOffsets)
	v.SetDefault("dates.default_duration", dates.DefaultDuration)
	v.SetDefault("language.supported", language.DefaultSupported)
	v.SetDefault("geocode.base_url", location.DefaultBaseURL)
	v.SetDefault("geocode.user_agent", location.DefaultUserAgent)
	v.SetDefault("geocode.interval", "1s")
	v.SetDefault("geocode.cache_path", "geocode_cache.db")
	v.SetDefault("geocode.cache_ttl", location.DefaultCacheTTL)
	v.SetDefault("browser.driver", string(browser.DriverChrome))
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.timeout", "60s")
	v.SetDefault("browser.settle", "1s")
	v.SetDefault("browser.interval", "2s")
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.interval", "500ms")
	v.SetDefault("database.url", "")
	v.SetDefault("database.table", "private.events_future")
	v.SetDefault("metrics.textfile", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch normalize.SoldOutPolicy(c.Policy.SoldOut) {
	case normalize.SoldOutKeep, normalize.SoldOutReject:
	default:
		return eris.Errorf("config: policy.sold_out must be keep or reject, got %q", c.Policy.SoldOut)
	}
	if _, err := c.SkipPast(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Run.Timezone); err != nil {
		return eris.Wrapf(err, "config: run.timezone %q", c.Run.Timezone)
	}
	return nil
}

// NormalizePolicy converts the policy section.
func (c *Config) NormalizePolicy() normalize.Policy {
	return normalize.Policy{
		MaxDuration:   c.Policy.MaxDuration,
		SoldOut:       normalize.SoldOutPolicy(c.Policy.SoldOut),
		RejectPlenary: c.Policy.RejectPlenary,
	}
}

// SkipPast returns the global skip_past override, nil when unset.
func (c *Config) SkipPast() (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(c.Policy.SkipPast)) {
	case "":
		return nil, nil
	case "true", "yes", "1":
		v := true
		return &v, nil
	case "false", "no", "0":
		v := false
		return &v, nil
	}
	return nil, eris.Errorf("config: policy.skip_past must be true, false or empty, got %q", c.Policy.SkipPast)
}

// Location loads the run timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Run.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: run.timezone %q", c.Run.Timezone)
	}
	return loc, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
