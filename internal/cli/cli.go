package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/config"
	"github.com/trouver-une-fresque/fresk-scraper/internal/dates"
	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
	"github.com/trouver-une-fresque/fresk-scraper/internal/filter"
	"github.com/trouver-une-fresque/fresk-scraper/internal/harvest"
	"github.com/trouver-une-fresque/fresk-scraper/internal/logger"
	"github.com/trouver-une-fresque/fresk-scraper/internal/publish"
	"github.com/trouver-une-fresque/fresk-scraper/internal/source"
	"github.com/trouver-une-fresque/fresk-scraper/internal/storage"
)

const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitInterrupted = 130
)

// ErrInterrupted is returned when a signal stopped the run early. The
// partial results have been written by then.
var ErrInterrupted = errors.New("cli: run interrupted")

var (
	flagConfig   string
	flagCountry  string
	flagVerbose  bool
	flagHeadless bool
	flagPushToDB bool
	flagDryRun   bool
	flagFormat   string
	flagSort     string
	flagHint     string

	flagDates    string
	flagCities   []string
	flagSources  []string
	flagWeekends bool
	flagOnline   bool
	flagInPerson bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fresk-scraper",
		Short: "Scrape fresk workshops into normalized records",
		Long: `Collects upcoming workshops from the ticketing sites and feeds listed
in countries/{country}.json, normalizes them and writes the accepted records
and the rejections to the results directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScrape,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&flagCountry, "country", "", "Country code selecting countries/{country}.json")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging and detailed output")

	cmd.Flags().BoolVar(&flagHeadless, "headless", false, "Run the browser without a window")
	cmd.Flags().BoolVar(&flagPushToDB, "push-to-db", false, "Upsert accepted records into the database")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print the records that would be pushed instead of pushing them")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text, json or ics")
	cmd.Flags().StringVar(&flagSort, "sort", "date", "Record order: date, source or title")

	cmd.Flags().StringVar(&flagDates, "dates", "", "Only print records starting in a range (2025-03, 2025-03-14, 2025-03-01..2025-04-15)")
	cmd.Flags().StringSliceVar(&flagCities, "city", nil, "Only print records in these cities")
	cmd.Flags().StringSliceVar(&flagSources, "source-id", nil, "Only print records of these sources")
	cmd.Flags().BoolVar(&flagWeekends, "weekends", false, "Only print records on Saturday or Sunday")
	cmd.Flags().BoolVar(&flagOnline, "online", false, "Only print online records")
	cmd.Flags().BoolVar(&flagInPerson, "in-person", false, "Only print in-person records")
	cmd.MarkFlagsMutuallyExclusive("online", "in-person")

	cmd.AddCommand(newParseDateCmd(), newSourcesCmd())
	return cmd
}

// setup loads the configuration, applies the command line overrides and
// initializes the logger.
func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("country") {
		cfg.Run.Country = flagCountry
	}
	cfg.Run.Country = strings.ToLower(strings.TrimSpace(cfg.Run.Country))
	if cmd.Flags().Changed("headless") {
		cfg.Browser.Headless = flagHeadless
	}
	if flagVerbose {
		cfg.Log.Level = "debug"
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runScrape is the main command logic
func runScrape(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagFormat))
	switch format {
	case FormatText, FormatJSON, FormatICS:
	default:
		return eris.Errorf("cli: invalid format %q (must be text, json or ics)", flagFormat)
	}
	order := SortOrder(strings.ToLower(flagSort))
	switch order {
	case SortByDate, SortBySource, SortByTitle:
	default:
		return eris.Errorf("cli: invalid sort %q (must be date, source or title)", flagSort)
	}
	f, err := outputFilter()
	if err != nil {
		return err
	}

	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer zap.L().Sync() //nolint:errcheck

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	skipPast, err := cfg.SkipPast()
	if err != nil {
		return err
	}
	descs, err := source.LoadCountry(cfg.Run.CountriesDir, cfg.Run.Country)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.Run.ResultsDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, closeResolver := newResolver(ctx, cfg)
	defer closeResolver()

	metrics := logger.NewMetrics()
	now := func() time.Time { return time.Now().In(loc) }
	h := harvest.New(
		newRegistry(cfg, loc),
		newNormalizer(cfg, newParser(cfg, loc), resolver),
		harvest.WithMetrics(metrics),
		harvest.WithSkipPast(skipPast),
		harvest.WithClock(now),
	)

	started := time.Now()
	zap.L().Info("starting run",
		zap.String("country", cfg.Run.Country),
		zap.Int("sources", len(descs)),
		zap.String("timezone", loc.String()))
	res := h.Run(ctx, descs)
	sortRecords(res.Records, order)

	result, err := persist(store, cfg.Run.Country, res)
	if err != nil {
		return err
	}

	// Publishing is skipped after an interrupt: the batch would be partial.
	if !res.Interrupted {
		if err := push(context.WithoutCancel(ctx), cmd, cfg, res.Records); err != nil {
			return err
		}
	}

	if !f.IsEmpty() {
		result.Filter = f.String()
		result.Records = f.Apply(result.Records)
		result.New = f.Apply(result.New)
	}

	metrics.ObserveRun(time.Since(started))
	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteToTextfile(cfg.Metrics.Textfile); err != nil {
			zap.L().Warn("writing metrics textfile", zap.Error(err))
		}
	}
	if series, err := metrics.Snapshot(); err == nil {
		zap.L().Debug("run metrics", zap.Any("series", series))
	}

	if err := WriteOutput(cmd.OutOrStdout(), result, format, flagVerbose); err != nil {
		return eris.Wrap(err, "cli: write output")
	}
	if res.Interrupted {
		return ErrInterrupted
	}
	return nil
}

// outputFilter builds the record filter from the flags.
func outputFilter() (*filter.Filter, error) {
	f := filter.NewFilter()
	if flagDates != "" {
		from, to, err := filter.ParseDateRange(flagDates)
		if err != nil {
			return nil, err
		}
		f.DateFrom, f.DateTo = from, to
	}
	f.Cities = append(f.Cities, flagCities...)
	f.Sources = append(f.Sources, flagSources...)
	f.WeekendsOnly = flagWeekends
	if flagOnline || flagInPerson {
		online := flagOnline
		f.Online = &online
	}
	return f, nil
}

// persist writes the run, diffs it against the previous snapshot and,
// unless the run was interrupted, replaces the snapshot.
func persist(store *storage.Storage, country string, res *harvest.Result) (*OutputResult, error) {
	previous, err := store.LoadSnapshot(country)
	if err != nil {
		return nil, err
	}

	eventsPath, err := store.SaveRun(storage.Run{
		Country:    country,
		StartedAt:  res.ScrapedAt,
		RunID:      res.RunID,
		Records:    res.Records,
		Rejections: res.Rejections,
	})
	if err != nil {
		return nil, err
	}

	diff := event.Diff(previous, res.Records, res.ScrapedAt)
	if !res.Interrupted {
		if err := store.CreateSnapshotFromRecords(country, res.Records, res.ScrapedAt); err != nil {
			return nil, err
		}
	}

	result := newOutputResult(res.Summary())
	result.RunID = res.RunID
	result.Country = country
	result.ScrapedAt = res.ScrapedAt
	result.EventsFile = eventsPath
	result.Records = res.Records
	result.RecordCount = len(res.Records)
	result.New = diff.New
	result.Changes = diff.Changes
	result.Interrupted = res.Interrupted
	result.Removed = make([]string, 0, len(diff.Removed))
	for _, r := range diff.Removed {
		result.Removed = append(result.Removed, r.ID)
	}
	for _, f := range res.Failures {
		result.FailedSources = append(result.FailedSources, fmt.Sprintf("%s (%s): %v", f.Source, f.Adapter, f.Err))
	}
	for _, d := range res.Unmatched {
		result.FailedSources = append(result.FailedSources, fmt.Sprintf("%s: no adapter for %s", d, d.URL))
	}
	return result, nil
}

// push hands the records to the publisher selected by the flags. The dry
// run table goes to stderr so json and ics output stay parseable.
func push(ctx context.Context, cmd *cobra.Command, cfg *config.Config, records []*event.Record) error {
	var pub publish.Publisher
	switch {
	case flagDryRun:
		pub = publish.NewDryRun(cmd.ErrOrStderr())
	case flagPushToDB:
		if cfg.Database.URL == "" {
			return eris.New("cli: --push-to-db needs database.url (or FRESK_DATABASE_URL)")
		}
		pool, err := publish.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pub = publish.NewPostgres(pool, cfg.Database.Table)
	default:
		return nil
	}
	return pub.Publish(ctx, records)
}

func newParseDateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse-date <phrase>",
		Short: "Parse a date phrase and show which grammar matched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			p := newParser(cfg, loc)
			out := cmd.OutOrStdout()

			if flagHint != "" {
				start, end, err := p.ParsePhrase(dates.Phrase{Text: args[0], Hint: flagHint})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "grammar: hint\nstart:   %s\nend:     %s\n",
					start.Format(time.DateTime), end.Format(time.DateTime))
				return nil
			}

			m, err := p.Match(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "grammar: %s\nstart:   %s\nend:     %s\n",
				m.Grammar, m.Start.Format(time.DateTime), m.End.Format(time.DateTime))
			return nil
		},
	}
	cmd.Flags().StringVar(&flagHint, "hint", "", "Machine-readable date (e.g. 2025-12-05) combined with the phrase's time range")
	return cmd
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the sources of a country and the adapter handling each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			descs, err := source.LoadCountry(cfg.Run.CountriesDir, cfg.Run.Country)
			if err != nil {
				return err
			}

			reg := newRegistry(cfg, loc)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tADAPTER")
			for _, d := range descs {
				name := "-"
				if a, ok := reg.Match(d); ok {
					name = a.Name()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Type, name)
			}
			return tw.Flush()
		},
	}
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	switch {
	case err == nil:
		os.Exit(ExitSuccess)
	case errors.Is(err, ErrInterrupted):
		fmt.Fprintln(os.Stderr, "Interrupted: partial results written.")
		os.Exit(ExitInterrupted)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
