package publish

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trouver-une-fresque/fresk-scraper/internal/event"
)

// DefaultTable receives the upcoming workshops.
const DefaultTable = "private.events_future"

// Pool is the part of *pgxpool.Pool the publisher needs.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Postgres upserts records in a single transaction.
type Postgres struct {
	pool  Pool
	table string
}

// NewPostgres creates a publisher writing to table, DefaultTable when empty.
func NewPostgres(pool Pool, table string) *Postgres {
	if table == "" {
		table = DefaultTable
	}
	return &Postgres{pool: pool, table: table}
}

// Connect opens a pool and checks the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "publish: open pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "publish: ping database")
	}
	return pool, nil
}

var columns = []string{
	"id", "source_id", "title", "start_date", "end_date",
	"full_location", "location_name", "address", "city", "department", "zip_code", "country_code",
	"latitude", "longitude", "language_code",
	"online", "training", "sold_out", "kids",
	"source_link", "tickets_link", "description", "scrape_date",
}

// upsertSQL builds the statement for table; every column but id is
// refreshed on conflict.
func upsertSQL(table string) string {
	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns)-1)
	for i, c := range columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		if c != "id" {
			updates = append(updates, c+" = EXCLUDED."+c)
		}
	}
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ")\n" +
		"\t\tVALUES (" + strings.Join(placeholders, ", ") + ")\n" +
		"\t\tON CONFLICT (id) DO UPDATE SET " + strings.Join(updates, ", ")
}

func args(r *event.Record) []any {
	return []any{
		r.ID, r.SourceID, r.Title, r.StartAt.Time, r.EndAt.Time,
		r.FullLocation, r.Name, r.Address.Address, r.City, r.Department, r.ZipCode, r.CountryCode,
		r.Latitude, r.Longitude, r.LanguageCode,
		r.Online, r.Training, r.SoldOut, r.Kids,
		r.SourceLink, r.TicketsLink, r.Description, r.ScrapedAt,
	}
}

// Publish upserts every record; any failure rolls the whole batch back.
func (p *Postgres) Publish(ctx context.Context, records []*event.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "publish: begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := upsertSQL(p.table)
	for _, r := range records {
		if _, err := tx.Exec(ctx, query, args(r)...); err != nil {
			return eris.Wrapf(err, "publish: upsert %s", r.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "publish: commit")
	}

	zap.L().Info("publish: pushed records",
		zap.Int("count", len(records)),
		zap.String("table", p.table),
	)
	return nil
}
