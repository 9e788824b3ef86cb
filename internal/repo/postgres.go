package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforcehq/taskforce-forecast/internal/models"
	"github.com/taskforcehq/taskforce-forecast/internal/utils"
)

// PostgresDataset reads the dataset table through a pgx pool.
type PostgresDataset struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ DatasetSource = (*PostgresDataset)(nil)

// NewPostgresDataset wraps an existing pool.
func NewPostgresDataset(pool *pgxpool.Pool) *PostgresDataset {
	return &PostgresDataset{pool: pool, now: time.Now}
}

// PoolOptions sizes the connection pool.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// OpenPool parses the URL, applies pool sizing and pings the database.
func OpenPool(ctx context.Context, url string, opts PoolOptions) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// LoadDataset returns every row of the dataset table ordered by date.
func (p *PostgresDataset) LoadDataset(ctx context.Context) (models.Dataset, error) {
	if p == nil || p.pool == nil {
		return models.Dataset{}, fmt.Errorf("postgres dataset not initialised")
	}

	query := "SELECT " + strings.Join(DatasetColumns, ", ") + " FROM dataset ORDER BY date_analysis"
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("query dataset: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DatasetRow, error) {
		var r models.DatasetRow
		err := row.Scan(
			&r.Date,
			&r.Red,
			&r.UntreatedRed,
			&r.Orange,
			&r.UntreatedOrange,
			&r.Weekday,
			&r.NursePresence,
			&r.DoctorPresence,
		)
		r.Date = utils.Day(r.Date)
		return r, err
	})
	if err != nil {
		return models.Dataset{}, fmt.Errorf("scan dataset: %w", err)
	}
	return models.Dataset{Rows: out, FetchedAt: p.now().UTC()}, nil
}

// InsertRows upserts rows keyed by date. Used by seeding and tests.
func (p *PostgresDataset) InsertRows(ctx context.Context, rows []models.DatasetRow) error {
	const stmt = `
INSERT INTO dataset (date_analysis, number_of_red_alerts, number_of_non_treated_red_alerts,
    number_of_orange_alerts, number_of_non_treated_orange_alerts, weekdays,
    time_presence_nurse, time_presence_doctor)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (date_analysis) DO UPDATE SET
    number_of_red_alerts = EXCLUDED.number_of_red_alerts,
    number_of_non_treated_red_alerts = EXCLUDED.number_of_non_treated_red_alerts,
    number_of_orange_alerts = EXCLUDED.number_of_orange_alerts,
    number_of_non_treated_orange_alerts = EXCLUDED.number_of_non_treated_orange_alerts,
    weekdays = EXCLUDED.weekdays,
    time_presence_nurse = EXCLUDED.time_presence_nurse,
    time_presence_doctor = EXCLUDED.time_presence_doctor
`
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(stmt, utils.Day(r.Date), r.Red, r.UntreatedRed, r.Orange, r.UntreatedOrange,
			r.Weekday, r.NursePresence, r.DoctorPresence)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert dataset rows: %w", err)
	}
	return nil
}
