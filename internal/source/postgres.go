package source

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig configures a query against a metrics database.
type PostgresConfig struct {
	DSN   string `yaml:"dsn" json:"-" validate:"required"`
	Query string `yaml:"query" json:"query" validate:"required"`
	// Single returns the first row as an object instead of a list of rows.
	Single   bool  `yaml:"single" json:"single"`
	MaxConns int32 `yaml:"max_conns" json:"max_conns,omitempty" validate:"gte=0"`
}

// PostgresEndpoint runs one query per attempt on a shared pool.
type PostgresEndpoint struct {
	pool   *pgxpool.Pool
	query  string
	single bool
}

func newPostgresFromConfig(cfg EndpointConfig, reveal Reveal) (Endpoint, error) {
	if cfg.Postgres == nil {
		return nil, missingSection("postgres")
	}
	dsn, err := reveal(cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: dsn: %w", err)
	}
	return NewPostgresEndpoint(context.Background(), dsn, *cfg.Postgres)
}

// NewPostgresEndpoint creates the pool. Connections are opened lazily, so a
// database that is down at startup only fails the attempts.
func NewPostgresEndpoint(ctx context.Context, dsn string, c PostgresConfig) (*PostgresEndpoint, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid dsn: %w", err)
	}
	if c.MaxConns > 0 {
		poolCfg.MaxConns = c.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	return &PostgresEndpoint{pool: pool, query: c.Query, single: c.Single}, nil
}

// Attempt runs the query and returns rows as column-keyed maps.
func (e *PostgresEndpoint) Attempt(ctx context.Context) (any, error) {
	rows, err := e.pool.Query(ctx, e.query)
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("postgres scan failed: %w", err)
	}

	if e.single {
		if len(records) == 0 {
			return nil, pgx.ErrNoRows
		}
		return records[0], nil
	}
	return records, nil
}

// Close releases the pool.
func (e *PostgresEndpoint) Close() error {
	e.pool.Close()
	return nil
}
