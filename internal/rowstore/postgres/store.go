package postgres

import (
	"context"
	"fmt"
	"time"

	"domore/internal/logger"
	"domore/internal/rowstore"
	"domore/internal/rowstore/sqlbuild"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const slowQuery = 100 * time.Millisecond

type Options struct {
	MaxConns    int32
	MinConns    int32
	IdleTimeout time.Duration
}

type Storage struct {
	pool *pgxpool.Pool
}

var (
	_ rowstore.Store   = (*Storage)(nil)
	_ rowstore.Toggler = (*Storage)(nil)
)

func New(ctx context.Context, connString string, opts Options) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: failed to parse connection string", err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = 5 * time.Minute
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.IdleTimeout > 0 {
		config.MaxConnIdleTime = opts.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: failed to create pool", err)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: ping failed", err)
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: connected to PostgreSQL")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: PostgreSQL connections closed")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Storage) Select(ctx context.Context, table string, filter rowstore.Filter, order *rowstore.Order) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Select(sqlbuild.Postgres, table, filter, order)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "select", table, query, args)
}

func (s *Storage) Insert(ctx context.Context, table string, row rowstore.Row) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Insert(sqlbuild.Postgres, table, row)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "insert", table, query, args)
}

func (s *Storage) Update(ctx context.Context, table string, filter rowstore.Filter, patch rowstore.Row) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Update(sqlbuild.Postgres, table, filter, patch)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "update", table, query, args)
}

func (s *Storage) Delete(ctx context.Context, table string, filter rowstore.Filter) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Delete(sqlbuild.Postgres, table, filter)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "delete", table, query, args)
}

// Toggle runs as one UPDATE, so concurrent toggles each see the other's write.
func (s *Storage) Toggle(ctx context.Context, table string, filter rowstore.Filter, column string) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Toggle(sqlbuild.Postgres, table, filter, column)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "toggle", table, query, args)
}

func (s *Storage) query(ctx context.Context, op, table, query string, args []any) ([]rowstore.Row, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: query failed", err,
			zap.String("op", op),
			zap.String("table", table),
			zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("%s %s: %w", op, table, err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		logger.Error("Repository: failed to read rows", err,
			zap.String("op", op),
			zap.String("table", table))
		return nil, fmt.Errorf("%s %s: read rows: %w", op, table, err)
	}

	if time.Since(start) > slowQuery {
		logger.Warn("Repository: slow query",
			zap.String("op", op),
			zap.String("table", table),
			zap.Duration("ms", time.Since(start)))
	}

	out := make([]rowstore.Row, len(maps))
	for i, m := range maps {
		out[i] = rowstore.Row(m)
	}
	return out, nil
}
