package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"domore/internal/logger"
	"domore/internal/rowstore"
	"domore/internal/rowstore/sqlbuild"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const (
	slowQuery  = 100 * time.Millisecond
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Layouts accepted when reading DATETIME columns back.
var readLayouts = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type Storage struct {
	db *sql.DB
}

var (
	_ rowstore.Store   = (*Storage)(nil)
	_ rowstore.Toggler = (*Storage)(nil)
)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("Repository: SQLite database ready", zap.String("path", path))
	return &Storage{db: db}, nil
}

func ensureDir(path string) error {
	if strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory") {
		return nil
	}
	clean := strings.Split(strings.TrimPrefix(path, "file:"), "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

func (s *Storage) Close() {
	_ = s.db.Close()
	logger.Info("Repository: SQLite database closed")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Storage) Select(ctx context.Context, table string, filter rowstore.Filter, order *rowstore.Order) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Select(sqlbuild.SQLite, table, filter, order)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "select", table, query, args)
}

func (s *Storage) Insert(ctx context.Context, table string, row rowstore.Row) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Insert(sqlbuild.SQLite, table, row)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "insert", table, query, args)
}

func (s *Storage) Update(ctx context.Context, table string, filter rowstore.Filter, patch rowstore.Row) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Update(sqlbuild.SQLite, table, filter, patch)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "update", table, query, args)
}

func (s *Storage) Delete(ctx context.Context, table string, filter rowstore.Filter) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Delete(sqlbuild.SQLite, table, filter)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "delete", table, query, args)
}

func (s *Storage) Toggle(ctx context.Context, table string, filter rowstore.Filter, column string) ([]rowstore.Row, error) {
	query, args, err := sqlbuild.Toggle(sqlbuild.SQLite, table, filter, column)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, "toggle", table, query, args)
}

func (s *Storage) query(ctx context.Context, op, table, query string, args []any) ([]rowstore.Row, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, query, bindArgs(args)...)
	if err != nil {
		logger.Error("Repository: query failed", err,
			zap.String("op", op),
			zap.String("table", table),
			zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("%s %s: %w", op, table, err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		logger.Error("Repository: failed to read rows", err, zap.String("op", op), zap.String("table", table))
		return nil, fmt.Errorf("%s %s: read rows: %w", op, table, err)
	}

	if time.Since(start) > slowQuery {
		logger.Warn("Repository: slow query",
			zap.String("op", op),
			zap.String("table", table),
			zap.Duration("ms", time.Since(start)))
	}
	return out, nil
}

// bindArgs stores times as sortable UTC text.
func bindArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case time.Time:
			out[i] = v.UTC().Format(timeLayout)
		case *time.Time:
			if v == nil {
				out[i] = nil
			} else {
				out[i] = v.UTC().Format(timeLayout)
			}
		default:
			out[i] = a
		}
	}
	return out
}

func scanRows(rows *sql.Rows) ([]rowstore.Row, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	out := []rowstore.Row{}
	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(rowstore.Row, len(types))
		for i, ct := range types {
			v, err := normalize(declaredType(ct), values[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", ct.Name(), err)
			}
			row[ct.Name()] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// declaredType falls back to naming conventions when SQLite reports no
// declared type, which happens for RETURNING columns on some versions.
func declaredType(ct *sql.ColumnType) string {
	declared := strings.ToUpper(ct.DatabaseTypeName())
	if declared != "" {
		return declared
	}
	name := ct.Name()
	switch {
	case strings.HasPrefix(name, "is_"):
		return "BOOLEAN"
	case strings.HasSuffix(name, "_at"), strings.HasSuffix(name, "_date"):
		return "DATETIME"
	}
	return ""
}

// normalize converts SQLite storage classes into the Go types the other
// backends return for the same declared column type.
func normalize(declared string, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil, nil
	}

	switch {
	case strings.Contains(declared, "BOOL"):
		switch x := v.(type) {
		case int64:
			return x != 0, nil
		case bool:
			return x, nil
		}
	case strings.Contains(declared, "DATE") || strings.Contains(declared, "TIME"):
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			return parseTime(x)
		}
	}
	return v, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
