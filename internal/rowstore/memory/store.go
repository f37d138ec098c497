package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"domore/internal/rowstore"
)

// Table describes the constraints the in-memory store enforces for one table.
type Table struct {
	Name string
	// NotEmpty columns must be present, non-nil and, for strings, non-empty.
	NotEmpty []string
	// Unique columns reject a second row with the same non-nil value.
	Unique   []string
	Defaults rowstore.Row
	// Timestamps stamps created_at on insert and updated_at on every write.
	Timestamps bool
}

// DefaultSchema mirrors the SQL migrations.
func DefaultSchema() []Table {
	return []Table{
		{
			Name:       rowstore.TableProfiles,
			Unique:     []string{"email"},
			Timestamps: false,
			Defaults:   rowstore.Row{"username": nil},
		},
		{
			Name:       rowstore.TableTasks,
			NotEmpty:   []string{"user_id", "title"},
			Timestamps: true,
			Defaults: rowstore.Row{
				"description": nil,
				"is_complete": false,
				"priority":    nil,
				"due_date":    nil,
			},
		},
	}
}

type table struct {
	schema Table
	rows   map[int64]rowstore.Row
	ids    []int64
	nextID int64
}

type Storage struct {
	tables map[string]*table
	mtx    *sync.RWMutex
	now    func() time.Time
}

var (
	_ rowstore.Store   = (*Storage)(nil)
	_ rowstore.Toggler = (*Storage)(nil)
)

func New(schema ...Table) *Storage {
	if len(schema) == 0 {
		schema = DefaultSchema()
	}
	s := &Storage{
		tables: make(map[string]*table, len(schema)),
		mtx:    &sync.RWMutex{},
		now:    time.Now,
	}
	for _, t := range schema {
		s.tables[t.Name] = &table{schema: t, rows: make(map[int64]rowstore.Row), nextID: 1}
	}
	return s
}

// WithClock replaces the timestamp source; used by tests.
func (s *Storage) WithClock(now func() time.Time) *Storage {
	s.now = now
	return s
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() {}

func (s *Storage) table(name string) (*table, error) {
	if err := rowstore.ValidIdent(name); err != nil {
		return nil, err
	}
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rowstore.ErrUnknownTable, name)
	}
	return t, nil
}

func (s *Storage) Select(ctx context.Context, name string, filter rowstore.Filter, order *rowstore.Order) ([]rowstore.Row, error) {
	if err := rowstore.Validate(name, filter, order); err != nil {
		return nil, err
	}
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}

	res := []rowstore.Row{}
	for _, id := range t.ids {
		row := t.rows[id]
		if matches(row, filter) {
			res = append(res, clone(row))
		}
	}

	if order != nil {
		sort.SliceStable(res, func(i, j int) bool {
			return less(res[i][order.Column], res[j][order.Column], order.Desc)
		})
	}
	return res, nil
}

func (s *Storage) Insert(ctx context.Context, name string, row rowstore.Row) ([]rowstore.Row, error) {
	if len(row) == 0 {
		return nil, rowstore.ErrEmptyRow
	}
	for col := range row {
		if err := rowstore.ValidIdent(col); err != nil {
			return nil, err
		}
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}

	stored := clone(t.schema.Defaults)
	if stored == nil {
		stored = rowstore.Row{}
	}
	for k, v := range row {
		stored[k] = v
	}

	id := t.nextID
	if v, ok := stored["id"]; ok && v != nil {
		given, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("insert %s: id must be an integer", name)
		}
		if _, taken := t.rows[given]; taken {
			return nil, fmt.Errorf("insert %s: duplicate id %d", name, given)
		}
		id = given
	}
	stored["id"] = id

	if t.schema.Timestamps {
		now := s.now()
		if stored["created_at"] == nil {
			stored["created_at"] = now
		}
		if stored["updated_at"] == nil {
			stored["updated_at"] = now
		}
	} else if stored["created_at"] == nil {
		stored["created_at"] = s.now()
	}

	if err := t.check(stored, 0); err != nil {
		return nil, fmt.Errorf("insert %s: %w", name, err)
	}

	t.rows[id] = stored
	t.ids = append(t.ids, id)
	if id >= t.nextID {
		t.nextID = id + 1
	}
	return []rowstore.Row{clone(stored)}, nil
}

func (s *Storage) Update(ctx context.Context, name string, filter rowstore.Filter, patch rowstore.Row) ([]rowstore.Row, error) {
	if len(patch) == 0 {
		return nil, rowstore.ErrEmptyRow
	}
	if err := rowstore.Validate(name, filter, nil); err != nil {
		return nil, err
	}
	for col := range patch {
		if err := rowstore.ValidIdent(col); err != nil {
			return nil, err
		}
	}

	return s.mutate(name, filter, func(row rowstore.Row) {
		for k, v := range patch {
			row[k] = v
		}
	})
}

func (s *Storage) Toggle(ctx context.Context, name string, filter rowstore.Filter, column string) ([]rowstore.Row, error) {
	if err := rowstore.Validate(name, filter, nil); err != nil {
		return nil, err
	}
	if err := rowstore.ValidIdent(column); err != nil {
		return nil, err
	}

	return s.mutate(name, filter, func(row rowstore.Row) {
		current, _ := row[column].(bool)
		row[column] = !current
	})
}

// mutate applies fn to a copy of every matching row and commits the copies
// only if all of them still satisfy the table constraints.
func (s *Storage) mutate(name string, filter rowstore.Filter, fn func(rowstore.Row)) ([]rowstore.Row, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated := []rowstore.Row{}
	for _, id := range t.ids {
		if !matches(t.rows[id], filter) {
			continue
		}
		next := clone(t.rows[id])
		fn(next)
		next["id"] = id
		if t.schema.Timestamps {
			next["updated_at"] = now
		}
		if err := t.check(next, id); err != nil {
			return nil, fmt.Errorf("update %s: %w", name, err)
		}
		updated = append(updated, next)
	}

	res := make([]rowstore.Row, len(updated))
	for i, row := range updated {
		id, _ := toInt64(row["id"])
		t.rows[id] = row
		res[i] = clone(row)
	}
	return res, nil
}

func (s *Storage) Delete(ctx context.Context, name string, filter rowstore.Filter) ([]rowstore.Row, error) {
	if err := rowstore.Validate(name, filter, nil); err != nil {
		return nil, err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	t, err := s.table(name)
	if err != nil {
		return nil, err
	}

	deleted := []rowstore.Row{}
	kept := t.ids[:0]
	for _, id := range t.ids {
		row := t.rows[id]
		if matches(row, filter) {
			deleted = append(deleted, row)
			delete(t.rows, id)
			continue
		}
		kept = append(kept, id)
	}
	t.ids = kept
	return deleted, nil
}

// check enforces NotEmpty and Unique; self is the id being rewritten, or 0.
func (t *table) check(row rowstore.Row, self int64) error {
	for _, col := range t.schema.NotEmpty {
		v, ok := row[col]
		if !ok || v == nil {
			return fmt.Errorf("column %s must not be null", col)
		}
		if str, ok := v.(string); ok && strings.TrimSpace(str) == "" {
			return fmt.Errorf("column %s must not be empty", col)
		}
	}
	for _, col := range t.schema.Unique {
		v := row[col]
		if v == nil {
			continue
		}
		for id, other := range t.rows {
			if id != self && equal(other[col], v) {
				return fmt.Errorf("duplicate value for %s", col)
			}
		}
	}
	return nil
}

func matches(row rowstore.Row, filter rowstore.Filter) bool {
	for _, c := range filter {
		if !equal(row[c.Column], c.Value) {
			return false
		}
	}
	return true
}

func clone(row rowstore.Row) rowstore.Row {
	if row == nil {
		return nil
	}
	out := make(rowstore.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := toInt64(a); ok {
		y, ok := toInt64(b)
		return ok && x == y
	}
	if x, ok := a.(time.Time); ok {
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	return a == b
}

// less orders nil after every value ascending and before it descending,
// which is how PostgreSQL sorts NULLs by default.
func less(a, b any, desc bool) bool {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return false
		}
		return (a == nil) == desc
	}
	c := compare(a, b)
	if desc {
		return c > 0
	}
	return c < 0
}

func compare(a, b any) int {
	if x, ok := toInt64(a); ok {
		if y, ok := toInt64(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
