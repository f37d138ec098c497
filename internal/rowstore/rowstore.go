// Package rowstore is the narrow gateway to the hosted relational data
// service. Callers address tables by name, filter by column equality and get
// untyped rows back; turning rows into domain types is the caller's job.
package rowstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
)

const (
	TableTasks    = "tasks"
	TableProfiles = "user_profiles"
)

type Row map[string]any

// Condition is a single column = value test.
type Condition struct {
	Column string
	Value  any
}

// Filter is a conjunction of conditions.
type Filter []Condition

func Eq(column string, value any) Condition {
	return Condition{Column: column, Value: value}
}

func Where(conds ...Condition) Filter {
	return Filter(conds)
}

type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) *Order  { return &Order{Column: column} }
func Desc(column string) *Order { return &Order{Column: column, Desc: true} }

// Store is the generic CRUD surface. Every call returns the affected rows.
type Store interface {
	Select(ctx context.Context, table string, filter Filter, order *Order) ([]Row, error)
	Insert(ctx context.Context, table string, row Row) ([]Row, error)
	Update(ctx context.Context, table string, filter Filter, patch Row) ([]Row, error)
	Delete(ctx context.Context, table string, filter Filter) ([]Row, error)
	HealthCheck(ctx context.Context) error
	Close()
}

// Toggler is implemented by stores that can negate a boolean column in a
// single statement.
type Toggler interface {
	Toggle(ctx context.Context, table string, filter Filter, column string) ([]Row, error)
}

var (
	ErrInvalidIdentifier = errors.New("rowstore: invalid identifier")
	ErrEmptyRow          = errors.New("rowstore: empty row")
	ErrUnknownTable      = errors.New("rowstore: unknown table")
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdent guards every name that ends up in SQL text.
func ValidIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// Validate checks the table, every filter column and the order column.
func Validate(table string, filter Filter, order *Order) error {
	if err := ValidIdent(table); err != nil {
		return err
	}
	for _, c := range filter {
		if err := ValidIdent(c.Column); err != nil {
			return err
		}
	}
	if order != nil {
		if err := ValidIdent(order.Column); err != nil {
			return err
		}
	}
	return nil
}

// SortedColumns returns row keys in a stable order for statement building.
func SortedColumns(row Row) []string {
	cols := make([]string, 0, len(row))
	for k := range row {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
