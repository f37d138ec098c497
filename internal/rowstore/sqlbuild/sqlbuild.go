// Package sqlbuild renders rowstore calls into parameterised SQL for the
// SQL-backed stores. Identifiers are validated and quoted; values are
// always passed as arguments.
package sqlbuild

import (
	"fmt"
	"strings"

	"domore/internal/rowstore"
)

// Dialect covers the differences between the SQL backends.
type Dialect struct {
	Placeholder func(n int) string
	Quote       func(ident string) string
	// Now is the expression used to stamp updated_at; empty leaves it to the
	// database (e.g. a trigger).
	Now string
}

func quoteDouble(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

var Postgres = Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Quote:       quoteDouble,
}

var SQLite = Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("?%d", n) },
	Quote:       quoteDouble,
	Now:         "strftime('%Y-%m-%dT%H:%M:%fZ', 'now')",
}

type builder struct {
	d    Dialect
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func (b *builder) where(filter rowstore.Filter) string {
	if len(filter) == 0 {
		return ""
	}
	parts := make([]string, 0, len(filter))
	for _, c := range filter {
		if c.Value == nil {
			parts = append(parts, b.d.Quote(c.Column)+" IS NULL")
			continue
		}
		parts = append(parts, b.d.Quote(c.Column)+" = "+b.bind(c.Value))
	}
	return " WHERE " + strings.Join(parts, " AND ")
}

func Select(d Dialect, table string, filter rowstore.Filter, order *rowstore.Order) (string, []any, error) {
	if err := rowstore.Validate(table, filter, order); err != nil {
		return "", nil, err
	}
	b := &builder{d: d}
	q := "SELECT * FROM " + d.Quote(table) + b.where(filter)
	if order != nil {
		dir := "ASC"
		if order.Desc {
			dir = "DESC"
		}
		q += " ORDER BY " + d.Quote(order.Column) + " " + dir
	}
	return q, b.args, nil
}

func Insert(d Dialect, table string, row rowstore.Row) (string, []any, error) {
	if err := rowstore.ValidIdent(table); err != nil {
		return "", nil, err
	}
	if len(row) == 0 {
		return "", nil, rowstore.ErrEmptyRow
	}
	b := &builder{d: d}
	cols := rowstore.SortedColumns(row)
	quoted := make([]string, len(cols))
	holders := make([]string, len(cols))
	for i, c := range cols {
		if err := rowstore.ValidIdent(c); err != nil {
			return "", nil, err
		}
		quoted[i] = d.Quote(c)
		holders[i] = b.bind(row[c])
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		d.Quote(table), strings.Join(quoted, ", "), strings.Join(holders, ", "))
	return q, b.args, nil
}

func Update(d Dialect, table string, filter rowstore.Filter, patch rowstore.Row) (string, []any, error) {
	if err := rowstore.Validate(table, filter, nil); err != nil {
		return "", nil, err
	}
	if len(patch) == 0 {
		return "", nil, rowstore.ErrEmptyRow
	}
	b := &builder{d: d}
	cols := rowstore.SortedColumns(patch)
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		if err := rowstore.ValidIdent(c); err != nil {
			return "", nil, err
		}
		sets = append(sets, d.Quote(c)+" = "+b.bind(patch[c]))
	}
	if d.Now != "" {
		if _, ok := patch["updated_at"]; !ok {
			sets = append(sets, d.Quote("updated_at")+" = "+d.Now)
		}
	}
	q := "UPDATE " + d.Quote(table) + " SET " + strings.Join(sets, ", ") + b.where(filter) + " RETURNING *"
	return q, b.args, nil
}

// Toggle negates a boolean column, treating NULL as false.
func Toggle(d Dialect, table string, filter rowstore.Filter, column string) (string, []any, error) {
	if err := rowstore.Validate(table, filter, nil); err != nil {
		return "", nil, err
	}
	if err := rowstore.ValidIdent(column); err != nil {
		return "", nil, err
	}
	b := &builder{d: d}
	col := d.Quote(column)
	set := col + " = NOT COALESCE(" + col + ", FALSE)"
	if d.Now != "" {
		set += ", " + d.Quote("updated_at") + " = " + d.Now
	}
	q := "UPDATE " + d.Quote(table) + " SET " + set + b.where(filter) + " RETURNING *"
	return q, b.args, nil
}

func Delete(d Dialect, table string, filter rowstore.Filter) (string, []any, error) {
	if err := rowstore.Validate(table, filter, nil); err != nil {
		return "", nil, err
	}
	b := &builder{d: d}
	q := "DELETE FROM " + d.Quote(table) + b.where(filter) + " RETURNING *"
	return q, b.args, nil
}
