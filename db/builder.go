package db

import (
	"errors"
	"strings"
)

// Builders emit ? placeholders; Repository rebinds them for its dialect.
// Every builder method returns a modified copy, so a partially built query
// can be shared and extended.

var (
	ErrMissingTable     = errors.New("table required")
	ErrMissingColumns   = errors.New("columns required")
	ErrMissingValues    = errors.New("values required")
	ErrMismatchedValues = errors.New("values count does not match columns")
)

// clause is a list of SQL fragments and the arguments they bind, in order.
type clause struct {
	parts []string
	args  []any
}

func (c clause) with(fragment string, args []any) clause {
	if fragment == "" {
		return c
	}
	return clause{
		parts: append(c.parts[:len(c.parts):len(c.parts)], fragment),
		args:  append(c.args[:len(c.args):len(c.args)], args...),
	}
}

func (c clause) write(sb *strings.Builder, keyword, sep string) {
	if len(c.parts) == 0 {
		return
	}
	sb.WriteString(keyword)
	sb.WriteString(strings.Join(c.parts, sep))
}

// SelectBuilder builds SELECT queries.
type SelectBuilder struct {
	table   string
	columns []string
	where   clause
	orderBy string
}

// Select starts a query for columns, or * when none are given.
func Select(columns ...string) SelectBuilder {
	return SelectBuilder{columns: columns}
}

func (b SelectBuilder) From(table string) SelectBuilder {
	b.table = table
	return b
}

// Where adds a condition joined with AND.
func (b SelectBuilder) Where(condition string, args ...any) SelectBuilder {
	b.where = b.where.with(condition, args)
	return b
}

func (b SelectBuilder) OrderBy(order string) SelectBuilder {
	b.orderBy = order
	return b
}

func (b SelectBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, ErrMissingTable
	}
	columns := "*"
	if len(b.columns) > 0 {
		columns = strings.Join(b.columns, ", ")
	}
	var sb strings.Builder
	sb.WriteString("SELECT " + columns + " FROM " + b.table)
	b.where.write(&sb, " WHERE ", " AND ")
	if b.orderBy != "" {
		sb.WriteString(" ORDER BY " + b.orderBy)
	}
	return sb.String(), b.where.args, nil
}

// InsertBuilder builds single-row INSERT queries.
type InsertBuilder struct {
	table   string
	columns []string
	values  []any
}

func Insert(table string) InsertBuilder {
	return InsertBuilder{table: table}
}

func (b InsertBuilder) Columns(columns ...string) InsertBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

// Values binds one value per column, in column order.
func (b InsertBuilder) Values(values ...any) InsertBuilder {
	b.values = append([]any(nil), values...)
	return b
}

func (b InsertBuilder) Build() (string, []any, error) {
	switch {
	case b.table == "":
		return "", nil, ErrMissingTable
	case len(b.columns) == 0:
		return "", nil, ErrMissingColumns
	case len(b.values) == 0:
		return "", nil, ErrMissingValues
	case len(b.values) != len(b.columns):
		return "", nil, ErrMismatchedValues
	}
	marks := make([]string, len(b.columns))
	for i := range marks {
		marks[i] = "?"
	}
	query := "INSERT INTO " + b.table +
		" (" + strings.Join(b.columns, ", ") + ")" +
		" VALUES (" + strings.Join(marks, ", ") + ")"
	return query, append([]any(nil), b.values...), nil
}

// UpdateBuilder builds UPDATE queries.
type UpdateBuilder struct {
	table string
	set   clause
	where clause
}

func Update(table string) UpdateBuilder {
	return UpdateBuilder{table: table}
}

// Set assigns value to column.
func (b UpdateBuilder) Set(column string, value any) UpdateBuilder {
	if column == "" {
		return b
	}
	return b.SetExpr(column+" = ?", value)
}

// SetExpr adds a raw assignment such as "version = version + 1".
func (b UpdateBuilder) SetExpr(expr string, args ...any) UpdateBuilder {
	b.set = b.set.with(expr, args)
	return b
}

// Where adds a condition joined with AND.
func (b UpdateBuilder) Where(condition string, args ...any) UpdateBuilder {
	b.where = b.where.with(condition, args)
	return b
}

// Build returns the query with assignment arguments ahead of condition arguments.
func (b UpdateBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, ErrMissingTable
	}
	if len(b.set.parts) == 0 {
		return "", nil, ErrMissingValues
	}
	var sb strings.Builder
	sb.WriteString("UPDATE " + b.table)
	b.set.write(&sb, " SET ", ", ")
	b.where.write(&sb, " WHERE ", " AND ")

	args := make([]any, 0, len(b.set.args)+len(b.where.args))
	args = append(args, b.set.args...)
	return sb.String(), append(args, b.where.args...), nil
}

// DeleteBuilder builds DELETE queries.
type DeleteBuilder struct {
	table string
	where clause
}

func Delete(table string) DeleteBuilder {
	return DeleteBuilder{table: table}
}

// Where adds a condition joined with AND.
func (b DeleteBuilder) Where(condition string, args ...any) DeleteBuilder {
	b.where = b.where.with(condition, args)
	return b
}

func (b DeleteBuilder) Build() (string, []any, error) {
	if b.table == "" {
		return "", nil, ErrMissingTable
	}
	var sb strings.Builder
	sb.WriteString("DELETE FROM " + b.table)
	b.where.write(&sb, " WHERE ", " AND ")
	return sb.String(), b.where.args, nil
}
