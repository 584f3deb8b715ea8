package db

import (
	"strconv"
	"strings"
)

// Cond is one predicate of a WHERE clause
type Cond struct {
	sql  string
	args []any
}

// SQL returns the predicate text and its arguments
func (c Cond) SQL() (string, []any) {
	return c.sql, c.args
}

func Eq(col string, v any) Cond { return Cond{col + " = ?", []any{v}} }
func Neq(col string, v any) Cond { return Cond{col + " <> ?", []any{v}} }
func Gt(col string, v any) Cond { return Cond{col + " > ?", []any{v}} }
func Gte(col string, v any) Cond { return Cond{col + " >= ?", []any{v}} }
func Lt(col string, v any) Cond { return Cond{col + " < ?", []any{v}} }
func Lte(col string, v any) Cond { return Cond{col + " <= ?", []any{v}} }
func IsNull(col string) Cond { return Cond{col + " IS NULL", nil} }
func IsNotNull(col string) Cond { return Cond{col + " IS NOT NULL", nil} }
func Raw(sql string, args ...any) Cond { return Cond{sql, args} }

// ILike matches col against a substring, case-insensitively
func ILike(col, substr string) Cond {
	return Cond{"LOWER(" + col + ") LIKE ?", []any{"%" + escapeLike(strings.ToLower(substr)) + "%"}}
}

// In is set membership. An empty set matches nothing.
func In[T any](col string, values []T) Cond {
	if len(values) == 0 {
		return Cond{"1 = 0", nil}
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return Cond{col + " IN (" + placeholders(len(values)) + ")", args}
}

// AnyOf joins conditions with OR
func AnyOf(conds ...Cond) Cond {
	return group(" OR ", conds)
}

// AllOf joins conditions with AND
func AllOf(conds ...Cond) Cond {
	return group(" AND ", conds)
}

func group(sep string, conds []Cond) Cond {
	parts := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		parts = append(parts, c.sql)
		args = append(args, c.args...)
	}
	return Cond{"(" + strings.Join(parts, sep) + ")", args}
}

// Statement is anything the Runner can execute
type Statement interface {
	Build() (string, []any)
	Operation() string
	TableName() string
}

// SelectQuery builds SELECT statements
type SelectQuery struct {
	table   string
	columns []string
	joins   []string
	where   []Cond
	orderBy []string
	limit   int
	offset  int
	forUpd  bool
}

// Select starts a query on table. No columns selects *.
func Select(table string, columns ...string) *SelectQuery {
	return &SelectQuery{table: table, columns: columns}
}

// LeftJoin embeds related rows by foreign key
func (q *SelectQuery) LeftJoin(table, on string) *SelectQuery {
	q.joins = append(q.joins, "LEFT JOIN "+table+" ON "+on)
	return q
}

// Where ANDs conditions onto the query
func (q *SelectQuery) Where(conds ...Cond) *SelectQuery {
	q.where = append(q.where, conds...)
	return q
}

func (q *SelectQuery) OrderBy(col string, ascending bool) *SelectQuery {
	dir := " DESC"
	if ascending {
		dir = " ASC"
	}
	q.orderBy = append(q.orderBy, col+dir)
	return q
}

func (q *SelectQuery) Limit(n int) *SelectQuery {
	q.limit = n
	return q
}

func (q *SelectQuery) Offset(n int) *SelectQuery {
	q.offset = n
	return q
}

// ForUpdate locks the selected rows until the transaction ends
func (q *SelectQuery) ForUpdate() *SelectQuery {
	q.forUpd = true
	return q
}

func (q *SelectQuery) Operation() string { return "SELECT" }
func (q *SelectQuery) TableName() string { return baseTable(q.table) }

func (q *SelectQuery) Build() (string, []any) {
	cols := "*"
	if len(q.columns) > 0 {
		cols = strings.Join(q.columns, ", ")
	}

	var b strings.Builder
	b.WriteString("SELECT " + cols + " FROM " + q.table)
	for _, j := range q.joins {
		b.WriteString(" " + j)
	}
	args := writeWhere(&b, q.where)
	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY " + strings.Join(q.orderBy, ", "))
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.limit))
		if q.offset > 0 {
			b.WriteString(" OFFSET " + strconv.Itoa(q.offset))
		}
	}
	if q.forUpd {
		b.WriteString(" FOR UPDATE")
	}
	return b.String(), args
}

// Count returns the statement counting the rows the query would match,
// ignoring ordering and pagination
func (q *SelectQuery) Count() *SelectQuery {
	return &SelectQuery{
		table:   q.table,
		columns: []string{"COUNT(*)"},
		joins:   q.joins,
		where:   q.where,
	}
}

// InsertQuery builds INSERT statements
type InsertQuery struct {
	table   string
	columns []string
	rows    [][]any
}

func InsertInto(table string, columns ...string) *InsertQuery {
	return &InsertQuery{table: table, columns: columns}
}

// Values appends one row; values follow the column order
func (q *InsertQuery) Values(values ...any) *InsertQuery {
	q.rows = append(q.rows, values)
	return q
}

func (q *InsertQuery) Operation() string { return "INSERT" }
func (q *InsertQuery) TableName() string { return q.table }

func (q *InsertQuery) Build() (string, []any) {
	row := "(" + placeholders(len(q.columns)) + ")"
	rows := make([]string, len(q.rows))
	var args []any
	for i, r := range q.rows {
		rows[i] = row
		args = append(args, r...)
	}
	return "INSERT INTO " + q.table + " (" + strings.Join(q.columns, ", ") + ") VALUES " + strings.Join(rows, ", "), args
}

// UpdateQuery builds UPDATE statements
type UpdateQuery struct {
	table string
	sets  []Cond
	where []Cond
}

func Update(table string) *UpdateQuery {
	return &UpdateQuery{table: table}
}

func (q *UpdateQuery) Set(col string, v any) *UpdateQuery {
	q.sets = append(q.sets, Cond{col + " = ?", []any{v}})
	return q
}

// SetExpr assigns a raw expression, e.g. "quantity + ?"
func (q *UpdateQuery) SetExpr(col, expr string, args ...any) *UpdateQuery {
	q.sets = append(q.sets, Cond{col + " = " + expr, args})
	return q
}

func (q *UpdateQuery) Where(conds ...Cond) *UpdateQuery {
	q.where = append(q.where, conds...)
	return q
}

func (q *UpdateQuery) Operation() string { return "UPDATE" }
func (q *UpdateQuery) TableName() string { return q.table }

func (q *UpdateQuery) Build() (string, []any) {
	var b strings.Builder
	var args []any
	sets := make([]string, len(q.sets))
	for i, s := range q.sets {
		sets[i] = s.sql
		args = append(args, s.args...)
	}
	b.WriteString("UPDATE " + q.table + " SET " + strings.Join(sets, ", "))
	args = append(args, writeWhere(&b, q.where)...)
	return b.String(), args
}

// DeleteQuery builds DELETE statements
type DeleteQuery struct {
	table string
	where []Cond
}

func DeleteFrom(table string) *DeleteQuery {
	return &DeleteQuery{table: table}
}

func (q *DeleteQuery) Where(conds ...Cond) *DeleteQuery {
	q.where = append(q.where, conds...)
	return q
}

func (q *DeleteQuery) Operation() string { return "DELETE" }
func (q *DeleteQuery) TableName() string { return q.table }

func (q *DeleteQuery) Build() (string, []any) {
	var b strings.Builder
	b.WriteString("DELETE FROM " + q.table)
	args := writeWhere(&b, q.where)
	return b.String(), args
}

func writeWhere(b *strings.Builder, conds []Cond) []any {
	if len(conds) == 0 {
		return nil
	}
	parts := make([]string, len(conds))
	var args []any
	for i, c := range conds {
		parts[i] = c.sql
		args = append(args, c.args...)
	}
	b.WriteString(" WHERE " + strings.Join(parts, " AND "))
	return args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// baseTable strips an alias: "cart_items ci" -> "cart_items"
func baseTable(table string) string {
	if i := strings.IndexByte(table, ' '); i > 0 {
		return table[:i]
	}
	return table
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
