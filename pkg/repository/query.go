package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// SelectQuery assembles a SELECT statement incrementally. Conditions are
// written with ? placeholders and renumbered to PostgreSQL's $N form when
// the final SQL is rendered, so fragments compose without tracking
// positions. Joins are tracked by table name and added at most once.
type SelectQuery struct {
	columns  []string
	from     string
	fromArgs []any
	joins    []string
	joined   map[string]struct{}
	conds    []string
	condArgs []any
	groupBy  []string
	orderBy  []string
	limit    int
	offset   int
	hasLimit bool
}

// NewSelect starts a query over a table.
func NewSelect(table string, columns ...string) *SelectQuery {
	return &SelectQuery{
		columns: columns,
		from:    table,
		joined:  map[string]struct{}{table: {}},
	}
}

// FromSubquery starts a query over another query's result set. The
// subquery is rendered with its own ordering and limits intact, which is
// how post-aggregation rollups wrap an already-paginated page.
func FromSubquery(sub *SelectQuery, alias string, columns ...string) *SelectQuery {
	sql, args := sub.render(true)
	return &SelectQuery{
		columns:  columns,
		from:     "(" + sql + ") AS " + alias,
		fromArgs: args,
		joined:   map[string]struct{}{alias: {}},
	}
}

// Columns replaces the select list.
func (q *SelectQuery) Columns(columns ...string) *SelectQuery {
	q.columns = columns
	return q
}

// Join adds a join clause for a table unless that table is already part of
// the query. Idempotency matters: several ACL predicates may touch the same
// table and it must never be joined twice.
func (q *SelectQuery) Join(table, clause string) *SelectQuery {
	if _, ok := q.joined[table]; ok {
		return q
	}
	q.joined[table] = struct{}{}
	q.joins = append(q.joins, clause)
	return q
}

// Joined reports whether a table is already part of the query.
func (q *SelectQuery) Joined(table string) bool {
	_, ok := q.joined[table]
	return ok
}

// MarkJoined records that a table is already part of the query without
// adding a clause, for callers that supply a pre-joined base query.
func (q *SelectQuery) MarkJoined(tables ...string) *SelectQuery {
	for _, t := range tables {
		q.joined[t] = struct{}{}
	}
	return q
}

// Where adds a conjunct with ? placeholders.
func (q *SelectQuery) Where(expr string, args ...any) *SelectQuery {
	if expr == "" {
		return q
	}
	q.conds = append(q.conds, expr)
	q.condArgs = append(q.condArgs, args...)
	return q
}

// GroupBy adds grouping expressions.
func (q *SelectQuery) GroupBy(exprs ...string) *SelectQuery {
	q.groupBy = append(q.groupBy, exprs...)
	return q
}

// OrderBy replaces the ordering.
func (q *SelectQuery) OrderBy(exprs ...string) *SelectQuery {
	q.orderBy = exprs
	return q
}

// Page sets LIMIT and OFFSET.
func (q *SelectQuery) Page(limit, offset int) *SelectQuery {
	q.limit = limit
	q.offset = offset
	q.hasLimit = true
	return q
}

// SQL renders the statement with $N placeholders and its bound arguments.
func (q *SelectQuery) SQL() (string, []any) {
	sql, args := q.render(true)
	return renumber(sql), args
}

// CountSQL renders a pre-pagination row count of the query: ordering,
// limit and offset are dropped, and the remainder is wrapped so grouped
// queries count groups rather than rows.
func (q *SelectQuery) CountSQL() (string, []any) {
	inner, args := q.render(false)
	return renumber("SELECT COUNT(*) FROM (" + inner + ") AS _count"), args
}

func (q *SelectQuery) render(withPagination bool) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.from)
	for _, j := range q.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(q.conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.conds, " AND "))
	}
	if len(q.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(q.groupBy, ", "))
	}
	args := make([]any, 0, len(q.fromArgs)+len(q.condArgs))
	args = append(args, q.fromArgs...)
	args = append(args, q.condArgs...)
	if !withPagination {
		return b.String(), args
	}
	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.hasLimit {
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", q.limit, q.offset)
	}
	return b.String(), args
}

// renumber rewrites ? placeholders to $1..$N.
func renumber(sql string) string {
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}

// Placeholders renders n comma-separated ? marks, for IN lists.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
