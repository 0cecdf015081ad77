package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/corpus/pkg/policy"
	"github.com/platinummonkey/corpus/pkg/principal"
	"github.com/platinummonkey/corpus/pkg/storage"
)

const defaultSearchLimit = 100

// Cond is an explicit search condition with ? placeholders.
type Cond struct {
	Expr string
	Args []any
}

// SearchOptions parameterizes a listing query.
type SearchOptions struct {
	Principals principal.Set
	Filters    []Cond
	Limit      int
	Offset     int
	OrderBy    []string

	// Base substitutes a richer base query (for example one already joined
	// for snippet projections). ACL filtering and pagination still apply;
	// pre-joined tables must be marked on the base so ACL joins stay
	// idempotent.
	Base *SelectQuery

	// PostAggregate wraps the query in a rollup after filters have been
	// applied. It only ever sees filtered rows. Combined with
	// CountAfterAggregate when the rollup changes the row count.
	PostAggregate func(*SelectQuery) *SelectQuery

	// CountAfterAggregate computes the total after PostAggregate runs, and
	// paginates the aggregated rows instead of the base rows. Needed when a
	// join fan-out or grouped rollup changes the row count.
	CountAfterAggregate bool

	// WithChildren loads each hit's child collections.
	WithChildren bool
}

// SearchResult carries one page of hits plus the pre-pagination total.
type SearchResult[T any] struct {
	Total int
	Hits  []T
}

// Search runs a listing query scoped by the view permission: explicit
// filters AND the compiled ACL predicate, with the total counted before
// limit/offset. Denied rows are excluded, never an error; the search itself
// is only forbidden when the principal set lacks collection-level view.
func (r *Repository[T]) Search(ctx context.Context, q storage.Queryer, opts SearchOptions) (*SearchResult[T], error) {
	result := &SearchResult[T]{}
	total, err := r.searchRows(ctx, q, opts, func(rows *sql.Rows) error {
		e, err := r.desc.Scan(rows)
		if err != nil {
			return err
		}
		result.Hits = append(result.Hits, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Total = total

	if opts.WithChildren && r.desc.LoadChildren != nil {
		for _, e := range result.Hits {
			if err := r.desc.LoadChildren(ctx, q, e); err != nil {
				return nil, fmt.Errorf("loading %s children: %w", r.desc.Entity, err)
			}
		}
	}
	return result, nil
}

// SearchRows is the untyped variant for rollup listings whose row shape
// differs from the entity's: the caller supplies the base and aggregation
// queries plus a row collector, and still gets ACL filtering, join
// deduplication and correct totals.
func (r *Repository[T]) SearchRows(ctx context.Context, q storage.Queryer, opts SearchOptions, collect func(*sql.Rows) error) (int, error) {
	return r.searchRows(ctx, q, opts, collect)
}

func (r *Repository[T]) searchRows(ctx context.Context, q storage.Queryer, opts SearchOptions, collect func(*sql.Rows) error) (int, error) {
	allowed, err := r.check(ctx, policy.CollectionContext(r.desc.Entity), opts.Principals, policy.PermissionView)
	if err != nil {
		return 0, err
	}
	if !allowed {
		return 0, fmt.Errorf("permission %q on %s collection: %w",
			policy.PermissionView, r.desc.Entity, ErrForbidden)
	}
	r.metrics.RecordStorageOperation(r.desc.Entity, "search")

	query := opts.Base
	if query == nil {
		query = NewSelect(r.desc.Table, r.selectColumns()...)
	}
	for _, f := range opts.Filters {
		query.Where(f.Expr, f.Args...)
	}

	if err := r.applyACL(query, opts.Principals); err != nil {
		return 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	orderBy := opts.OrderBy
	if len(orderBy) == 0 {
		orderBy = r.desc.DefaultOrder
	}

	var total int
	if !opts.CountAfterAggregate {
		countSQL, countArgs := query.CountSQL()
		if err := q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return 0, fmt.Errorf("counting %s rows: %w", r.desc.Entity, err)
		}
		query.OrderBy(orderBy...).Page(limit, opts.Offset)
		if opts.PostAggregate != nil {
			query = opts.PostAggregate(query)
		}
	} else {
		if opts.PostAggregate != nil {
			query = opts.PostAggregate(query)
		}
		countSQL, countArgs := query.CountSQL()
		if err := q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return 0, fmt.Errorf("counting %s rows: %w", r.desc.Entity, err)
		}
		query.OrderBy(orderBy...).Page(limit, opts.Offset)
	}

	querySQL, queryArgs := query.SQL()
	rows, err := q.QueryContext(ctx, querySQL, queryArgs...)
	if err != nil {
		return 0, fmt.Errorf("searching %s: %w", r.desc.Entity, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := collect(rows); err != nil {
			return 0, fmt.Errorf("scanning %s search row: %w", r.desc.Entity, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return total, nil
}

// applyACL compiles the entity's access rules for the principal set and
// attaches the resulting predicate disjunction plus the joins it needs.
// Each distinct predicate table is joined exactly once, and tables the base
// query already contains are never joined again.
func (r *Repository[T]) applyACL(query *SelectQuery, principals principal.Set) error {
	if r.desc.Rules.Filters == nil {
		return nil
	}
	compiled := r.desc.Rules.Filters(principals)
	if compiled.Unrestricted {
		return nil
	}
	for _, table := range compiled.Tables() {
		if table == r.desc.Table || query.Joined(table) {
			continue
		}
		clause, ok := r.desc.Joins[table]
		if !ok {
			return fmt.Errorf("no join registered for ACL table %q on entity %s", table, r.desc.Entity)
		}
		query.Join(table, clause)
	}
	expr, args := compiled.SQL()
	query.Where(expr, args...)
	return nil
}
