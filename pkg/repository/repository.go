package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/corpus/pkg/observability"
	"github.com/platinummonkey/corpus/pkg/policy"
	"github.com/platinummonkey/corpus/pkg/principal"
	"github.com/platinummonkey/corpus/pkg/storage"
)

// Sentinel conditions crossing the core boundary. The calling layer owns
// the mapping to user-facing statuses; the core only decides which
// condition applies.
var (
	// ErrForbidden means the principal set lacks the required permission on
	// an instance that exists. Both Get and GetMany signal denial this way;
	// batch lookups must not degrade "denied" into "missing".
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned for write operations addressing a key that is
	// absent from storage. Read operations represent absence as a nil
	// result instead.
	ErrNotFound = errors.New("not found")
)

// Entity is a root record managed through a Repository. A zero Key means
// the record has not been persisted yet.
type Entity interface {
	policy.Resource
	Key() int64
	SetKey(int64)
}

// RowScanner abstracts *sql.Row and *sql.Rows for descriptor scan funcs.
type RowScanner interface {
	Scan(dest ...any) error
}

// Descriptor is the static description of one entity type: its table
// shape, its access rules, its pre-persist hook and its nested child
// collections. Everything the generic repository needs is declared here, so
// per-entity behavior is data rather than subclassing.
type Descriptor[T Entity] struct {
	Entity    string
	Table     string
	KeyColumn string

	// Columns lists the non-key columns; Values must produce matching
	// values and Scan must consume key + Columns in order.
	Columns []string
	Values  func(T) []any
	Scan    func(RowScanner) (T, error)

	// Rules feed both instance checks and listing predicate compilation.
	Rules policy.Rules

	// Joins maps each table an ACL predicate may touch to its join clause.
	Joins map[string]string

	// DefaultOrder is applied when a search specifies no ordering.
	DefaultOrder []string

	// PrePut runs entity-specific derivations (display label, search terms)
	// before the permission check and the flush.
	PrePut func(T)

	// Constraints resolves violated constraint names to field locations.
	Constraints storage.ConstraintLocations

	// LoadChildren populates the entity's child collections after the root
	// row has been scanned. Optional.
	LoadChildren func(ctx context.Context, q storage.Queryer, e T) error

	// SaveChildren reconciles and persists the entity's child collections.
	// persisted is the stored state (zero on add); submitted carries the
	// client payload with nil collection pointers meaning "leave alone".
	// Optional.
	SaveChildren func(ctx context.Context, q storage.Queryer, persisted, submitted T) error
}

// Repository is the generic CRUD gateway for one entity type. It composes
// the access policy for single-entity operations, the compiled ACL filter
// for searches, and the reconciler (via SaveChildren) for nested writes.
// All operations run against the caller's transaction.
type Repository[T Entity] struct {
	desc    Descriptor[T]
	decider *policy.Decider
	metrics *observability.Metrics
}

// Option configures a Repository.
type Option[T Entity] func(*Repository[T])

// WithMetrics attaches Prometheus metrics.
func WithMetrics[T Entity](m *observability.Metrics) Option[T] {
	return func(r *Repository[T]) {
		r.metrics = m
	}
}

// New builds a repository from a descriptor and the shared policy decider.
func New[T Entity](desc Descriptor[T], decider *policy.Decider, opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{desc: desc, decider: decider}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Descriptor exposes the entity descriptor, mainly for listing helpers.
func (r *Repository[T]) Descriptor() Descriptor[T] {
	return r.desc
}

func (r *Repository[T]) selectColumns() []string {
	cols := make([]string, 0, len(r.desc.Columns)+1)
	cols = append(cols, r.desc.Table+"."+r.desc.KeyColumn)
	for _, c := range r.desc.Columns {
		cols = append(cols, r.desc.Table+"."+c)
	}
	return cols
}

// fetch loads a single entity with children, without any permission check.
func (r *Repository[T]) fetch(ctx context.Context, q storage.Queryer, key int64) (T, error) {
	var zero T
	query, args := NewSelect(r.desc.Table, r.selectColumns()...).
		Where(r.desc.Table+"."+r.desc.KeyColumn+" = ?", key).
		SQL()
	e, err := r.desc.Scan(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("loading %s %d: %w", r.desc.Entity, key, err)
	}
	if r.desc.LoadChildren != nil {
		if err := r.desc.LoadChildren(ctx, q, e); err != nil {
			return zero, fmt.Errorf("loading %s %d children: %w", r.desc.Entity, key, err)
		}
	}
	return e, nil
}

// Get returns the entity for key, or the zero value when the key is absent.
// A present entity that fails the view check returns ErrForbidden. Check
// options (e.g. policy.WithTransitiveGroups) apply to every permission
// check the operation performs.
func (r *Repository[T]) Get(ctx context.Context, q storage.Queryer, key int64, principals principal.Set, opts ...policy.CheckOption) (T, error) {
	results, err := r.GetMany(ctx, q, []int64{key}, principals, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return results[0], nil
}

// GetMany loads multiple entities in one query. The result always has one
// entry per input key, in input order; an absent key yields the zero value
// at its position. Any present entity failing the view check aborts the
// whole call with ErrForbidden.
func (r *Repository[T]) GetMany(ctx context.Context, q storage.Queryer, keys []int64, principals principal.Set, opts ...policy.CheckOption) ([]T, error) {
	r.metrics.RecordStorageOperation(r.desc.Entity, "get")
	results := make([]T, len(keys))
	if len(keys) == 0 {
		return results, nil
	}

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	query, qargs := NewSelect(r.desc.Table, r.selectColumns()...).
		Where(fmt.Sprintf("%s.%s IN (%s)", r.desc.Table, r.desc.KeyColumn, Placeholders(len(keys))), args...).
		SQL()
	rows, err := q.QueryContext(ctx, query, qargs...)
	if err != nil {
		return nil, fmt.Errorf("loading %s records: %w", r.desc.Entity, err)
	}
	defer rows.Close()

	byKey := make(map[int64]T, len(keys))
	for rows.Next() {
		e, err := r.desc.Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s record: %w", r.desc.Entity, err)
		}
		byKey[e.Key()] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, key := range keys {
		e, ok := byKey[key]
		if !ok {
			continue
		}
		if r.desc.LoadChildren != nil {
			if err := r.desc.LoadChildren(ctx, q, e); err != nil {
				return nil, fmt.Errorf("loading %s %d children: %w", r.desc.Entity, key, err)
			}
		}
		allowed, err := r.check(ctx, policy.ContextFor(e), principals, policy.PermissionView, opts...)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("permission %q on %s %d: %w",
				policy.PermissionView, r.desc.Entity, key, ErrForbidden)
		}
		results[i] = e
	}
	return results, nil
}

// Put persists one entity. A zero key classifies the write as an add,
// otherwise as an edit of an existing record; the corresponding permission
// is checked strictly before any row is written. Child collections are
// reconciled after the root row is flushed. Constraint violations come back
// as *storage.StorageError.
func (r *Repository[T]) Put(ctx context.Context, q storage.Queryer, e T, principals principal.Set, opts ...policy.CheckOption) (T, error) {
	var zero T
	key := e.Key()
	perm := policy.PermissionAdd
	var persisted T
	if key != 0 {
		perm = policy.PermissionEdit
		existing, err := r.fetch(ctx, q, key)
		if err != nil {
			return zero, err
		}
		if isZero(existing) {
			return zero, fmt.Errorf("%s %d: %w", r.desc.Entity, key, ErrNotFound)
		}
		persisted = existing
	}

	if r.desc.PrePut != nil {
		r.desc.PrePut(e)
	}

	// The permission check precedes any mutation. For an edit the dynamic
	// grants derive from the stored state, so a caller cannot grant itself
	// access through relationships carried in the very payload under check.
	subject := any(e)
	if perm == policy.PermissionEdit {
		subject = any(persisted)
	}
	allowed, err := r.check(ctx, policy.Context{Entity: r.desc.Entity, Instance: subject}, principals, perm, opts...)
	if err != nil {
		return zero, err
	}
	if !allowed {
		return zero, fmt.Errorf("permission %q on %s: %w", perm, r.desc.Entity, ErrForbidden)
	}

	r.metrics.RecordStorageOperation(r.desc.Entity, string(perm))
	if perm == policy.PermissionAdd {
		err = r.insert(ctx, q, e)
	} else {
		err = r.update(ctx, q, e)
	}
	if err != nil {
		return zero, r.translate(err, string(perm))
	}

	if r.desc.SaveChildren != nil {
		if err := r.desc.SaveChildren(ctx, q, persisted, e); err != nil {
			return zero, r.translate(err, string(perm))
		}
	}
	return e, nil
}

// PutMany persists several entities in order, stopping at the first error.
func (r *Repository[T]) PutMany(ctx context.Context, q storage.Queryer, entities []T, principals principal.Set, opts ...policy.CheckOption) ([]T, error) {
	results := make([]T, 0, len(entities))
	for _, e := range entities {
		saved, err := r.Put(ctx, q, e, principals, opts...)
		if err != nil {
			return nil, err
		}
		results = append(results, saved)
	}
	return results, nil
}

// Delete removes an entity. The delete permission is checked before any
// DELETE is issued, so a denied check stages nothing.
func (r *Repository[T]) Delete(ctx context.Context, q storage.Queryer, e T, principals principal.Set, opts ...policy.CheckOption) error {
	allowed, err := r.check(ctx, policy.ContextFor(e), principals, policy.PermissionDelete, opts...)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("permission %q on %s %d: %w",
			policy.PermissionDelete, r.desc.Entity, e.Key(), ErrForbidden)
	}
	r.metrics.RecordStorageOperation(r.desc.Entity, "delete")
	query := renumber(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", r.desc.Table, r.desc.KeyColumn))
	if _, err := q.ExecContext(ctx, query, e.Key()); err != nil {
		return r.translate(err, "delete")
	}
	return nil
}

func (r *Repository[T]) insert(ctx context.Context, q storage.Queryer, e T) error {
	query := renumber(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		r.desc.Table,
		strings.Join(r.desc.Columns, ", "),
		Placeholders(len(r.desc.Columns)),
		r.desc.KeyColumn,
	))
	var key int64
	if err := q.QueryRowContext(ctx, query, r.desc.Values(e)...).Scan(&key); err != nil {
		return err
	}
	e.SetKey(key)
	return nil
}

func (r *Repository[T]) update(ctx context.Context, q storage.Queryer, e T) error {
	sets := make([]string, len(r.desc.Columns))
	for i, c := range r.desc.Columns {
		sets[i] = c + " = ?"
	}
	query := renumber(fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		r.desc.Table, strings.Join(sets, ", "), r.desc.KeyColumn,
	))
	args := append(r.desc.Values(e), e.Key())
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository[T]) check(ctx context.Context, rctx policy.Context, principals principal.Set, perm policy.Permission, opts ...policy.CheckOption) (bool, error) {
	allowed, err := r.decider.Check(ctx, rctx, principals, perm, opts...)
	if err != nil {
		return false, err
	}
	r.metrics.RecordPolicyDecision(r.desc.Entity, string(perm), allowed)
	return allowed, nil
}

func (r *Repository[T]) translate(err error, operation string) error {
	translated := storage.TranslateError(err, r.desc.Constraints)
	var serr *storage.StorageError
	if errors.As(translated, &serr) {
		r.metrics.RecordStorageError(r.desc.Entity, operation)
	}
	return translated
}

// isZero reports whether an entity value is its type's zero value (nil for
// the pointer types used in practice).
func isZero[T Entity](e T) bool {
	var zero T
	return any(e) == any(zero)
}
