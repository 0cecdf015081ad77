package policy

import (
	"fmt"
	"strings"
)

// Comparison operators for compiled predicates.
const (
	OpEqual = "="
	OpIn    = "IN"
)

// Predicate is a single column-level comparison compiled from an ownership
// rule. The Table annotation tells the query layer which table the
// comparison touches, so it can add exactly one join per distinct table
// instead of introspecting driver internals.
type Predicate struct {
	Table    string
	Column   string
	Operator string
	Value    any
}

// Eq builds an equality predicate.
func Eq(table, column string, value any) Predicate {
	return Predicate{Table: table, Column: column, Operator: OpEqual, Value: value}
}

// In builds a set membership predicate. Value must be a []int64.
func In(table, column string, values []int64) Predicate {
	return Predicate{Table: table, Column: column, Operator: OpIn, Value: values}
}

// SQL renders the predicate with ? placeholders and returns the bound
// arguments. The query layer renumbers placeholders for the driver.
func (p Predicate) SQL() (string, []any) {
	col := p.Table + "." + p.Column
	switch p.Operator {
	case OpIn:
		ids := p.Value.([]int64)
		marks := make([]string, len(ids))
		args := make([]any, len(ids))
		for i, id := range ids {
			marks[i] = "?"
			args[i] = id
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(marks, ", ")), args
	default:
		return fmt.Sprintf("%s %s ?", col, p.Operator), []any{p.Value}
	}
}

// CompiledFilter is the listing-query form of an entity's access rules: a
// disjunction of predicates, or an unrestricted marker when some principal
// holds an unconditional role grant.
type CompiledFilter struct {
	// Unrestricted means no ACL filtering is needed at all; no predicates
	// and no joins are added to the query.
	Unrestricted bool

	// Predicates are OR-ed together. An empty, restricted filter matches
	// nothing: entities with ownership rules expose no rows to principals
	// holding none of them.
	Predicates []Predicate
}

// Unrestricted is the short-circuit result for unconditional role grants.
func Unrestricted() CompiledFilter {
	return CompiledFilter{Unrestricted: true}
}

// Restrict builds a filter from the given predicates.
func Restrict(predicates ...Predicate) CompiledFilter {
	return CompiledFilter{Predicates: predicates}
}

// MatchNothing is a restricted filter with a predicate no row satisfies,
// used when a principal set holds no applicable grant at all.
func MatchNothing(table, keyColumn string) CompiledFilter {
	return Restrict(Eq(table, keyColumn, int64(-1)))
}

// Tables returns the distinct tables touched by the filter's predicates, in
// first-seen order. The query layer joins each listed table at most once.
func (f CompiledFilter) Tables() []string {
	seen := make(map[string]struct{}, len(f.Predicates))
	var tables []string
	for _, p := range f.Predicates {
		if _, ok := seen[p.Table]; ok {
			continue
		}
		seen[p.Table] = struct{}{}
		tables = append(tables, p.Table)
	}
	return tables
}

// SQL renders the whole filter as a single OR disjunction with ?
// placeholders. An unrestricted or empty filter renders as the empty string.
func (f CompiledFilter) SQL() (string, []any) {
	if f.Unrestricted || len(f.Predicates) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(f.Predicates))
	var args []any
	for _, p := range f.Predicates {
		clause, clauseArgs := p.SQL()
		clauses = append(clauses, clause)
		args = append(args, clauseArgs...)
	}
	if len(clauses) == 1 {
		return clauses[0], args
	}
	return "(" + strings.Join(clauses, " OR ") + ")", args
}
