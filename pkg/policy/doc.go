// Package policy implements the access-control core shared by every
// resource type in the registry.
//
// Each entity type registers a Rules value: static role grants, collection
// grants for container-level operations, and a pure function deriving
// dynamic ownership grants from a loaded instance's own data (for example,
// one owner:group grant per membership row on a person). The same rule
// source serves two consumers:
//
//   - Decider answers per-instance checks: does this principal set hold
//     this permission on this instance? Decisions are a pure OR over
//     matching grants; there are no deny rules, so adding principals can
//     only ever add access.
//
//   - CompiledFilter is the listing-query form of the same rules: a
//     disjunction of (table, column, operator, value) predicates annotated
//     with the table each touches, so the query layer can add exactly one
//     join per distinct table.
//
// Transitive group ownership is opt-in via WithTransitiveGroups, because
// the closure walk costs a query per check while a direct id match is free.
package policy
