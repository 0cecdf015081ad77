// Package repository is the generic CRUD gateway shared by every resource
// type: get/getMany/put/putMany/delete/search over a single entity
// descriptor.
//
// Single-entity operations consult the access policy per instance; search
// compiles the same rules into SQL predicates and joins. Nested child
// collections are reconciled by the descriptor's SaveChildren hook during
// put. Every operation runs inside the caller's transaction — the
// repository never owns a connection and never commits.
//
// Signalling conventions:
//
//   - Absence is a nil result from Get/GetMany, never an error.
//   - Denial is ErrForbidden from both Get and GetMany (the plural form
//     does not get to degrade denial into absence, and the singular form
//     does not get to disguise it as absence either).
//   - Constraint violations surface exactly once, at the write boundary,
//     as *storage.StorageError with a field location when the violated
//     constraint is registered.
package repository
