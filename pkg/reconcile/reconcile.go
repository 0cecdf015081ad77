// Package reconcile diffs a client-submitted child collection against the
// persisted collection and produces the minimal set of inserts, updates and
// deletes, preserving submission order and partial-update semantics.
//
// Collections come in two shapes. Ordered collections (contributors,
// descriptions, relations) are keyed by surrogate id and carry an explicit
// position column; after reconciliation positions are a dense zero-based
// sequence matching submission order. Unordered collections (accounts,
// identifiers) are keyed by a natural composite key and carry no mutable
// fields beyond the key, so matching items are left untouched.
//
// Submitted collections are passed as *[]T to preserve the distinction
// between a field that is absent from the payload (nil pointer: leave the
// persisted collection alone) and one that is explicitly empty (clear it).
// That distinction is what lets clients update unrelated root fields
// without resubmitting every child.
package reconcile

// OrderedItem is a child row in an ordered, id-keyed collection. A zero
// ItemID means the row has not been persisted yet.
type OrderedItem interface {
	ItemID() int64
	SetPosition(int)
}

// Outcome classifies the result of one reconciliation pass. Final holds the
// resulting collection; Added, Updated and Removed drive the persistence
// layer's insert/update/delete statements.
type Outcome[T any] struct {
	Final   []T
	Added   []T
	Updated []T
	Removed []T

	// Skipped means the collection key was absent from the payload and the
	// persisted collection must be left untouched.
	Skipped bool
}

// Ordered reconciles an ordered, id-keyed collection. Submitted items whose
// id matches a persisted item are updated in place via apply (which is also
// where the caller recurses into the child's own nested collections).
// Submitted items with no id, or an id that matches nothing, become fresh
// rows via fresh. Persisted items with no matching submission are removed.
// The final order is exactly submission order, and every item's position is
// rewritten to its index in that order.
func Ordered[T OrderedItem](persisted []T, submitted *[]T, fresh func(src T) T, apply func(dst, src T)) Outcome[T] {
	if submitted == nil {
		return Outcome[T]{Final: persisted, Skipped: true}
	}

	byID := make(map[int64]T, len(persisted))
	for _, item := range persisted {
		if id := item.ItemID(); id != 0 {
			byID[id] = item
		}
	}

	var out Outcome[T]
	matched := make(map[int64]struct{}, len(*submitted))
	out.Final = make([]T, 0, len(*submitted))
	for _, src := range *submitted {
		if id := src.ItemID(); id != 0 {
			if dst, ok := byID[id]; ok {
				apply(dst, src)
				matched[id] = struct{}{}
				out.Updated = append(out.Updated, dst)
				out.Final = append(out.Final, dst)
				continue
			}
		}
		item := fresh(src)
		out.Added = append(out.Added, item)
		out.Final = append(out.Final, item)
	}

	for _, item := range persisted {
		if _, ok := matched[item.ItemID()]; !ok {
			out.Removed = append(out.Removed, item)
		}
	}

	for i, item := range out.Final {
		item.SetPosition(i)
	}
	return out
}

// Set reconciles an unordered collection keyed by a natural composite key.
// The symmetric difference of the key sets drives removals and additions;
// items whose key appears on both sides are left untouched. A new key that
// is submitted more than once yields one addition per occurrence: the
// table's uniqueness constraint arbitrates duplicates at flush time instead
// of the second occurrence being silently dropped here.
func Set[T any, K comparable](persisted []T, submitted *[]T, key func(T) K, fresh func(src T) T) Outcome[T] {
	if submitted == nil {
		return Outcome[T]{Final: persisted, Skipped: true}
	}

	persistedByKey := make(map[K]T, len(persisted))
	for _, item := range persisted {
		persistedByKey[key(item)] = item
	}

	var out Outcome[T]
	seen := make(map[K]struct{}, len(*submitted))
	for _, src := range *submitted {
		k := key(src)
		if item, ok := persistedByKey[k]; ok {
			if _, dup := seen[k]; !dup {
				out.Final = append(out.Final, item)
			}
			seen[k] = struct{}{}
			continue
		}
		seen[k] = struct{}{}
		item := fresh(src)
		out.Added = append(out.Added, item)
		out.Final = append(out.Final, item)
	}

	for _, item := range persisted {
		if _, ok := seen[key(item)]; !ok {
			out.Removed = append(out.Removed, item)
		}
	}
	return out
}
