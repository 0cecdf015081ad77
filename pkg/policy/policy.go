package policy

import (
	"context"
	"fmt"

	"github.com/platinummonkey/corpus/pkg/principal"
)

// Permission is an operation that can be requested on an entity or on an
// entity collection.
type Permission string

const (
	PermissionView   Permission = "view"
	PermissionAdd    Permission = "add"
	PermissionEdit   Permission = "edit"
	PermissionDelete Permission = "delete"
	PermissionSearch Permission = "search"
)

// PermissionSet is the set of permissions carried by a single grant.
type PermissionSet struct {
	all   bool
	perms []Permission
}

// Permissions builds a permission set from individual permissions.
func Permissions(perms ...Permission) PermissionSet {
	return PermissionSet{perms: perms}
}

// AllPermissions matches every permission, including ones introduced later.
func AllPermissions() PermissionSet {
	return PermissionSet{all: true}
}

// Has reports whether the set contains the given permission.
func (ps PermissionSet) Has(perm Permission) bool {
	if ps.all {
		return true
	}
	for _, p := range ps.perms {
		if p == perm {
			return true
		}
	}
	return false
}

// Grant pairs a principal pattern with the permissions it confers.
// Grants are purely additive: a permission is allowed iff some grant whose
// principal is held carries it. There are no deny rules.
type Grant struct {
	Principal   principal.Principal
	Permissions PermissionSet
}

// Allow is shorthand for constructing a grant.
func Allow(p principal.Principal, perms ...Permission) Grant {
	return Grant{Principal: p, Permissions: Permissions(perms...)}
}

// AllowAll grants every permission to the given principal.
func AllowAll(p principal.Principal) Grant {
	return Grant{Principal: p, Permissions: AllPermissions()}
}

// Rules is the access rule source for one entity type. The same rule set
// feeds both instance-level checks (Decider) and listing-level predicate
// compilation (FilterCompiler).
type Rules struct {
	// Static grants apply regardless of whether an instance is loaded.
	Static []Grant

	// Collection grants apply only when no instance is loaded, i.e. for
	// container semantics such as add, search and collection-level view.
	Collection []Grant

	// Instance computes dynamic grants from a loaded instance's own data,
	// e.g. one owner:group grant per membership row. It must be a pure
	// function of the instance; results are never cached or persisted.
	Instance func(instance any) []Grant

	// Filters compiles the same ownership rules into column-level
	// predicates for listing queries. See FilterCompiler.
	Filters func(principals principal.Set) CompiledFilter
}

// Context identifies what a permission is being checked against: an entity
// type plus an optionally loaded instance. A nil Instance models the
// collection itself (add, search, collection view).
type Context struct {
	Entity   string
	Instance any
}

// Resource is implemented by loaded entity instances so callers can build a
// Context without knowing concrete types.
type Resource interface {
	EntityName() string
}

// ContextFor builds an instance-level context from a loaded resource.
func ContextFor(r Resource) Context {
	return Context{Entity: r.EntityName(), Instance: r}
}

// CollectionContext builds a collection-level context for an entity type.
func CollectionContext(entity string) Context {
	return Context{Entity: entity}
}

// GroupExpander resolves the transitive descendants of a group. It is
// consulted only when a check explicitly opts in to transitive ownership;
// closure computation is strictly more expensive than direct id matching.
type GroupExpander interface {
	Descendants(ctx context.Context, groupID int64) (map[int64]struct{}, error)
}

// Decider answers instance-level permission checks. It never distinguishes
// not-found from forbidden: callers only ask about instances known to exist,
// or about collections.
type Decider struct {
	rules map[string]Rules
}

// NewDecider builds a decider over per-entity rule sets.
func NewDecider(rules map[string]Rules) *Decider {
	return &Decider{rules: rules}
}

// Rules returns the rule set registered for an entity type.
func (d *Decider) Rules(entity string) (Rules, bool) {
	r, ok := d.rules[entity]
	return r, ok
}

// CheckOption adjusts a single permission check.
type CheckOption func(*checkOptions)

type checkOptions struct {
	expander GroupExpander
}

// WithTransitiveGroups expands owner:group principals to cover all
// transitive descendant groups before matching grants. Opt-in because the
// closure walk costs a query per check.
func WithTransitiveGroups(expander GroupExpander) CheckOption {
	return func(o *checkOptions) {
		o.expander = expander
	}
}

// Check reports whether the principal set holds the requested permission in
// the given context. The decision is a pure OR over matching grants.
func (d *Decider) Check(ctx context.Context, rctx Context, principals principal.Set, perm Permission, opts ...CheckOption) (bool, error) {
	rules, ok := d.rules[rctx.Entity]
	if !ok {
		return false, fmt.Errorf("no access rules registered for entity %q", rctx.Entity)
	}

	var options checkOptions
	for _, opt := range opts {
		opt(&options)
	}

	effective := principals
	if options.expander != nil {
		expanded, err := expandGroupOwners(ctx, options.expander, principals)
		if err != nil {
			return false, err
		}
		effective = expanded
	}

	for _, grant := range rules.Static {
		if effective.Contains(grant.Principal) && grant.Permissions.Has(perm) {
			return true, nil
		}
	}

	if rctx.Instance == nil {
		for _, grant := range rules.Collection {
			if effective.Contains(grant.Principal) && grant.Permissions.Has(perm) {
				return true, nil
			}
		}
		return false, nil
	}

	if rules.Instance != nil {
		for _, grant := range rules.Instance(rctx.Instance) {
			if effective.Contains(grant.Principal) && grant.Permissions.Has(perm) {
				return true, nil
			}
		}
	}
	return false, nil
}

// expandGroupOwners appends an owner:group principal for every transitive
// descendant of each directly owned group.
func expandGroupOwners(ctx context.Context, expander GroupExpander, principals principal.Set) (principal.Set, error) {
	expanded := principals
	for _, gid := range principals.GroupOwnerIDs() {
		descendants, err := expander.Descendants(ctx, gid)
		if err != nil {
			return nil, fmt.Errorf("expanding group %d: %w", gid, err)
		}
		for id := range descendants {
			p := principal.GroupOwner(id)
			if !expanded.Contains(p) {
				expanded = append(expanded, p)
			}
		}
	}
	return expanded, nil
}
