package registry

import (
	"github.com/platinummonkey/corpus/pkg/policy"
	"github.com/platinummonkey/corpus/pkg/principal"
)

// editorRoles hold blanket write access to registry records. An admin holds
// every permission unconditionally.
var editorRoles = []principal.Principal{
	principal.RoleAdmin,
	principal.RoleManager,
	principal.RoleEditor,
}

func staffGrants() []policy.Grant {
	return []policy.Grant{
		policy.AllowAll(principal.RoleAdmin),
		policy.Allow(principal.Authenticated, policy.PermissionSearch),
		policy.Allow(principal.RoleManager,
			policy.PermissionView, policy.PermissionAdd, policy.PermissionEdit, policy.PermissionDelete),
		policy.Allow(principal.RoleEditor,
			policy.PermissionView, policy.PermissionAdd, policy.PermissionEdit, policy.PermissionDelete),
	}
}

func collectionView() []policy.Grant {
	return []policy.Grant{
		policy.Allow(principal.Authenticated, policy.PermissionView),
	}
}

// Rules assembles the per-entity access rule sets consumed by the policy
// decider and the filter compiler.
func Rules() map[string]policy.Rules {
	return map[string]policy.Rules{
		EntityPerson:     personRules(),
		EntityGroup:      groupRules(),
		EntityWork:       workRules(),
		EntityMembership: membershipRules(),
		EntityUser:       userRules(),
	}
}

func personRules() policy.Rules {
	return policy.Rules{
		Static:     staffGrants(),
		Collection: collectionView(),
		Instance: func(instance any) []policy.Grant {
			p := instance.(*Person)
			grants := []policy.Grant{
				policy.Allow(principal.PersonOwner(p.ID), policy.PermissionView, policy.PermissionEdit),
			}
			for _, m := range p.Memberships {
				grants = append(grants,
					policy.Allow(principal.GroupOwner(m.GroupID), policy.PermissionView, policy.PermissionEdit))
			}
			return grants
		},
		Filters: func(principals principal.Set) policy.CompiledFilter {
			if principals.ContainsAny(editorRoles...) {
				return policy.Unrestricted()
			}
			var predicates []policy.Predicate
			for _, id := range principals.PersonOwnerIDs() {
				predicates = append(predicates, policy.Eq("persons", "id", id))
			}
			if groups := principals.GroupOwnerIDs(); len(groups) > 0 {
				predicates = append(predicates, policy.In("memberships", "group_id", groups))
			}
			if len(predicates) == 0 {
				return policy.MatchNothing("persons", "id")
			}
			return policy.Restrict(predicates...)
		},
	}
}

func groupRules() policy.Rules {
	return policy.Rules{
		Static:     staffGrants(),
		Collection: collectionView(),
		Instance: func(instance any) []policy.Grant {
			g := instance.(*Group)
			return []policy.Grant{
				policy.Allow(principal.GroupOwner(g.ID), policy.PermissionView, policy.PermissionEdit),
			}
		},
		Filters: func(principals principal.Set) policy.CompiledFilter {
			if principals.ContainsAny(editorRoles...) {
				return policy.Unrestricted()
			}
			if groups := principals.GroupOwnerIDs(); len(groups) > 0 {
				return policy.Restrict(policy.In("groups", "id", groups))
			}
			return policy.MatchNothing("groups", "id")
		},
	}
}

func workRules() policy.Rules {
	return policy.Rules{
		Static:     staffGrants(),
		Collection: collectionView(),
		Instance: func(instance any) []policy.Grant {
			w := instance.(*Work)
			var grants []policy.Grant
			if w.Contributors == nil {
				return grants
			}
			for _, c := range *w.Contributors {
				if c.PersonID != nil {
					grants = append(grants,
						policy.Allow(principal.PersonOwner(*c.PersonID), policy.PermissionView, policy.PermissionEdit))
				}
				if c.GroupID != nil {
					grants = append(grants,
						policy.Allow(principal.GroupOwner(*c.GroupID), policy.PermissionView, policy.PermissionEdit))
				}
				if c.Affiliations == nil {
					continue
				}
				for _, a := range *c.Affiliations {
					grants = append(grants,
						policy.Allow(principal.GroupOwner(a.GroupID), policy.PermissionView, policy.PermissionEdit))
				}
			}
			return grants
		},
		Filters: func(principals principal.Set) policy.CompiledFilter {
			if principals.ContainsAny(editorRoles...) {
				return policy.Unrestricted()
			}
			var predicates []policy.Predicate
			for _, id := range principals.PersonOwnerIDs() {
				predicates = append(predicates, policy.Eq("contributors", "person_id", id))
			}
			if groups := principals.GroupOwnerIDs(); len(groups) > 0 {
				predicates = append(predicates, policy.In("affiliations", "group_id", groups))
			}
			if len(predicates) == 0 {
				return policy.MatchNothing("works", "id")
			}
			return policy.Restrict(predicates...)
		},
	}
}

func membershipRules() policy.Rules {
	return policy.Rules{
		Static:     staffGrants(),
		Collection: collectionView(),
		Instance: func(instance any) []policy.Grant {
			m := instance.(*Membership)
			return []policy.Grant{
				policy.Allow(principal.GroupOwner(m.GroupID),
					policy.PermissionView, policy.PermissionAdd, policy.PermissionEdit, policy.PermissionDelete),
				policy.Allow(principal.PersonOwner(m.PersonID), policy.PermissionView),
			}
		},
		Filters: func(principals principal.Set) policy.CompiledFilter {
			if principals.ContainsAny(editorRoles...) {
				return policy.Unrestricted()
			}
			var predicates []policy.Predicate
			if groups := principals.GroupOwnerIDs(); len(groups) > 0 {
				predicates = append(predicates, policy.In("memberships", "group_id", groups))
			}
			if persons := principals.PersonOwnerIDs(); len(persons) > 0 {
				predicates = append(predicates, policy.In("memberships", "person_id", persons))
			}
			if len(predicates) == 0 {
				return policy.MatchNothing("memberships", "id")
			}
			return policy.Restrict(predicates...)
		},
	}
}

func userRules() policy.Rules {
	return policy.Rules{
		Static: []policy.Grant{
			policy.AllowAll(principal.RoleAdmin),
		},
		Collection: []policy.Grant{
			policy.Allow(principal.Authenticated, policy.PermissionView),
		},
		Instance: func(instance any) []policy.Grant {
			u := instance.(*User)
			// Users can view their own account, nothing more.
			return []policy.Grant{
				policy.Allow(principal.User(u.UserID), policy.PermissionView),
			}
		},
		Filters: func(principals principal.Set) policy.CompiledFilter {
			if principals.Contains(principal.RoleAdmin) {
				return policy.Unrestricted()
			}
			var predicates []policy.Predicate
			for _, p := range principals {
				if id, ok := p.UserID(); ok {
					predicates = append(predicates, policy.Eq("users", "userid", id))
				}
			}
			if len(predicates) == 0 {
				return policy.MatchNothing("users", "id")
			}
			return policy.Restrict(predicates...)
		},
	}
}
