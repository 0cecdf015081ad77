// Package registry defines the concrete entities of the research
// information registry (persons, groups, works, memberships, users), their
// access rules, and the stores persisting them.
package registry

import (
	"github.com/platinummonkey/corpus/pkg/observability"
	"github.com/platinummonkey/corpus/pkg/policy"
)

// Registry bundles the per-entity stores over one shared policy decider.
// Stores are connection-free: every operation takes a Queryer, so one
// Registry serves all tenants.
type Registry struct {
	Decider     *policy.Decider
	Persons     *PersonStore
	Groups      *GroupStore
	Works       *WorkStore
	Memberships *MembershipStore
	Users       *UserStore
}

// New builds the registry. Metrics may be nil.
func New(metrics *observability.Metrics) *Registry {
	decider := policy.NewDecider(Rules())
	return &Registry{
		Decider:     decider,
		Persons:     NewPersonStore(decider, metrics),
		Groups:      NewGroupStore(decider, metrics),
		Works:       NewWorkStore(decider, metrics),
		Memberships: NewMembershipStore(decider, metrics),
		Users:       NewUserStore(decider, metrics),
	}
}
