package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/corpus/pkg/principal"
)

type note struct {
	ID      int64
	OwnerID int64
	GroupID int64
}

func (n *note) EntityName() string { return "note" }

func noteRules() Rules {
	return Rules{
		Static: []Grant{
			AllowAll(principal.RoleAdmin),
			Allow(principal.Authenticated, PermissionSearch),
		},
		Collection: []Grant{
			Allow(principal.Authenticated, PermissionView),
		},
		Instance: func(instance any) []Grant {
			n := instance.(*note)
			return []Grant{
				Allow(principal.PersonOwner(n.OwnerID), PermissionView, PermissionEdit),
				Allow(principal.GroupOwner(n.GroupID), PermissionView),
			}
		},
	}
}

func newTestDecider() *Decider {
	return NewDecider(map[string]Rules{"note": noteRules()})
}

func TestCheckStaticGrants(t *testing.T) {
	d := newTestDecider()
	ctx := context.Background()
	n := &note{ID: 1, OwnerID: 5, GroupID: 9}

	admin := principal.NewSet(principal.RoleAdmin, principal.Authenticated)
	for _, perm := range []Permission{PermissionView, PermissionAdd, PermissionEdit, PermissionDelete, PermissionSearch} {
		allowed, err := d.Check(ctx, ContextFor(n), admin, perm)
		require.NoError(t, err)
		assert.True(t, allowed, "admin should hold %s", perm)
	}

	viewer := principal.NewSet(principal.Authenticated)
	allowed, err := d.Check(ctx, ContextFor(n), viewer, PermissionSearch)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = d.Check(ctx, ContextFor(n), viewer, PermissionEdit)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheckCollectionGrants(t *testing.T) {
	d := newTestDecider()
	ctx := context.Background()

	viewer := principal.NewSet(principal.Authenticated)
	allowed, err := d.Check(ctx, CollectionContext("note"), viewer, PermissionView)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Collection grants never apply to instance checks.
	allowed, err = d.Check(ctx, ContextFor(&note{ID: 1, OwnerID: 5}), viewer, PermissionView)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = d.Check(ctx, CollectionContext("note"), viewer, PermissionAdd)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheckInstanceGrants(t *testing.T) {
	d := newTestDecider()
	ctx := context.Background()
	n := &note{ID: 1, OwnerID: 5, GroupID: 9}

	owner := principal.NewSet(principal.Authenticated, principal.PersonOwner(5))
	allowed, err := d.Check(ctx, ContextFor(n), owner, PermissionEdit)
	require.NoError(t, err)
	assert.True(t, allowed)

	groupOwner := principal.NewSet(principal.Authenticated, principal.GroupOwner(9))
	allowed, err = d.Check(ctx, ContextFor(n), groupOwner, PermissionView)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = d.Check(ctx, ContextFor(n), groupOwner, PermissionEdit)
	require.NoError(t, err)
	assert.False(t, allowed)

	stranger := principal.NewSet(principal.Authenticated, principal.PersonOwner(99))
	allowed, err = d.Check(ctx, ContextFor(n), stranger, PermissionView)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheckUnknownEntity(t *testing.T) {
	d := newTestDecider()
	_, err := d.Check(context.Background(), CollectionContext("widget"),
		principal.NewSet(principal.RoleAdmin), PermissionView)
	assert.Error(t, err)
}

// expanderFunc adapts a function to the GroupExpander interface.
type expanderFunc func(ctx context.Context, groupID int64) (map[int64]struct{}, error)

func (f expanderFunc) Descendants(ctx context.Context, groupID int64) (map[int64]struct{}, error) {
	return f(ctx, groupID)
}

func TestCheckTransitiveGroupExpansion(t *testing.T) {
	d := newTestDecider()
	ctx := context.Background()
	n := &note{ID: 1, OwnerID: 5, GroupID: 9}

	// Group 2 transitively contains group 9.
	expander := expanderFunc(func(_ context.Context, groupID int64) (map[int64]struct{}, error) {
		if groupID == 2 {
			return map[int64]struct{}{7: {}, 9: {}}, nil
		}
		return map[int64]struct{}{}, nil
	})

	parentOwner := principal.NewSet(principal.Authenticated, principal.GroupOwner(2))

	// Without expansion the parent grant does not reach the note.
	allowed, err := d.Check(ctx, ContextFor(n), parentOwner, PermissionView)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = d.Check(ctx, ContextFor(n), parentOwner, PermissionView,
		WithTransitiveGroups(expander))
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckMonotonicUnderPrincipalSupersets(t *testing.T) {
	d := newTestDecider()
	ctx := context.Background()
	n := &note{ID: 1, OwnerID: 5, GroupID: 9}

	principals := principal.NewSet(principal.PersonOwner(5))
	allowed, err := d.Check(ctx, ContextFor(n), principals, PermissionEdit)
	require.NoError(t, err)
	require.True(t, allowed)

	// Grants are purely additive, so a decision can never flip to deny as
	// principals are added. Grow the set one unrelated principal at a time
	// and re-check at every step.
	extras := []principal.Principal{
		principal.Authenticated,
		principal.User("eve"),
		principal.PersonOwner(99),
		principal.GroupOwner(3),
		principal.RoleViewer,
		principal.RoleAdmin,
	}
	for _, extra := range extras {
		principals = append(principals, extra)
		allowed, err := d.Check(ctx, ContextFor(n), principals, PermissionEdit)
		require.NoError(t, err)
		assert.True(t, allowed, "adding %s must not revoke the grant", extra)
	}
}

func TestPermissionSet(t *testing.T) {
	ps := Permissions(PermissionView, PermissionEdit)
	assert.True(t, ps.Has(PermissionView))
	assert.False(t, ps.Has(PermissionDelete))

	all := AllPermissions()
	assert.True(t, all.Has(PermissionDelete))
	assert.True(t, all.Has(Permission("future")))
}
