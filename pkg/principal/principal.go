package principal

import (
	"fmt"
	"strconv"
	"strings"
)

// Principal is an opaque identity or role token resolved once at
// authentication time. Principals are immutable for the lifetime of a
// request; authorization code only ever reads them.
//
// The closed set of shapes:
//
//	role:<name>            built-in role (admin, manager, editor, owner, viewer)
//	user:<id>              a specific authenticated user
//	owner:person:<id>      ownership of a person record
//	owner:group:<id>       ownership of a group record
//	system:authenticated   any logged-in identity
type Principal string

// Authenticated is granted to every principal set resolved from a valid
// identity, independent of roles or ownership.
const Authenticated Principal = "system:authenticated"

// Built-in roles, ordered by privilege level.
const (
	RoleAdmin   Principal = "role:admin"
	RoleManager Principal = "role:manager"
	RoleEditor  Principal = "role:editor"
	RoleOwner   Principal = "role:owner"
	RoleViewer  Principal = "role:viewer"
)

// User returns the principal for a specific user id.
func User(userID string) Principal {
	return Principal("user:" + userID)
}

// PersonOwner returns the ownership principal for a person record.
func PersonOwner(personID int64) Principal {
	return Principal(fmt.Sprintf("owner:person:%d", personID))
}

// GroupOwner returns the ownership principal for a group record.
func GroupOwner(groupID int64) Principal {
	return Principal(fmt.Sprintf("owner:group:%d", groupID))
}

// IsRole reports whether p is a role principal.
func (p Principal) IsRole() bool {
	return strings.HasPrefix(string(p), "role:")
}

// UserID returns the user id for a user principal.
func (p Principal) UserID() (string, bool) {
	id, ok := strings.CutPrefix(string(p), "user:")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// PersonOwnerID returns the person id for an owner:person principal.
func (p Principal) PersonOwnerID() (int64, bool) {
	return ownerID(p, "owner:person:")
}

// GroupOwnerID returns the group id for an owner:group principal.
func (p Principal) GroupOwnerID() (int64, bool) {
	return ownerID(p, "owner:group:")
}

func ownerID(p Principal, prefix string) (int64, bool) {
	raw, ok := strings.CutPrefix(string(p), prefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Set is the resolved principal set for one request.
type Set []Principal

// NewSet builds a set from individual principals, dropping duplicates
// while preserving first-seen order.
func NewSet(principals ...Principal) Set {
	seen := make(map[Principal]struct{}, len(principals))
	out := make(Set, 0, len(principals))
	for _, p := range principals {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Contains reports whether p is in the set.
func (s Set) Contains(p Principal) bool {
	for _, q := range s {
		if q == p {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any of the given principals is in the set.
func (s Set) ContainsAny(principals ...Principal) bool {
	for _, p := range principals {
		if s.Contains(p) {
			return true
		}
	}
	return false
}

// GroupOwnerIDs returns the ids of all owner:group principals in the set.
func (s Set) GroupOwnerIDs() []int64 {
	var ids []int64
	for _, p := range s {
		if id, ok := p.GroupOwnerID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// PersonOwnerIDs returns the ids of all owner:person principals in the set.
func (s Set) PersonOwnerIDs() []int64 {
	var ids []int64
	for _, p := range s {
		if id, ok := p.PersonOwnerID(); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
