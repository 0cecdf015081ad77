// Package auth resolves user identities into principal sets. Resolution
// happens exactly once per request; everything downstream treats the set
// as immutable.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/corpus/pkg/principal"
	"github.com/platinummonkey/corpus/pkg/storage"
)

// rolesByLevel maps user group privilege levels to role principals.
var rolesByLevel = map[int]principal.Principal{
	100: principal.RoleAdmin,
	80:  principal.RoleManager,
	60:  principal.RoleEditor,
	40:  principal.RoleOwner,
	10:  principal.RoleViewer,
}

// Authenticator checks credentials and resolves principal sets against the
// users and owners tables of one tenant.
type Authenticator struct {
	log *logrus.Entry
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator() *Authenticator {
	return &Authenticator{log: logrus.WithField("component", "auth")}
}

// ExistingUser reports whether a userid is registered.
func (a *Authenticator) ExistingUser(ctx context.Context, q storage.Queryer, userID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE userid = $1", userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("looking up user %q: %w", userID, err)
	}
	return n > 0, nil
}

// ValidUser reports whether the userid/credentials pair matches a
// registered user. An unknown userid is invalid, not an error.
func (a *Authenticator) ValidUser(ctx context.Context, q storage.Queryer, userID, credentials string) (bool, error) {
	var stored string
	err := q.QueryRowContext(ctx,
		"SELECT credentials FROM users WHERE userid = $1", userID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("validating user %q: %w", userID, err)
	}
	return stored == credentials, nil
}

// Principals resolves a userid into its full principal set: the user
// principal, the role matching its privilege level, the authenticated
// marker, and one ownership principal per owner record. An unknown userid
// yields an empty set.
func (a *Authenticator) Principals(ctx context.Context, q storage.Queryer, userID string) (principal.Set, error) {
	var id int64
	var level int
	err := q.QueryRowContext(ctx,
		"SELECT id, user_group FROM users WHERE userid = $1", userID).Scan(&id, &level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving principals for %q: %w", userID, err)
	}

	principals := principal.Set{principal.User(userID), principal.Authenticated}
	role, ok := rolesByLevel[level]
	if !ok {
		a.log.WithFields(logrus.Fields{
			"userid": userID,
			"level":  level,
		}).Warn("user has unknown privilege level, no role granted")
	} else {
		principals = append(principals, role)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT person_id, group_id FROM owners WHERE user_id = $1 ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("loading ownerships for %q: %w", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var personID, groupID sql.NullInt64
		if err := rows.Scan(&personID, &groupID); err != nil {
			return nil, err
		}
		switch {
		case personID.Valid:
			principals = append(principals, principal.PersonOwner(personID.Int64))
		case groupID.Valid:
			principals = append(principals, principal.GroupOwner(groupID.Int64))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return principals, nil
}
