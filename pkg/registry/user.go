package registry

import (
	"github.com/platinummonkey/corpus/pkg/observability"
	"github.com/platinummonkey/corpus/pkg/policy"
	"github.com/platinummonkey/corpus/pkg/repository"
	"github.com/platinummonkey/corpus/pkg/storage"
)

// UserStore is the repository for user accounts.
type UserStore struct {
	*repository.Repository[*User]
}

// NewUserStore builds the user repository.
func NewUserStore(decider *policy.Decider, metrics *observability.Metrics) *UserStore {
	desc := repository.Descriptor[*User]{
		Entity:    EntityUser,
		Table:     "users",
		KeyColumn: "id",
		Columns:   []string{"userid", "credentials", "user_group", "search_terms"},
		Values: func(u *User) []any {
			return []any{u.UserID, u.Credentials, u.UserGroup, u.SearchTerms}
		},
		Scan: func(row repository.RowScanner) (*User, error) {
			var u User
			err := row.Scan(&u.ID, &u.UserID, &u.Credentials, &u.UserGroup, &u.SearchTerms)
			if err != nil {
				return nil, err
			}
			return &u, nil
		},
		Rules:        userRules(),
		DefaultOrder: []string{"users.userid ASC"},
		PrePut: func(u *User) {
			u.SearchTerms = u.UserID
		},
		Constraints: storage.ConstraintLocations{
			"users_userid_key":     "userid",
			"users_user_group_chk": "user_group",
		},
	}
	return &UserStore{repository.New(desc, decider, repository.WithMetrics[*User](metrics))}
}
