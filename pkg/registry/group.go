package registry

import (
	"context"
	"database/sql"
	"strings"

	"github.com/platinummonkey/corpus/pkg/groups"
	"github.com/platinummonkey/corpus/pkg/observability"
	"github.com/platinummonkey/corpus/pkg/policy"
	"github.com/platinummonkey/corpus/pkg/principal"
	"github.com/platinummonkey/corpus/pkg/reconcile"
	"github.com/platinummonkey/corpus/pkg/repository"
	"github.com/platinummonkey/corpus/pkg/storage"
)

// GroupStore is the repository for group records.
type GroupStore struct {
	*repository.Repository[*Group]
}

// NewGroupStore builds the group repository.
func NewGroupStore(decider *policy.Decider, metrics *observability.Metrics) *GroupStore {
	desc := repository.Descriptor[*Group]{
		Entity:    EntityGroup,
		Table:     "groups",
		KeyColumn: "id",
		Columns: []string{
			"parent_id", "name", "international_name", "abbreviated_name",
			"native_name", "type", "search_terms",
		},
		Values: func(g *Group) []any {
			return []any{
				nullInt64(g.ParentID), g.Name, g.InternationalName,
				g.AbbreviatedName, g.NativeName, g.Type, g.SearchTerms,
			}
		},
		Scan: func(row repository.RowScanner) (*Group, error) {
			var g Group
			var parent sql.NullInt64
			err := row.Scan(&g.ID, &parent, &g.Name, &g.InternationalName,
				&g.AbbreviatedName, &g.NativeName, &g.Type, &g.SearchTerms)
			if err != nil {
				return nil, err
			}
			g.ParentID = int64Ptr(parent)
			return &g, nil
		},
		Rules:        groupRules(),
		DefaultOrder: []string{"groups.name ASC"},
		PrePut:       composeGroupSearchTerms,
		Constraints: storage.ConstraintLocations{
			"group_accounts_owner_id_type_value_key": "accounts",
			"groups_parent_id_fkey":                  "parent_id",
			"groups_type_fkey":                       "type",
		},
		LoadChildren: loadGroupChildren,
		SaveChildren: saveGroupChildren,
	}
	return &GroupStore{repository.New(desc, decider, repository.WithMetrics[*Group](metrics))}
}

func composeGroupSearchTerms(g *Group) {
	terms := []string{g.Name}
	if g.InternationalName != "" && g.InternationalName != g.Name {
		terms = append(terms, g.InternationalName)
	}
	if g.AbbreviatedName != "" {
		terms = append(terms, g.AbbreviatedName)
	}
	if g.NativeName != "" && g.NativeName != g.Name {
		terms = append(terms, g.NativeName)
	}
	g.SearchTerms = strings.Join(terms, " ")
}

func loadGroupChildren(ctx context.Context, q storage.Queryer, g *Group) error {
	accounts, err := loadAccounts(ctx, q, "group_accounts", g.ID)
	if err != nil {
		return err
	}
	g.Accounts = &accounts
	return nil
}

func saveGroupChildren(ctx context.Context, q storage.Queryer, persisted, submitted *Group) error {
	var existing []*Account
	if persisted != nil && persisted.Accounts != nil {
		existing = *persisted.Accounts
	}
	accounts := reconcile.Set(existing, submitted.Accounts,
		func(a *Account) AccountKey { return a.NaturalKey() },
		func(src *Account) *Account {
			return &Account{OwnerID: submitted.ID, Type: src.Type, Value: src.Value}
		})
	if err := saveAccounts(ctx, q, "group_accounts", accounts); err != nil {
		return err
	}
	submitted.Accounts = &accounts.Final
	return nil
}

// ChildGroups lists the direct children of a group, the edge relation the
// closure resolver walks when expanding transitive ownership.
func (s *GroupStore) ChildGroups(ctx context.Context, q storage.Queryer, parentID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id FROM groups WHERE parent_id = $1", parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Expander adapts the store to the policy decider's group expansion hook
// for a given connection.
func (s *GroupStore) Expander(q storage.Queryer) groups.ChildLister {
	return groups.ChildListerFunc(func(ctx context.Context, parentID int64) ([]int64, error) {
		return s.ChildGroups(ctx, q, parentID)
	})
}

// GroupSnippet is one row of the group listing rollup.
type GroupSnippet struct {
	ID      int64
	Name    string
	Type    string
	Members int
}

// ListSnippets returns the group listing with member counts, ACL-filtered
// and paginated.
func (s *GroupStore) ListSnippets(ctx context.Context, q storage.Queryer, principals principal.Set, query string, limit, offset int) (int, []GroupSnippet, error) {
	opts := repository.SearchOptions{
		Principals: principals,
		Limit:      limit,
		Offset:     offset,
		OrderBy:    []string{"groups.name ASC"},
	}
	if query != "" {
		opts.Filters = append(opts.Filters, repository.Cond{
			Expr: "groups.name ILIKE ?",
			Args: []any{"%" + query + "%"},
		})
	}
	opts.PostAggregate = func(page *repository.SelectQuery) *repository.SelectQuery {
		return repository.FromSubquery(page.Columns("groups.id", "groups.name", "groups.type"), "page",
			"page.id", "page.name", "page.type",
			"(SELECT COUNT(*) FROM memberships WHERE memberships.group_id = page.id) AS members",
		)
	}

	var snippets []GroupSnippet
	total, err := s.SearchRows(ctx, q, opts, func(rows *sql.Rows) error {
		var sn GroupSnippet
		if err := rows.Scan(&sn.ID, &sn.Name, &sn.Type, &sn.Members); err != nil {
			return err
		}
		snippets = append(snippets, sn)
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return total, snippets, nil
}
