package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/platinummonkey/corpus/pkg/observability"
	"github.com/platinummonkey/corpus/pkg/policy"
	"github.com/platinummonkey/corpus/pkg/principal"
	"github.com/platinummonkey/corpus/pkg/reconcile"
	"github.com/platinummonkey/corpus/pkg/repository"
	"github.com/platinummonkey/corpus/pkg/storage"
)

// PersonStore is the repository for person records.
type PersonStore struct {
	*repository.Repository[*Person]
}

// NewPersonStore builds the person repository.
func NewPersonStore(decider *policy.Decider, metrics *observability.Metrics) *PersonStore {
	desc := repository.Descriptor[*Person]{
		Entity:    EntityPerson,
		Table:     "persons",
		KeyColumn: "id",
		Columns: []string{
			"name", "family_name", "family_name_prefix", "given_name",
			"initials", "alternative_name", "honorary", "search_terms",
		},
		Values: func(p *Person) []any {
			return []any{
				p.Name, p.FamilyName, p.FamilyNamePrefix, p.GivenName,
				p.Initials, p.AlternativeName, p.Honorary, p.SearchTerms,
			}
		},
		Scan: func(row repository.RowScanner) (*Person, error) {
			var p Person
			err := row.Scan(&p.ID, &p.Name, &p.FamilyName, &p.FamilyNamePrefix,
				&p.GivenName, &p.Initials, &p.AlternativeName, &p.Honorary, &p.SearchTerms)
			if err != nil {
				return nil, err
			}
			return &p, nil
		},
		Rules: personRules(),
		Joins: map[string]string{
			"memberships": "JOIN memberships ON memberships.person_id = persons.id",
		},
		DefaultOrder: []string{"persons.family_name ASC", "persons.name ASC"},
		PrePut:       composePersonName,
		Constraints: storage.ConstraintLocations{
			"person_accounts_owner_id_type_value_key": "accounts",
			"positions_group_id_fkey":                 "positions",
			"positions_type_fkey":                     "positions",
		},
		LoadChildren: loadPersonChildren,
		SaveChildren: savePersonChildren,
	}
	return &PersonStore{repository.New(desc, decider, repository.WithMetrics[*Person](metrics))}
}

// composePersonName derives the display name and search payload the way
// listings render people: "prefix family, initials (given)".
func composePersonName(p *Person) {
	name := p.FamilyName
	terms := []string{p.FamilyName}
	if p.FamilyNamePrefix != "" {
		name = p.FamilyNamePrefix + " " + name
		terms = append(terms, p.FamilyNamePrefix)
	}
	if p.Initials != "" {
		name = name + ", " + p.Initials
		terms = append(terms, p.Initials)
	}
	if p.GivenName != "" {
		name = name + " (" + p.GivenName + ")"
		terms = append(terms, p.GivenName)
	}
	p.Name = name
	p.SearchTerms = strings.Join(terms, " ")
}

func loadPersonChildren(ctx context.Context, q storage.Queryer, p *Person) error {
	accounts, err := loadAccounts(ctx, q, "person_accounts", p.ID)
	if err != nil {
		return err
	}
	p.Accounts = &accounts

	rows, err := q.QueryContext(ctx,
		`SELECT id, person_id, group_id, type, description, start_date, end_date, position
		 FROM positions WHERE person_id = $1 ORDER BY position`, p.ID)
	if err != nil {
		return fmt.Errorf("loading positions: %w", err)
	}
	defer rows.Close()
	positions := []*Position{}
	for rows.Next() {
		var pos Position
		var start, end sql.NullTime
		if err := rows.Scan(&pos.ID, &pos.PersonID, &pos.GroupID, &pos.Type,
			&pos.Description, &start, &end, &pos.Position); err != nil {
			return err
		}
		pos.StartDate = timePtr(start)
		pos.EndDate = timePtr(end)
		positions = append(positions, &pos)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	p.Positions = &positions

	memberships, err := loadMembershipsForPerson(ctx, q, p.ID)
	if err != nil {
		return err
	}
	p.Memberships = memberships
	return nil
}

func savePersonChildren(ctx context.Context, q storage.Queryer, persisted, submitted *Person) error {
	var existingAccounts []*Account
	var existingPositions []*Position
	if persisted != nil {
		if persisted.Accounts != nil {
			existingAccounts = *persisted.Accounts
		}
		if persisted.Positions != nil {
			existingPositions = *persisted.Positions
		}
	}

	accounts := reconcile.Set(existingAccounts, submitted.Accounts,
		func(a *Account) AccountKey { return a.NaturalKey() },
		func(src *Account) *Account {
			return &Account{OwnerID: submitted.ID, Type: src.Type, Value: src.Value}
		})
	if err := saveAccounts(ctx, q, "person_accounts", accounts); err != nil {
		return err
	}
	submitted.Accounts = &accounts.Final

	positions := reconcile.Ordered(existingPositions, submitted.Positions,
		func(src *Position) *Position {
			fresh := *src
			fresh.ID = 0
			fresh.PersonID = submitted.ID
			return &fresh
		},
		func(dst, src *Position) {
			dst.GroupID = src.GroupID
			dst.Type = src.Type
			dst.Description = src.Description
			dst.StartDate = src.StartDate
			dst.EndDate = src.EndDate
		})
	for _, pos := range positions.Removed {
		if _, err := q.ExecContext(ctx, "DELETE FROM positions WHERE id = $1", pos.ID); err != nil {
			return fmt.Errorf("deleting position %d: %w", pos.ID, err)
		}
	}
	for _, pos := range positions.Updated {
		if _, err := q.ExecContext(ctx,
			`UPDATE positions SET group_id = $1, type = $2, description = $3,
			 start_date = $4, end_date = $5, position = $6 WHERE id = $7`,
			pos.GroupID, pos.Type, pos.Description,
			nullTime(pos.StartDate), nullTime(pos.EndDate), pos.Position, pos.ID); err != nil {
			return fmt.Errorf("updating position %d: %w", pos.ID, err)
		}
	}
	for _, pos := range positions.Added {
		if err := q.QueryRowContext(ctx,
			`INSERT INTO positions (person_id, group_id, type, description, start_date, end_date, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			submitted.ID, pos.GroupID, pos.Type, pos.Description,
			nullTime(pos.StartDate), nullTime(pos.EndDate), pos.Position).Scan(&pos.ID); err != nil {
			return fmt.Errorf("inserting position: %w", err)
		}
	}
	if !positions.Skipped {
		submitted.Positions = &positions.Final
	} else if persisted != nil {
		submitted.Positions = persisted.Positions
	}

	if persisted != nil {
		submitted.Memberships = persisted.Memberships
	}
	return nil
}

// loadAccounts and saveAccounts are shared between person and group
// accounts; both tables have the same (owner_id, type, value) shape.
func loadAccounts(ctx context.Context, q storage.Queryer, table string, ownerID int64) ([]*Account, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, owner_id, type, value FROM %s WHERE owner_id = $1 ORDER BY type, value", table), ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", table, err)
	}
	defer rows.Close()
	accounts := []*Account{}
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Type, &a.Value); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

func saveAccounts(ctx context.Context, q storage.Queryer, table string, outcome reconcile.Outcome[*Account]) error {
	for _, a := range outcome.Removed {
		if _, err := q.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), a.ID); err != nil {
			return fmt.Errorf("deleting account %d: %w", a.ID, err)
		}
	}
	for _, a := range outcome.Added {
		if err := q.QueryRowContext(ctx,
			fmt.Sprintf("INSERT INTO %s (owner_id, type, value) VALUES ($1, $2, $3) RETURNING id", table),
			a.OwnerID, a.Type, a.Value).Scan(&a.ID); err != nil {
			return fmt.Errorf("inserting account: %w", err)
		}
	}
	return nil
}

// PersonSnippet is one row of the person listing rollup.
type PersonSnippet struct {
	ID          int64
	Name        string
	Memberships int
	Works       int
}

// ListSnippets returns the person listing with membership and work counts
// attached, ACL-filtered and paginated. The rollup joins fan out, so the
// total is counted on the filtered base before aggregation.
func (s *PersonStore) ListSnippets(ctx context.Context, q storage.Queryer, principals principal.Set, query string, limit, offset int) (int, []PersonSnippet, error) {
	opts := repository.SearchOptions{
		Principals: principals,
		Limit:      limit,
		Offset:     offset,
		OrderBy:    []string{"persons.family_name ASC", "persons.name ASC"},
	}
	if query != "" {
		opts.Filters = append(opts.Filters, repository.Cond{
			Expr: "persons.name ILIKE ?",
			Args: []any{"%" + query + "%"},
		})
	}
	opts.PostAggregate = func(page *repository.SelectQuery) *repository.SelectQuery {
		return repository.FromSubquery(page.Columns("persons.id", "persons.name"), "page",
			"page.id", "page.name",
			"(SELECT COUNT(*) FROM memberships WHERE memberships.person_id = page.id) AS memberships",
			"(SELECT COUNT(*) FROM contributors WHERE contributors.person_id = page.id) AS works",
		)
	}

	var snippets []PersonSnippet
	total, err := s.SearchRows(ctx, q, opts, func(rows *sql.Rows) error {
		var sn PersonSnippet
		if err := rows.Scan(&sn.ID, &sn.Name, &sn.Memberships, &sn.Works); err != nil {
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
