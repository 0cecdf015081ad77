package registry

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/platinummonkey/corpus/pkg/observability"
	"github.com/platinummonkey/corpus/pkg/policy"
	"github.com/platinummonkey/corpus/pkg/principal"
	"github.com/platinummonkey/corpus/pkg/repository"
	"github.com/platinummonkey/corpus/pkg/storage"
)

// MembershipStore is the repository for person/group memberships.
type MembershipStore struct {
	*repository.Repository[*Membership]
}

// NewMembershipStore builds the membership repository.
func NewMembershipStore(decider *policy.Decider, metrics *observability.Metrics) *MembershipStore {
	desc := repository.Descriptor[*Membership]{
		Entity:    EntityMembership,
		Table:     "memberships",
		KeyColumn: "id",
		Columns:   []string{"person_id", "group_id", "start_date", "end_date"},
		Values: func(m *Membership) []any {
			return []any{m.PersonID, m.GroupID, nullTime(m.StartDate), nullTime(m.EndDate)}
		},
		Scan: func(row repository.RowScanner) (*Membership, error) {
			var m Membership
			var start, end sql.NullTime
			err := row.Scan(&m.ID, &m.PersonID, &m.GroupID, &start, &end)
			if err != nil {
				return nil, err
			}
			m.StartDate = timePtr(start)
			m.EndDate = timePtr(end)
			return &m, nil
		},
		Rules:        membershipRules(),
		DefaultOrder: []string{"memberships.id ASC"},
		Constraints: storage.ConstraintLocations{
			"memberships_person_id_fkey": "person_id",
			"memberships_group_id_fkey":  "group_id",
		},
	}
	return &MembershipStore{repository.New(desc, decider, repository.WithMetrics[*Membership](metrics))}
}

func loadMembershipsForPerson(ctx context.Context, q storage.Queryer, personID int64) ([]*Membership, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, person_id, group_id, start_date, end_date
		 FROM memberships WHERE person_id = $1 ORDER BY id`, personID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	memberships := []*Membership{}
	for rows.Next() {
		var m Membership
		var start, end sql.NullTime
		if err := rows.Scan(&m.ID, &m.PersonID, &m.GroupID, &start, &end); err != nil {
			return nil, err
		}
		m.StartDate = timePtr(start)
		m.EndDate = timePtr(end)
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

// MembershipSnippet is one row of the membership listing: the person's
// memberships for one group set, with the groups and the person's work
// count in that scope aggregated onto each row.
type MembershipSnippet struct {
	PersonID   int64
	PersonName string
	GroupIDs   []int64
	Works      int
}

// ListSnippets lists members grouped per person: each hit is one person
// with the matched group ids aggregated. The grouping collapses the
// membership fan-out, so the total is counted after aggregation.
func (s *MembershipStore) ListSnippets(ctx context.Context, q storage.Queryer, principals principal.Set, groupIDs []int64, limit, offset int) (int, []MembershipSnippet, error) {
	base := repository.NewSelect("memberships",
		"persons.id", "persons.name", "array_agg(DISTINCT memberships.group_id) AS group_ids").
		Join("persons", "JOIN persons ON persons.id = memberships.person_id").
		GroupBy("persons.id", "persons.name")

	opts := repository.SearchOptions{
		Principals:          principals,
		Limit:               limit,
		Offset:              offset,
		OrderBy:             []string{"name ASC"},
		Base:                base,
		CountAfterAggregate: true,
	}
	if len(groupIDs) > 0 {
		base.Where("memberships.group_id = ANY(?)", pq.Array(groupIDs))
	}
	opts.PostAggregate = func(grouped *repository.SelectQuery) *repository.SelectQuery {
		return repository.FromSubquery(grouped, "page",
			"page.id", "page.name", "page.group_ids",
			"(SELECT COUNT(*) FROM contributors WHERE contributors.person_id = page.id) AS works",
		)
	}

	var snippets []MembershipSnippet
	total, err := s.SearchRows(ctx, q, opts, func(rows *sql.Rows) error {
		var sn MembershipSnippet
		var groups pq.Int64Array
		if err := rows.Scan(&sn.PersonID, &sn.PersonName, &groups, &sn.Works); err != nil {
			return err
		}
		sn.GroupIDs = groups
		snippets = append(snippets, sn)
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return total, snippets, nil
}
