package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/corpus/pkg/observability"
	"github.com/platinummonkey/corpus/pkg/policy"
	"github.com/platinummonkey/corpus/pkg/principal"
	"github.com/platinummonkey/corpus/pkg/reconcile"
	"github.com/platinummonkey/corpus/pkg/repository"
	"github.com/platinummonkey/corpus/pkg/storage"
)

// WorkStore is the repository for research outputs.
type WorkStore struct {
	*repository.Repository[*Work]
}

// NewWorkStore builds the work repository.
func NewWorkStore(decider *policy.Decider, metrics *observability.Metrics) *WorkStore {
	desc := repository.Descriptor[*Work]{
		Entity:    EntityWork,
		Table:     "works",
		KeyColumn: "id",
		Columns:   []string{"type", "title", "issued", "search_terms"},
		Values: func(w *Work) []any {
			return []any{w.Type, w.Title, w.Issued, w.SearchTerms}
		},
		Scan: func(row repository.RowScanner) (*Work, error) {
			var w Work
			err := row.Scan(&w.ID, &w.Type, &w.Title, &w.Issued, &w.SearchTerms)
			if err != nil {
				return nil, err
			}
			return &w, nil
		},
		Rules: workRules(),
		Joins: map[string]string{
			"contributors": "JOIN contributors ON contributors.work_id = works.id",
			"affiliations": "JOIN affiliations ON affiliations.work_id = works.id",
		},
		DefaultOrder: []string{"works.issued DESC", "works.id DESC"},
		PrePut:       composeWorkSearchTerms,
		Constraints: storage.ConstraintLocations{
			"works_type_fkey":                         "type",
			"work_identifiers_work_id_type_value_key": "identifiers",
			"work_measures_work_id_type_key":          "measures",
			"contributors_person_id_fkey":             "contributors",
			"contributors_group_id_fkey":              "contributors",
			"affiliations_group_id_fkey":              "contributors",
			"relations_target_id_fkey":                "relations",
		},
		LoadChildren: loadWorkChildren,
		SaveChildren: saveWorkChildren,
	}
	return &WorkStore{repository.New(desc, decider, repository.WithMetrics[*Work](metrics))}
}

func composeWorkSearchTerms(w *Work) {
	w.SearchTerms = strings.ToLower(w.Title)
}

func loadWorkChildren(ctx context.Context, q storage.Queryer, w *Work) error {
	if err := loadContributors(ctx, q, w); err != nil {
		return err
	}

	descriptions := []*Description{}
	rows, err := q.QueryContext(ctx,
		`SELECT id, work_id, type, format, value, position
		 FROM descriptions WHERE work_id = $1 ORDER BY position`, w.ID)
	if err != nil {
		return fmt.Errorf("loading descriptions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d Description
		if err := rows.Scan(&d.ID, &d.WorkID, &d.Type, &d.Format, &d.Value, &d.Position); err != nil {
			return err
		}
		descriptions = append(descriptions, &d)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Descriptions = &descriptions

	relations := []*Relation{}
	rows, err = q.QueryContext(ctx,
		`SELECT id, work_id, target_id, type, location, position
		 FROM relations WHERE work_id = $1 ORDER BY position`, w.ID)
	if err != nil {
		return fmt.Errorf("loading relations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ID, &r.WorkID, &r.TargetID, &r.Type, &r.Location, &r.Position); err != nil {
			return err
		}
		relations = append(relations, &r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Relations = &relations

	identifiers := []*Identifier{}
	rows, err = q.QueryContext(ctx,
		`SELECT id, work_id, type, value
		 FROM work_identifiers WHERE work_id = $1 ORDER BY type, value`, w.ID)
	if err != nil {
		return fmt.Errorf("loading identifiers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var i Identifier
		if err := rows.Scan(&i.ID, &i.WorkID, &i.Type, &i.Value); err != nil {
			return err
		}
		identifiers = append(identifiers, &i)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Identifiers = &identifiers

	measures := []*Measure{}
	rows, err = q.QueryContext(ctx,
		`SELECT id, work_id, type, value
		 FROM work_measures WHERE work_id = $1 ORDER BY type`, w.ID)
	if err != nil {
		return fmt.Errorf("loading measures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Measure
		if err := rows.Scan(&m.ID, &m.WorkID, &m.Type, &m.Value); err != nil {
			return err
		}
		measures = append(measures, &m)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Measures = &measures
	return nil
}

func loadContributors(ctx context.Context, q storage.Queryer, w *Work) error {
	contributors := []*Contributor{}
	rows, err := q.QueryContext(ctx,
		`SELECT id, work_id, person_id, group_id, role, position
		 FROM contributors WHERE work_id = $1 ORDER BY position`, w.ID)
	if err != nil {
		return fmt.Errorf("loading contributors: %w", err)
	}
	defer rows.Close()
	byID := map[int64]*Contributor{}
	for rows.Next() {
		var c Contributor
		var person, group sql.NullInt64
		if err := rows.Scan(&c.ID, &c.WorkID, &person, &group, &c.Role, &c.Position); err != nil {
			return err
		}
		c.PersonID = int64Ptr(person)
		c.GroupID = int64Ptr(group)
		affiliations := []*Affiliation{}
		c.Affiliations = &affiliations
		contributors = append(contributors, &c)
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx,
		`SELECT id, work_id, contributor_id, group_id, position
		 FROM affiliations WHERE work_id = $1 ORDER BY contributor_id, position`, w.ID)
	if err != nil {
		return fmt.Errorf("loading affiliations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Affiliation
		if err := rows.Scan(&a.ID, &a.WorkID, &a.ContributorID, &a.GroupID, &a.Position); err != nil {
			return err
		}
		if c, ok := byID[a.ContributorID]; ok {
			*c.Affiliations = append(*c.Affiliations, &a)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	w.Contributors = &contributors
	return nil
}

func saveWorkChildren(ctx context.Context, q storage.Queryer, persisted, submitted *Work) error {
	if err := saveContributors(ctx, q, persisted, submitted); err != nil {
		return err
	}
	if err := saveDescriptions(ctx, q, persisted, submitted); err != nil {
		return err
	}
	if err := saveRelations(ctx, q, persisted, submitted); err != nil {
		return err
	}
	if err := saveIdentifiers(ctx, q, persisted, submitted); err != nil {
		return err
	}
	return saveMeasures(ctx, q, persisted, submitted)
}

func saveContributors(ctx context.Context, q storage.Queryer, persisted, submitted *Work) error {
	var existing []*Contributor
	if persisted != nil && persisted.Contributors != nil {
		existing = *persisted.Contributors
	}

	// The submitted affiliation lists must survive the contributor merge:
	// apply copies scalar fields onto the persisted row, and the nested
	// reconciliation below needs both the persisted and the submitted list.
	submittedAffiliations := map[*Contributor]*[]*Affiliation{}
	persistedAffiliations := map[*Contributor]*[]*Affiliation{}
	for _, c := range existing {
		persistedAffiliations[c] = c.Affiliations
	}

	outcome := reconcile.Ordered(existing, submitted.Contributors,
		func(src *Contributor) *Contributor {
			fresh := *src
			fresh.ID = 0
			fresh.WorkID = submitted.ID
			return &fresh
		},
		func(dst, src *Contributor) {
			dst.PersonID = src.PersonID
			dst.GroupID = src.GroupID
			dst.Role = src.Role
			submittedAffiliations[dst] = src.Affiliations
		})
	if outcome.Skipped {
		if persisted != nil {
			submitted.Contributors = persisted.Contributors
		}
		return nil
	}

	for _, c := range outcome.Removed {
		if _, err := q.ExecContext(ctx, "DELETE FROM contributors WHERE id = $1", c.ID); err != nil {
			return fmt.Errorf("deleting contributor %d: %w", c.ID, err)
		}
	}
	for _, c := range outcome.Updated {
		if _, err := q.ExecContext(ctx,
			`UPDATE contributors SET person_id = $1, group_id = $2, role = $3, position = $4
			 WHERE id = $5`,
			nullInt64(c.PersonID), nullInt64(c.GroupID), c.Role, c.Position, c.ID); err != nil {
			return fmt.Errorf("updating contributor %d: %w", c.ID, err)
		}
	}
	for _, c := range outcome.Added {
		if err := q.QueryRowContext(ctx,
			`INSERT INTO contributors (work_id, person_id, group_id, role, position)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			submitted.ID, nullInt64(c.PersonID), nullInt64(c.GroupID), c.Role, c.Position).
			Scan(&c.ID); err != nil {
			return fmt.Errorf("inserting contributor: %w", err)
		}
	}

	for _, c := range outcome.Final {
		var existingAffs []*Affiliation
		if affs, ok := persistedAffiliations[c]; ok && affs != nil {
			existingAffs = *affs
		}
		submittedAffs, ok := submittedAffiliations[c]
		if !ok {
			// Freshly inserted contributor; its clone carries the
			// submitted list directly.
			submittedAffs = c.Affiliations
		}
		if err := saveAffiliations(ctx, q, submitted.ID, c, existingAffs, submittedAffs); err != nil {
			return err
		}
	}
	submitted.Contributors = &outcome.Final
	return nil
}

func saveAffiliations(ctx context.Context, q storage.Queryer, workID int64, c *Contributor, existing []*Affiliation, submitted *[]*Affiliation) error {
	outcome := reconcile.Ordered(existing, submitted,
		func(src *Affiliation) *Affiliation {
			fresh := *src
			fresh.ID = 0
			fresh.WorkID = workID
			fresh.ContributorID = c.ID
			return &fresh
		},
		func(dst, src *Affiliation) {
			dst.GroupID = src.GroupID
		})
	if outcome.Skipped {
		c.Affiliations = &existing
		return nil
	}
	for _, a := range outcome.Removed {
		if _, err := q.ExecContext(ctx, "DELETE FROM affiliations WHERE id = $1", a.ID); err != nil {
			return fmt.Errorf("deleting affiliation %d: %w", a.ID, err)
		}
	}
	for _, a := range outcome.Updated {
		if _, err := q.ExecContext(ctx,
			"UPDATE affiliations SET group_id = $1, position = $2 WHERE id = $3",
			a.GroupID, a.Position, a.ID); err != nil {
			return fmt.Errorf("updating affiliation %d: %w", a.ID, err)
		}
	}
	for _, a := range outcome.Added {
		if err := q.QueryRowContext(ctx,
			`INSERT INTO affiliations (work_id, contributor_id, group_id, position)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			workID, c.ID, a.GroupID, a.Position).Scan(&a.ID); err != nil {
			return fmt.Errorf("inserting affiliation: %w", err)
		}
	}
	c.Affiliations = &outcome.Final
	return nil
}

func saveDescriptions(ctx context.Context, q storage.Queryer, persisted, submitted *Work) error {
	var existing []*Description
	if persisted != nil && persisted.Descriptions != nil {
		existing = *persisted.Descriptions
	}
	outcome := reconcile.Ordered(existing, submitted.Descriptions,
		func(src *Description) *Description {
			fresh := *src
			fresh.ID = 0
			fresh.WorkID = submitted.ID
			return &fresh
		},
		func(dst, src *Description) {
			dst.Type = src.Type
			dst.Format = src.Format
			dst.Value = src.Value
		})
	if outcome.Skipped {
		if persisted != nil {
			submitted.Descriptions = persisted.Descriptions
		}
		return nil
	}
	for _, d := range outcome.Removed {
		if _, err := q.ExecContext(ctx, "DELETE FROM descriptions WHERE id = $1", d.ID); err != nil {
			return fmt.Errorf("deleting description %d: %w", d.ID, err)
		}
	}
	for _, d := range outcome.Updated {
		if _, err := q.ExecContext(ctx,
			`UPDATE descriptions SET type = $1, format = $2, value = $3, position = $4
			 WHERE id = $5`,
			d.Type, d.Format, d.Value, d.Position, d.ID); err != nil {
			return fmt.Errorf("updating description %d: %w", d.ID, err)
		}
	}
	for _, d := range outcome.Added {
		if err := q.QueryRowContext(ctx,
			`INSERT INTO descriptions (work_id, type, format, value, position)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			submitted.ID, d.Type, d.Format, d.Value, d.Position).Scan(&d.ID); err != nil {
			return fmt.Errorf("inserting description: %w", err)
		}
	}
	submitted.Descriptions = &outcome.Final
	return nil
}

func saveRelations(ctx context.Context, q storage.Queryer, persisted, submitted *Work) error {
	var existing []*Relation
	if persisted != nil && persisted.Relations != nil {
		existing = *persisted.Relations
	}
	outcome := reconcile.Ordered(existing, submitted.Relations,
		func(src *Relation) *Relation {
			fresh := *src
			fresh.ID = 0
			fresh.WorkID = submitted.ID
			return &fresh
		},
		func(dst, src *Relation) {
			dst.TargetID = src.TargetID
			dst.Type = src.Type
			dst.Location = src.Location
		})
	if outcome.Skipped {
		if persisted != nil {
			submitted.Relations = persisted.Relations
		}
		return nil
	}
	for _, r := range outcome.Removed {
		if _, err := q.ExecContext(ctx, "DELETE FROM relations WHERE id = $1", r.ID); err != nil {
			return fmt.Errorf("deleting relation %d: %w", r.ID, err)
		}
	}
	for _, r := range outcome.Updated {
		if _, err := q.ExecContext(ctx,
			`UPDATE relations SET target_id = $1, type = $2, location = $3, position = $4
			 WHERE id = $5`,
			r.TargetID, r.Type, r.Location, r.Position, r.ID); err != nil {
			return fmt.Errorf("updating relation %d: %w", r.ID, err)
		}
	}
	for _, r := range outcome.Added {
		if err := q.QueryRowContext(ctx,
			`INSERT INTO relations (work_id, target_id, type, location, position)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			submitted.ID, r.TargetID, r.Type, r.Location, r.Position).Scan(&r.ID); err != nil {
			return fmt.Errorf("inserting relation: %w", err)
		}
	}
	submitted.Relations = &outcome.Final
	return nil
}

func saveIdentifiers(ctx context.Context, q storage.Queryer, persisted, submitted *Work) error {
	var existing []*Identifier
	if persisted != nil && persisted.Identifiers != nil {
		existing = *persisted.Identifiers
	}
	outcome := reconcile.Set(existing, submitted.Identifiers,
		func(i *Identifier) IdentifierKey { return i.NaturalKey() },
		func(src *Identifier) *Identifier {
			return &Identifier{WorkID: submitted.ID, Type: src.Type, Value: src.Value}
		})
	if outcome.Skipped {
		if persisted != nil {
			submitted.Identifiers = persisted.Identifiers
		}
		return nil
	}
	for _, i := range outcome.Removed {
		if _, err := q.ExecContext(ctx, "DELETE FROM work_identifiers WHERE id = $1", i.ID); err != nil {
			return fmt.Errorf("deleting identifier %d: %w", i.ID, err)
		}
	}
	for _, i := range outcome.Added {
		if err := q.QueryRowContext(ctx,
			"INSERT INTO work_identifiers (work_id, type, value) VALUES ($1, $2, $3) RETURNING id",
			submitted.ID, i.Type, i.Value).Scan(&i.ID); err != nil {
			return fmt.Errorf("inserting identifier: %w", err)
		}
	}
	submitted.Identifiers = &outcome.Final
	return nil
}

// Measures are keyed by (type, value): changing a measure's value is a
// removal of the old reading plus an insertion of the new one, which keeps
// the at-most-one-per-type constraint intact as long as the removal runs
// first.
func saveMeasures(ctx context.Context, q storage.Queryer, persisted, submitted *Work) error {
	var existing []*Measure
	if persisted != nil && persisted.Measures != nil {
		existing = *persisted.Measures
	}
	outcome := reconcile.Set(existing, submitted.Measures,
		func(m *Measure) IdentifierKey { return IdentifierKey{Type: m.Type, Value: m.Value} },
		func(src *Measure) *Measure {
			return &Measure{WorkID: submitted.ID, Type: src.Type, Value: src.Value}
		})
	if outcome.Skipped {
		if persisted != nil {
			submitted.Measures = persisted.Measures
		}
		return nil
	}
	for _, m := range outcome.Removed {
		if _, err := q.ExecContext(ctx, "DELETE FROM work_measures WHERE id = $1", m.ID); err != nil {
			return fmt.Errorf("deleting measure %d: %w", m.ID, err)
		}
	}
	for _, m := range outcome.Added {
		if err := q.QueryRowContext(ctx,
			"INSERT INTO work_measures (work_id, type, value) VALUES ($1, $2, $3) RETURNING id",
			submitted.ID, m.Type, m.Value).Scan(&m.ID); err != nil {
			return fmt.Errorf("inserting measure: %w", err)
		}
	}
	submitted.Measures = &outcome.Final
	return nil
}

// WorkSnippet is one row of the work listing rollup.
type WorkSnippet struct {
	ID           int64
	Title        string
	Type         string
	Issued       time.Time
	Contributors int
}

// ListSnippets returns the work listing with contributor counts attached,
// ACL-filtered and paginated. Owner predicates join the contributor tables,
// which can fan a work out over several rows, so the snippet page is built
// from a DISTINCT rollup and counted after aggregation.
func (s *WorkStore) ListSnippets(ctx context.Context, q storage.Queryer, principals principal.Set, query string, limit, offset int) (int, []WorkSnippet, error) {
	base := repository.NewSelect("works",
		"DISTINCT works.id", "works.title", "works.type", "works.issued")

	opts := repository.SearchOptions{
		Principals:          principals,
		Limit:               limit,
		Offset:              offset,
		OrderBy:             []string{"page.issued DESC", "page.id DESC"},
		Base:                base,
		CountAfterAggregate: true,
	}
	if query != "" {
		base.Where("works.title ILIKE ?", "%"+query+"%")
	}
	opts.PostAggregate = func(filtered *repository.SelectQuery) *repository.SelectQuery {
		return repository.FromSubquery(filtered, "page",
			"page.id", "page.title", "page.type", "page.issued",
			"(SELECT COUNT(*) FROM contributors WHERE contributors.work_id = page.id) AS contributors",
		)
	}

	var snippets []WorkSnippet
	total, err := s.SearchRows(ctx, q, opts, func(rows *sql.Rows) error {
		var sn WorkSnippet
		if err := rows.Scan(&sn.ID, &sn.Title, &sn.Type, &sn.Issued, &sn.Contributors); err != nil {
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
