// Package schemes manages the controlled-vocabulary tables ("schemes")
// used to validate enumerated fields: uniform (key, label) rows, one table
// per scheme, cached per tenant under the tenant's config revision.
package schemes

import (
	"context"
	"fmt"
	"sort"

	"github.com/platinummonkey/corpus/pkg/storage"
	"github.com/platinummonkey/corpus/pkg/tenant"
)

// Value is one controlled-vocabulary entry.
type Value struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Scheme identifiers and their backing tables.
var schemeTables = map[string]string{
	"groupType":         "group_type_schemes",
	"workType":          "work_type_schemes",
	"contributorRole":   "contributor_role_schemes",
	"identifierType":    "identifier_type_schemes",
	"descriptionType":   "description_type_schemes",
	"descriptionFormat": "description_format_schemes",
	"measureType":       "measure_type_schemes",
	"positionType":      "position_type_schemes",
	"relationType":      "relation_type_schemes",
	"personAccountType": "person_account_type_schemes",
	"groupAccountType":  "group_account_type_schemes",
}

// IDs returns all known scheme identifiers, sorted.
func IDs() []string {
	ids := make([]string, 0, len(schemeTables))
	for id := range schemeTables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TableFor resolves a scheme id to its table name.
func TableFor(schemeID string) (string, error) {
	table, ok := schemeTables[schemeID]
	if !ok {
		return "", fmt.Errorf("unknown scheme %q", schemeID)
	}
	return table, nil
}

// Store reads and replaces scheme tables. Writes bypass the cache entirely:
// they go to storage and bump the tenant's config revision, which is what
// makes subsequent cached reads miss and reload.
type Store struct {
	tenants *tenant.Store
}

// NewStore creates a scheme store.
func NewStore(tenants *tenant.Store) *Store {
	return &Store{tenants: tenants}
}

// List loads a scheme's values from storage in key order.
func (s *Store) List(ctx context.Context, q storage.Queryer, schemeID string) ([]Value, error) {
	table, err := TableFor(schemeID)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT key, label FROM %s ORDER BY key", table))
	if err != nil {
		return nil, fmt.Errorf("listing scheme %s: %w", schemeID, err)
	}
	defer rows.Close()
	var values []Value
	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.Key, &v.Label); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Replace reconciles a scheme table against the submitted values: rows
// whose key is absent from the submission are deleted, rows whose label
// changed are updated, new keys are inserted, and matching rows are left
// alone. The tenant's config revision is bumped afterwards so cached copies
// expire. Returns the new revision.
func (s *Store) Replace(ctx context.Context, q storage.Queryer, namespace, schemeID string, values []Value) (int64, error) {
	table, err := TableFor(schemeID)
	if err != nil {
		return 0, err
	}

	existing, err := s.List(ctx, q, schemeID)
	if err != nil {
		return 0, err
	}

	submitted := make(map[string]string, len(values))
	for _, v := range values {
		submitted[v.Key] = v.Label
	}

	for _, item := range existing {
		label, keep := submitted[item.Key]
		if !keep {
			if _, err := q.ExecContext(ctx,
				fmt.Sprintf("DELETE FROM %s WHERE key = $1", table), item.Key); err != nil {
				return 0, fmt.Errorf("deleting scheme value %s/%s: %w", schemeID, item.Key, err)
			}
			continue
		}
		if label != item.Label {
			if _, err := q.ExecContext(ctx,
				fmt.Sprintf("UPDATE %s SET label = $1 WHERE key = $2", table), label, item.Key); err != nil {
				return 0, fmt.Errorf("updating scheme value %s/%s: %w", schemeID, item.Key, err)
			}
		}
		delete(submitted, item.Key)
	}

	for key, label := range submitted {
		if _, err := q.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (key, label) VALUES ($1, $2)", table), key, label); err != nil {
			return 0, fmt.Errorf("inserting scheme value %s/%s: %w", schemeID, key, err)
		}
	}

	return s.tenants.BumpRevision(ctx, q, namespace)
}
