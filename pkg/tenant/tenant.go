// Package tenant manages the registry's tenant records: isolated data
// partitions sharing one PostgreSQL cluster, each living in its own schema
// and carrying a monotonically increasing config revision. The revision is
// the sole invalidation signal for cached controlled-vocabulary data;
// nothing is ever invalidated by time.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/corpus/pkg/storage"
)

// Tenant is one registered data partition.
type Tenant struct {
	Namespace      string
	VhostName      string
	SchemaVersion  string
	ConfigRevision int64
}

// Store reads and updates tenant records. The tenants table lives in the
// public schema, outside any tenant namespace.
type Store struct {
	db *sql.DB
}

// NewStore creates a tenant store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const tenantColumns = "namespace, vhost_name, schema_version, config_revision"

// Get returns the tenant for a namespace, or nil when unknown.
func (s *Store) Get(ctx context.Context, namespace string) (*Tenant, error) {
	return s.one(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE namespace = $1", namespace)
}

// GetByVhost returns the tenant serving a virtual host, or nil.
func (s *Store) GetByVhost(ctx context.Context, vhost string) (*Tenant, error) {
	return s.one(ctx, "SELECT "+tenantColumns+" FROM tenants WHERE vhost_name = $1", vhost)
}

func (s *Store) one(ctx context.Context, query string, arg any) (*Tenant, error) {
	var t Tenant
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&t.Namespace, &t.VhostName, &t.SchemaVersion, &t.ConfigRevision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading tenant: %w", err)
	}
	return &t, nil
}

// List returns all registered tenants.
func (s *Store) List(ctx context.Context) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+tenantColumns+" FROM tenants ORDER BY namespace")
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()
	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.Namespace, &t.VhostName, &t.SchemaVersion, &t.ConfigRevision); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// BumpRevision increments a tenant's config revision and returns the new
// value. Writers call this after writing a controlled-vocabulary table;
// readers holding the old revision will miss the cache and reload. The
// cache itself is never written here — the brief staleness window for
// concurrent readers is accepted rather than locked away.
func (s *Store) BumpRevision(ctx context.Context, q storage.Queryer, namespace string) (int64, error) {
	var revision int64
	err := q.QueryRowContext(ctx,
		"UPDATE tenants SET config_revision = config_revision + 1 WHERE namespace = $1 RETURNING config_revision",
		namespace).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("tenant %q not registered", namespace)
	}
	if err != nil {
		return 0, fmt.Errorf("bumping config revision for %q: %w", namespace, err)
	}
	return revision, nil
}

// SetSearchPath scopes a transaction to a tenant's schema. Every
// per-request transaction starts with this.
func SetSearchPath(ctx context.Context, q storage.Queryer, namespace string) error {
	if _, err := q.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s, public", quoteIdent(namespace))); err != nil {
		return fmt.Errorf("setting search path to %q: %w", namespace, err)
	}
	return nil
}

func quoteIdent(ident string) string {
	return `"` + ident + `"`
}
