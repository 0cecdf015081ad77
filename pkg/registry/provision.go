package registry

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/corpus/pkg/schemes"
	"github.com/platinummonkey/corpus/pkg/storage"
	"github.com/platinummonkey/corpus/pkg/tenant"
)

const schemaVersion = "1.0"

var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Provision creates a tenant: its schema, its tables, the default
// controlled vocabularies, and an initial admin account. Everything runs
// in one transaction so a half-provisioned tenant never becomes visible.
func Provision(ctx context.Context, db *sql.DB, namespace, vhost, adminUserID, adminCredentials string) error {
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("invalid tenant namespace %q", namespace)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting provision transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %q", namespace)); err != nil {
		return fmt.Errorf("creating schema %q: %w", namespace, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tenants (namespace, vhost_name, schema_version, config_revision)
		 VALUES ($1, $2, $3, 0)`, namespace, vhost, schemaVersion); err != nil {
		return fmt.Errorf("registering tenant %q: %w", namespace, err)
	}
	if err := tenant.SetSearchPath(ctx, tx, namespace); err != nil {
		return err
	}
	if err := storage.Migrate(ctx, tx, storage.TenantMigrations()); err != nil {
		return fmt.Errorf("migrating tenant %q: %w", namespace, err)
	}

	for schemeID, values := range schemes.Defaults() {
		table, err := schemes.TableFor(schemeID)
		if err != nil {
			return err
		}
		for _, v := range values {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf("INSERT INTO %s (key, label) VALUES ($1, $2)", table),
				v.Key, v.Label); err != nil {
				return fmt.Errorf("seeding scheme %s: %w", schemeID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (userid, credentials, user_group, search_terms)
		 VALUES ($1, $2, $3, $1)`, adminUserID, adminCredentials, LevelAdmin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing provision of %q: %w", namespace, err)
	}
	logrus.WithFields(logrus.Fields{
		"namespace": namespace,
		"vhost":     vhost,
	}).Info("tenant provisioned")
	return nil
}

// Drop removes a tenant and everything in its schema.
func Drop(ctx context.Context, db *sql.DB, namespace string) error {
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("invalid tenant namespace %q", namespace)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting drop transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA %q CASCADE", namespace)); err != nil {
		return fmt.Errorf("dropping schema %q: %w", namespace, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tenants WHERE namespace = $1", namespace); err != nil {
		return fmt.Errorf("deregistering tenant %q: %w", namespace, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing drop of %q: %w", namespace, err)
	}
	logrus.WithField("namespace", namespace).Info("tenant dropped")
	return nil
}
