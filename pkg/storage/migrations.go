package storage

import (
	"context"
	"fmt"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// PublicMigrations returns the migrations for the shared public schema.
// Tenant records live here; everything else lives per tenant.
func PublicMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					namespace VARCHAR(100) PRIMARY KEY,
					vhost_name VARCHAR(255) NOT NULL,
					schema_version VARCHAR(20) NOT NULL,
					config_revision BIGINT NOT NULL DEFAULT 0,
					CONSTRAINT tenants_vhost_name_key UNIQUE (vhost_name)
				);
			`,
		},
	}
}

// TenantMigrations returns the migrations applied inside each tenant's
// schema. Constraint names are load-bearing: the error translation layer
// maps them to field locations, so renaming one here breaks the mapping.
func TenantMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create scheme tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS group_type_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS work_type_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS contributor_role_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS identifier_type_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS description_type_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS description_format_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS measure_type_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS position_type_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS relation_type_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS person_account_type_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
				CREATE TABLE IF NOT EXISTS group_account_type_schemes (
					key VARCHAR(100) PRIMARY KEY,
					label VARCHAR(255) NOT NULL
				);
			`,
		},
		{
			Version:     2,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					userid VARCHAR(128) NOT NULL,
					credentials VARCHAR(255) NOT NULL,
					user_group INT NOT NULL,
					search_terms TEXT NOT NULL DEFAULT '',
					CONSTRAINT users_userid_key UNIQUE (userid),
					CONSTRAINT users_user_group_chk
						CHECK (user_group IN (100, 80, 60, 40, 10))
				);
			`,
		},
		{
			Version:     3,
			Description: "Create persons and groups tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS persons (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					family_name VARCHAR(128) NOT NULL,
					family_name_prefix VARCHAR(64) NOT NULL DEFAULT '',
					given_name VARCHAR(128) NOT NULL DEFAULT '',
					initials VARCHAR(32) NOT NULL DEFAULT '',
					alternative_name VARCHAR(255) NOT NULL DEFAULT '',
					honorary VARCHAR(64) NOT NULL DEFAULT '',
					search_terms TEXT NOT NULL DEFAULT ''
				);
				CREATE INDEX idx_persons_family_name ON persons(family_name);

				CREATE TABLE IF NOT EXISTS groups (
					id BIGSERIAL PRIMARY KEY,
					parent_id BIGINT,
					name VARCHAR(255) NOT NULL,
					international_name VARCHAR(255) NOT NULL DEFAULT '',
					abbreviated_name VARCHAR(64) NOT NULL DEFAULT '',
					native_name VARCHAR(255) NOT NULL DEFAULT '',
					type VARCHAR(100) NOT NULL,
					search_terms TEXT NOT NULL DEFAULT '',
					CONSTRAINT groups_parent_id_fkey
						FOREIGN KEY (parent_id) REFERENCES groups(id) ON DELETE SET NULL,
					CONSTRAINT groups_type_fkey
						FOREIGN KEY (type) REFERENCES group_type_schemes(key)
				);
				CREATE INDEX idx_groups_parent_id ON groups(parent_id);

				CREATE TABLE IF NOT EXISTS person_accounts (
					id BIGSERIAL PRIMARY KEY,
					owner_id BIGINT NOT NULL,
					type VARCHAR(100) NOT NULL,
					value VARCHAR(255) NOT NULL,
					CONSTRAINT person_accounts_owner_id_fkey
						FOREIGN KEY (owner_id) REFERENCES persons(id) ON DELETE CASCADE,
					CONSTRAINT person_accounts_type_fkey
						FOREIGN KEY (type) REFERENCES person_account_type_schemes(key),
					CONSTRAINT person_accounts_owner_id_type_value_key
						UNIQUE (owner_id, type, value)
				);

				CREATE TABLE IF NOT EXISTS group_accounts (
					id BIGSERIAL PRIMARY KEY,
					owner_id BIGINT NOT NULL,
					type VARCHAR(100) NOT NULL,
					value VARCHAR(255) NOT NULL,
					CONSTRAINT group_accounts_owner_id_fkey
						FOREIGN KEY (owner_id) REFERENCES groups(id) ON DELETE CASCADE,
					CONSTRAINT group_accounts_type_fkey
						FOREIGN KEY (type) REFERENCES group_account_type_schemes(key),
					CONSTRAINT group_accounts_owner_id_type_value_key
						UNIQUE (owner_id, type, value)
				);

				CREATE TABLE IF NOT EXISTS positions (
					id BIGSERIAL PRIMARY KEY,
					person_id BIGINT NOT NULL,
					group_id BIGINT NOT NULL,
					type VARCHAR(100) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					start_date DATE,
					end_date DATE,
					position INT NOT NULL DEFAULT 0,
					CONSTRAINT positions_person_id_fkey
						FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE,
					CONSTRAINT positions_group_id_fkey
						FOREIGN KEY (group_id) REFERENCES groups(id),
					CONSTRAINT positions_type_fkey
						FOREIGN KEY (type) REFERENCES position_type_schemes(key)
				);
				CREATE INDEX idx_positions_person_id ON positions(person_id);

				CREATE TABLE IF NOT EXISTS memberships (
					id BIGSERIAL PRIMARY KEY,
					person_id BIGINT NOT NULL,
					group_id BIGINT NOT NULL,
					start_date DATE,
					end_date DATE,
					CONSTRAINT memberships_person_id_fkey
						FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE,
					CONSTRAINT memberships_group_id_fkey
						FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
				);
				CREATE INDEX idx_memberships_person_id ON memberships(person_id);
				CREATE INDEX idx_memberships_group_id ON memberships(group_id);

				CREATE TABLE IF NOT EXISTS owners (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					person_id BIGINT,
					group_id BIGINT,
					CONSTRAINT owners_user_id_fkey
						FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
					CONSTRAINT owners_person_id_fkey
						FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE,
					CONSTRAINT owners_group_id_fkey
						FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE,
					CONSTRAINT owners_target_chk
						CHECK (person_id IS NOT NULL OR group_id IS NOT NULL)
				);
				CREATE INDEX idx_owners_user_id ON owners(user_id);
			`,
		},
		{
			Version:     4,
			Description: "Create works and work child tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS works (
					id BIGSERIAL PRIMARY KEY,
					type VARCHAR(100) NOT NULL,
					title TEXT NOT NULL,
					issued DATE NOT NULL,
					search_terms TEXT NOT NULL DEFAULT '',
					CONSTRAINT works_type_fkey
						FOREIGN KEY (type) REFERENCES work_type_schemes(key)
				);
				CREATE INDEX idx_works_issued ON works(issued);

				CREATE TABLE IF NOT EXISTS contributors (
					id BIGSERIAL PRIMARY KEY,
					work_id BIGINT NOT NULL,
					person_id BIGINT,
					group_id BIGINT,
					role VARCHAR(100) NOT NULL,
					position INT NOT NULL DEFAULT 0,
					CONSTRAINT contributors_work_id_fkey
						FOREIGN KEY (work_id) REFERENCES works(id) ON DELETE CASCADE,
					CONSTRAINT contributors_person_id_fkey
						FOREIGN KEY (person_id) REFERENCES persons(id),
					CONSTRAINT contributors_group_id_fkey
						FOREIGN KEY (group_id) REFERENCES groups(id),
					CONSTRAINT contributors_role_fkey
						FOREIGN KEY (role) REFERENCES contributor_role_schemes(key)
				);
				CREATE INDEX idx_contributors_work_id ON contributors(work_id);
				CREATE INDEX idx_contributors_person_id ON contributors(person_id);

				CREATE TABLE IF NOT EXISTS affiliations (
					id BIGSERIAL PRIMARY KEY,
					work_id BIGINT NOT NULL,
					contributor_id BIGINT NOT NULL,
					group_id BIGINT NOT NULL,
					position INT NOT NULL DEFAULT 0,
					CONSTRAINT affiliations_work_id_fkey
						FOREIGN KEY (work_id) REFERENCES works(id) ON DELETE CASCADE,
					CONSTRAINT affiliations_contributor_id_fkey
						FOREIGN KEY (contributor_id) REFERENCES contributors(id) ON DELETE CASCADE,
					CONSTRAINT affiliations_group_id_fkey
						FOREIGN KEY (group_id) REFERENCES groups(id)
				);
				CREATE INDEX idx_affiliations_work_id ON affiliations(work_id);
				CREATE INDEX idx_affiliations_group_id ON affiliations(group_id);

				CREATE TABLE IF NOT EXISTS descriptions (
					id BIGSERIAL PRIMARY KEY,
					work_id BIGINT NOT NULL,
					type VARCHAR(100) NOT NULL,
					format VARCHAR(100) NOT NULL,
					value TEXT NOT NULL,
					position INT NOT NULL DEFAULT 0,
					CONSTRAINT descriptions_work_id_fkey
						FOREIGN KEY (work_id) REFERENCES works(id) ON DELETE CASCADE,
					CONSTRAINT descriptions_type_fkey
						FOREIGN KEY (type) REFERENCES description_type_schemes(key),
					CONSTRAINT descriptions_format_fkey
						FOREIGN KEY (format) REFERENCES description_format_schemes(key)
				);
				CREATE INDEX idx_descriptions_work_id ON descriptions(work_id);

				CREATE TABLE IF NOT EXISTS relations (
					id BIGSERIAL PRIMARY KEY,
					work_id BIGINT NOT NULL,
					target_id BIGINT NOT NULL,
					type VARCHAR(100) NOT NULL,
					location VARCHAR(255) NOT NULL DEFAULT '',
					position INT NOT NULL DEFAULT 0,
					CONSTRAINT relations_work_id_fkey
						FOREIGN KEY (work_id) REFERENCES works(id) ON DELETE CASCADE,
					CONSTRAINT relations_target_id_fkey
						FOREIGN KEY (target_id) REFERENCES works(id),
					CONSTRAINT relations_type_fkey
						FOREIGN KEY (type) REFERENCES relation_type_schemes(key)
				);
				CREATE INDEX idx_relations_work_id ON relations(work_id);

				CREATE TABLE IF NOT EXISTS work_identifiers (
					id BIGSERIAL PRIMARY KEY,
					work_id BIGINT NOT NULL,
					type VARCHAR(100) NOT NULL,
					value VARCHAR(255) NOT NULL,
					CONSTRAINT work_identifiers_work_id_fkey
						FOREIGN KEY (work_id) REFERENCES works(id) ON DELETE CASCADE,
					CONSTRAINT work_identifiers_type_fkey
						FOREIGN KEY (type) REFERENCES identifier_type_schemes(key),
					CONSTRAINT work_identifiers_work_id_type_value_key
						UNIQUE (work_id, type, value)
				);

				CREATE TABLE IF NOT EXISTS work_measures (
					id BIGSERIAL PRIMARY KEY,
					work_id BIGINT NOT NULL,
					type VARCHAR(100) NOT NULL,
					value VARCHAR(255) NOT NULL,
					CONSTRAINT work_measures_work_id_fkey
						FOREIGN KEY (work_id) REFERENCES works(id) ON DELETE CASCADE,
					CONSTRAINT work_measures_type_fkey
						FOREIGN KEY (type) REFERENCES measure_type_schemes(key),
					CONSTRAINT work_measures_work_id_type_key
						UNIQUE (work_id, type)
				);
			`,
		},
	}
}

// Migrate applies pending migrations in version order, tracking the applied
// set in a schema_migrations table. Safe to run repeatedly.
func Migrate(ctx context.Context, q Queryer, migrations []Migration) error {
	if _, err := q.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied := map[int]struct{}{}
	rows, err := q.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return err
		}
		applied[v] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if _, err := q.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("applying migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := q.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description); err != nil {
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}
	}
	return nil
}
