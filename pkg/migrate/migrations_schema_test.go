package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/smilequote-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestMigrationsContainSchemas(t *testing.T) {
	cases := map[string][]string{
		"create_enum_types": {
			"CREATE TYPE quote_status AS ENUM ('draft', 'submitted', 'accepted', 'completed', 'cancelled')",
			"CREATE TYPE discount_type AS ENUM ('PERCENT', 'FIXED_AMOUNT')",
			"CREATE TYPE promo_type AS ENUM ('OFFER', 'PACKAGE')",
			"CREATE TYPE quote_promotion_action AS ENUM ('applied', 'removed', 'revoked')",
		},
		"create_promotions_table": {
			"CREATE TABLE IF NOT EXISTS promotions",
			"discount_value numeric(12,2) NOT NULL",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_promotions_code_upper",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_promotions_slug_lower",
		},
		"create_quotes_tables": {
			"CREATE TABLE IF NOT EXISTS quotes",
			"total_cents = subtotal_cents - discount_cents",
			"revision bigint NOT NULL DEFAULT 0",
			"CREATE TABLE IF NOT EXISTS quote_lines",
			"CHECK (NOT is_locked OR source_package_id IS NOT NULL)",
			"CREATE TABLE IF NOT EXISTS quote_promotions",
		},
		"create_catalog_packages_table": {
			"CREATE TABLE IF NOT EXISTS catalog_packages",
			"CREATE TABLE IF NOT EXISTS catalog_package_items",
		},
		"create_outbox_tables": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate",
			"CREATE TABLE IF NOT EXISTS outbox_dlqs",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Clinic Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_clinic_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}
