package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/multierr"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	if err := ValidateFS(Embedded, embeddedDir); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	embedded, err := fs.Glob(Embedded, embeddedDir+"/*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("expected embedded migrations to mirror disk, got %d embedded and %d on disk", len(embedded), len(onDisk))
	}
}

func TestMigrationsCreateStorefrontSchema(t *testing.T) {
	var all strings.Builder
	entries, err := fs.ReadDir(Embedded, embeddedDir)
	if err != nil {
		t.Fatalf("read embedded: %v", err)
	}
	for _, entry := range entries {
		data, err := fs.ReadFile(Embedded, embeddedDir+"/"+entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		all.Write(data)
	}
	content := all.String()

	checks := []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_items",
		"CREATE TABLE IF NOT EXISTS coupons",
		"CREATE TABLE IF NOT EXISTS coupon_usage",
		"CREATE TABLE IF NOT EXISTS payment_settings",
		"CREATE TABLE IF NOT EXISTS payment_collection_settings",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_type_aggregate",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_coupons_code",
		"CREATE TYPE order_kind AS ENUM ('standard', 'upfront_charges')",
		"CREATE TABLE IF NOT EXISTS contact_queries",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Gift Wrap!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_gift_wrap.sql") {
		t.Fatalf("unexpected filename %q", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("validate generated migration: %v", err)
	}

	if _, err := CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatal("expected sanitized-empty name to fail")
	}
}

func TestCreateSQLMigrationBumpsTakenVersion(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

	first, err := createSQLMigration(dir, "create_gift_cards", now)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := createSQLMigration(dir, "add gift card index", now)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if filepath.Base(first) != "20250401090000_create_gift_cards.sql" ||
		filepath.Base(second) != "20250401090001_add_gift_card_index.sql" {
		t.Fatalf("unexpected files %q %q", first, second)
	}

	body, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS gift_cards") ||
		!strings.Contains(string(body), "DROP TABLE IF EXISTS gift_cards") {
		t.Fatalf("expected table skeleton, got:\n%s", body)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("validate generated migrations: %v", err)
	}
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"20250101000000_orders.sql": {Data: []byte(`-- +goose Up
-- +goose StatementBegin
CREATE TYPE shipment_state AS ENUM ('packed');
CREATE TABLE shipments (id uuid);
-- +goose Down
DROP TABLE shipments;
`)},
		"bad-name.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}

	err := ValidateFS(fsys, ".")
	if err == nil {
		t.Fatal("expected validation errors")
	}
	errs := multierr.Errors(err)
	if len(errs) != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", len(errs), err)
	}
	for _, want := range []string{"invalid migration filename", "StatementBegin", "without IF NOT EXISTS", "pg_type guard"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}

func TestValidateDirRejectsMissingDown(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\nSELECT 1;\n"
	if err := os.WriteFile(filepath.Join(dir, "20250101000000_broken.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatal("expected missing goose Down to fail validation")
	}
}
