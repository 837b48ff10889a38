package migrate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := Validate(Migrations()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestCheckoutMigrationContainsConstraints(t *testing.T) {
	matches, err := fs.Glob(Migrations(), "*_create_checkout_tables.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no checkout migration file found")
	}

	data, err := fs.ReadFile(Migrations(), matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CONSTRAINT ux_orders_idempotency_key UNIQUE (idempotency_key)",
		"CONSTRAINT ux_payment_attempts_idempotency_key UNIQUE (idempotency_key)",
		"ux_payment_attempts_provider_reference",
		"CHECK (total_tzs = subtotal_tzs + shipping_tzs + tax_tzs)",
		"CHECK (status IN ('initiated', 'completed', 'failed'))",
		"DROP TABLE IF EXISTS payment_attempts",
	}
	for _, check := range checks {
		if !strings.Contains(content, check) {
			t.Fatalf("migration missing %q", check)
		}
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Refunds Table", now)
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if filepath.Base(path) != "20261018093000_add_refunds_table.sql" {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "add refunds table", now); err == nil {
		t.Fatal("expected same-second duplicate to fail")
	}
	if _, err := CreateSQLMigration(dir, "!!!", now); err == nil {
		t.Fatal("expected unsanitizable name to fail")
	}
}

func TestValidateRejectsBrokenMigrations(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"empty": {},
		"bad name": {
			"bad.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"down before up": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		},
		"unbalanced statement": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		if err := Validate(fsys); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestRunnerUpStatusDownOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:runner?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	fsys := fstest.MapFS{
		"20260101000000_widgets.sql": {Data: []byte("-- +goose Up\nCREATE TABLE widgets (id INTEGER PRIMARY KEY);\n\n-- +goose Down\nDROP TABLE widgets;\n")},
		"20260102000000_gadgets.sql": {Data: []byte("-- +goose Up\nCREATE TABLE gadgets (id INTEGER PRIMARY KEY);\n\n-- +goose Down\nDROP TABLE gadgets;\n")},
	}
	runner, err := NewRunner(sqlDB, goose.DialectSQLite3, fsys)
	require.NoError(t, err)

	ctx := context.Background()
	applied, err := runner.Up(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{20260101000000, 20260102000000}, applied)
	require.True(t, conn.Migrator().HasTable("gadgets"))

	statuses, err := runner.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	for _, s := range statuses {
		require.True(t, s.Applied, "version %d should be applied", s.Version)
	}

	version, err := runner.Down(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(20260102000000), version)
	require.False(t, conn.Migrator().HasTable("gadgets"))

	require.NoError(t, runner.To(ctx, 20260102000000))
	require.True(t, conn.Migrator().HasTable("gadgets"))
}

func TestNewRunnerRequiresDB(t *testing.T) {
	if _, err := NewRunner(nil, goose.DialectPostgres, Migrations()); err == nil {
		t.Fatal("expected nil db to fail")
	}
}

func TestAutoMigrateModelsOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:automigrate?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrateModels(conn); err != nil {
		t.Fatalf("AutoMigrateModels: %v", err)
	}
	for _, table := range []string{"orders", "order_lines", "payment_attempts", "outbox_events", "carts", "cart_items"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}
