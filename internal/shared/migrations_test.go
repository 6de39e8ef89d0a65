package shared

import (
	"path/filepath"
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("parseMigrationName", func(t *testing.T) {
		tc := []struct {
			name      string
			version   int
			label     string
			direction string
			ok        bool
		}{
			{name: "0000_export_runs_up.sql", version: 0, label: "export_runs", direction: "up", ok: true},
			{name: "0001_auth_events_down.sql", version: 1, label: "auth_events", direction: "down", ok: true},
			{name: "README.md"},
			{name: "abc_up.sql"},
			{name: "0002_sideways.sql"},
		}

		for _, tt := range tc {
			version, label, direction, ok := parseMigrationName(tt.name)
			if ok != tt.ok || version != tt.version || label != tt.label || direction != tt.direction {
				t.Errorf("parseMigrationName(%q) = (%d, %q, %q, %v)", tt.name, version, label, direction, ok)
			}
		}
	})

	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" || m.Down == "" {
				t.Errorf("migration version %d is incomplete", m.Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		applied, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if applied != len(migrations) {
			t.Errorf("expected %d applied migrations, got %d", len(migrations), applied)
		}

		if _, err := db.Exec("SELECT 1 FROM export_runs LIMIT 1"); err != nil {
			t.Errorf("export_runs table should exist after migrations: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		if _, err := db.Exec("SELECT 1 FROM auth_events LIMIT 1"); err == nil {
			t.Error("auth_events should be dropped after rollback")
		}

		statuses, err := Migrations(db)
		if err != nil {
			t.Fatalf("failed to list migrations: %v", err)
		}
		last := statuses[len(statuses)-1]
		if last.Applied {
			t.Errorf("migration %d should be pending after rollback", last.Version)
		}
	})

	t.Run("Rollback on empty database", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := createMigrationsTable(db); err != nil {
			t.Fatalf("failed to create migrations table: %v", err)
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing is applied")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(filepath.Join(t.TempDir(), "spotx.db"))
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if _, err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		applied, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}
		if applied != 0 {
			t.Errorf("expected no pending migrations, applied %d", applied)
		}
	})
}
