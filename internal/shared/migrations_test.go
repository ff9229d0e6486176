package shared

import (
	"database/sql"
	"testing"
)

func memoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n); err != nil {
		t.Fatalf("failed to inspect schema: %v", err)
	}
	return n == 1
}

func appliedVersions(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("failed to query schema_migrations: %v", err)
	}
	return n
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("failed to load migrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected embedded migrations")
	}

	first := migrations[0]
	if first.Version != 1 || first.Name != "publish_runs" {
		t.Errorf("unexpected first migration %d %q", first.Version, first.Name)
	}

	for i, m := range migrations {
		if m.Up == "" || m.Down == "" {
			t.Errorf("migration %d is missing up or down SQL", m.Version)
		}
		if i > 0 && m.Version <= migrations[i-1].Version {
			t.Errorf("migration %d is out of order", m.Version)
		}
	}
}

func TestRunMigrations(t *testing.T) {
	t.Run("creates the audit log schema", func(t *testing.T) {
		db := memoryDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		for _, table := range []string{"schema_migrations", "publish_runs", "publish_runs_sequence"} {
			if !tableExists(t, db, table) {
				t.Errorf("expected table %s", table)
			}
		}

		var seq int
		if err := db.QueryRow("SELECT value FROM publish_runs_sequence WHERE id = 1").Scan(&seq); err != nil {
			t.Fatalf("expected a seeded sequence row: %v", err)
		}
		if seq != 0 {
			t.Errorf("expected sequence to start at 0, got %d", seq)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		db := memoryDB(t)
		for i := 0; i < 2; i++ {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("run %d failed: %v", i+1, err)
			}
		}

		migrations, _ := loadMigrations()
		if got := appliedVersions(t, db); got != len(migrations) {
			t.Errorf("expected %d applied versions, got %d", len(migrations), got)
		}
	})
}

func TestRollbackMigration(t *testing.T) {
	t.Run("drops the latest migration", func(t *testing.T) {
		db := memoryDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		before := appliedVersions(t, db)

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to roll back: %v", err)
		}

		if got := appliedVersions(t, db); got != before-1 {
			t.Errorf("expected %d applied versions, got %d", before-1, got)
		}
		if before == 1 && tableExists(t, db, "publish_runs") {
			t.Error("expected publish_runs to be dropped")
		}
	})

	t.Run("fails when nothing is applied", func(t *testing.T) {
		db := memoryDB(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		for appliedVersions(t, db) > 0 {
			if err := RollbackMigration(db); err != nil {
				t.Fatalf("unexpected rollback error: %v", err)
			}
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("expected an error with no applied migrations")
		}
	})
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "comments and blank lines",
			script: "-- header\nCREATE TABLE a (id INTEGER); -- trailing\nINSERT INTO a (id) VALUES (1);\n\n",
			want:   []string{"CREATE TABLE a (id INTEGER)", "INSERT INTO a (id) VALUES (1)"},
		},
		{
			name:   "multi-line statement",
			script: "CREATE TABLE b (\n    id INTEGER\n);",
			want:   []string{"CREATE TABLE b (\nid INTEGER\n)"},
		},
		{
			name:   "only comments",
			script: "-- nothing here\n",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStatements(tt.script)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d statements, got %d: %q", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("statement %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}
