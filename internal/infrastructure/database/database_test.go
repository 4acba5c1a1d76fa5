package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Path: MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates file and nested directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(context.Background(), Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := db.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
			t.Fatalf("ExecContext() error = %v", err)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("in memory", func(t *testing.T) {
		db := openTestDB(t)
		if db.Path() != MemoryPath {
			t.Errorf("Path() = %v, want %v", db.Path(), MemoryPath)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Open(ctx, Config{Path: MemoryPath}); err == nil {
			t.Error("Open() with cancelled context expected error, got nil")
		}
	})
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: MemoryPath})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close() expected error, got nil")
	}
}

func TestExecAndQuery(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE things (id TEXT PRIMARY KEY, n INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	for i, id := range []string{"a", "b", "c"} {
		if _, err := db.ExecContext(ctx, "INSERT INTO things (id, n) VALUES (?, ?)", id, i); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	rows, err := db.QueryContext(ctx, "SELECT id FROM things ORDER BY n")
	if err != nil {
		t.Fatalf("QueryContext() error = %v", err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, id)
	}
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("rows = %v, want [a b c]", got)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO missing VALUES (1)"); err == nil {
		t.Error("ExecContext() on missing table expected error, got nil")
	}
}

func TestBeginTx(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		commit bool
		want   int
	}{
		{"commit", true, 1},
		{"rollback", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			if _, err := db.ExecContext(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
				t.Fatalf("create table: %v", err)
			}

			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("BeginTx() error = %v", err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO t (id) VALUES (1)"); err != nil {
				t.Fatalf("insert: %v", err)
			}
			if tt.commit {
				err = tx.Commit()
			} else {
				err = tx.Rollback()
			}
			if err != nil {
				t.Fatalf("finish tx: %v", err)
			}

			var count int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count); err != nil {
				t.Fatalf("count: %v", err)
			}
			if count != tt.want {
				t.Errorf("count = %d, want %d", count, tt.want)
			}
		})
	}
}
