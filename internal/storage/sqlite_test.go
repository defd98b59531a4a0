package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var seedCounts = []TableCount{
	{Table: "Students", Rows: 5},
	{Table: "Professors", Rows: 3},
	{Table: "Courses", Rows: 4},
	{Table: "Enrollments", Rows: 6},
	{Table: "Departments", Rows: 4},
}

func TestOpen_SeedsUniversity(t *testing.T) {
	s := openTestStore(t)

	got, err := s.TableCounts(context.Background())
	if err != nil {
		t.Fatalf("TableCounts: %v", err)
	}
	if diff := cmp.Diff(seedCounts, got); diff != "" {
		t.Errorf("table counts mismatch (-want +got):\n%s", diff)
	}
}

// TestMigrationsIdempotent runs Open twice on the same file and verifies
// neither the schema_version rows nor the seed rows are duplicated.
func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "university.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if diff := cmp.Diff(v1, v2); diff != "" {
		t.Errorf("applied migrations changed (-first +second):\n%s", diff)
	}

	got, err := s2.TableCounts(context.Background())
	if err != nil {
		t.Fatalf("TableCounts: %v", err)
	}
	if diff := cmp.Diff(seedCounts, got); diff != "" {
		t.Errorf("table counts after reopen (-want +got):\n%s", diff)
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, versions); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
}

func TestSeed_ComputerScienceStudents(t *testing.T) {
	s := openTestStore(t)

	rows, err := s.DB().Query("SELECT name FROM Students WHERE department = 'Computer Science' ORDER BY id")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}

	want := []string{"Rahul Sharma", "Neha Gupta", "Sanjay Patel"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestSeed_ForeignKeysEnforced(t *testing.T) {
	s := openTestStore(t)

	_, err := s.DB().Exec("INSERT INTO Enrollments VALUES (99, 42, 1, 'Fall 2024', 'A')")
	if err == nil {
		t.Fatal("expected foreign key violation for unknown student")
	}
}

func TestSQLiteDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "university.db")

	for _, tc := range []struct {
		mode       Mode
		wantPragma bool
	}{
		{ModeReadOnly, false},
		{ModeReadWrite, true},
		{ModeReadWriteCreate, true},
	} {
		dsn, err := SQLiteDSN(path, tc.mode)
		if err != nil {
			t.Fatalf("SQLiteDSN(%s): %v", tc.mode, err)
		}
		if !strings.HasPrefix(dsn, "file:") {
			t.Errorf("dsn %q does not use the file: scheme", dsn)
		}
		if !strings.Contains(dsn, "mode="+string(tc.mode)) {
			t.Errorf("dsn %q missing mode=%s", dsn, tc.mode)
		}
		if got := strings.Contains(dsn, "foreign_keys"); got != tc.wantPragma {
			t.Errorf("dsn %q foreign_keys present = %v, want %v", dsn, got, tc.wantPragma)
		}
	}
}

func TestSQLiteDSN_ReadWriteDoesNotCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")

	dsn, err := SQLiteDSN(path, ModeReadWrite)
	if err != nil {
		t.Fatalf("SQLiteDSN: %v", err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err == nil {
		t.Fatal("expected ping to fail for a missing database file")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("database file was created: stat err = %v", err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "university.db")

	ok, err := Exists(path)
	if err != nil || ok {
		t.Fatalf("Exists(missing) = %v, %v; want false, nil", ok, err)
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	ok, err = Exists(path)
	if err != nil || !ok {
		t.Fatalf("Exists(file) = %v, %v; want true, nil", ok, err)
	}

	ok, err = Exists(dir)
	if err != nil || ok {
		t.Fatalf("Exists(dir) = %v, %v; want false, nil", ok, err)
	}
}

func TestSchema(t *testing.T) {
	schema, err := Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	for _, table := range Tables {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("schema missing table %s", table)
		}
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "university.db")

	if _, err := OpenReadOnly(path); err == nil {
		t.Fatal("expected error opening a missing database read-only")
	}

	rw, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rw.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly: %v", err)
	}
	defer ro.Close()

	versions, err := ro.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, versions); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
	if _, err := ro.DB().Exec("DELETE FROM Students"); err == nil {
		t.Error("expected write to fail on a read-only database")
	}
}
