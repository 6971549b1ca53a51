package db

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := conn.Exec(`CREATE TABLE items (name TEXT UNIQUE)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return conn
}

func TestWithTxCommit(t *testing.T) {
	conn := openTestDB(t)

	err := WithTx(conn, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO items (name) VALUES ('a')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestWithTxRollback(t *testing.T) {
	conn := openTestDB(t)
	boom := errors.New("boom")

	err := WithTx(conn, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO items (name) VALUES ('a')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx error = %v, want boom", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after rollback", count)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := openTestDB(t)

	if _, err := conn.Exec(`INSERT INTO items (name) VALUES ('a')`); err != nil {
		t.Fatal(err)
	}
	_, err := conn.Exec(`INSERT INTO items (name) VALUES ('a')`)
	if err == nil {
		t.Fatal("expected unique violation")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("IsUniqueViolation(%v) = false, want true", err)
	}
	if IsUniqueViolation(nil) {
		t.Error("IsUniqueViolation(nil) = true, want false")
	}
	if IsUniqueViolation(errors.New("other")) {
		t.Error("IsUniqueViolation(other) = true, want false")
	}
}

func TestNullConversions(t *testing.T) {
	if got := NullInt64ToPtr(sql.NullInt64{}); got != nil {
		t.Errorf("NullInt64ToPtr(invalid) = %v, want nil", got)
	}
	if got := NullInt64ToPtr(sql.NullInt64{Int64: 7, Valid: true}); got == nil || *got != 7 {
		t.Errorf("NullInt64ToPtr(7) = %v, want 7", got)
	}
	if got := NullInt64Value(sql.NullInt64{Int64: 7, Valid: true}); got != 7 {
		t.Errorf("NullInt64Value(7) = %d, want 7", got)
	}
	if got := NullInt64Value(sql.NullInt64{}); got != 0 {
		t.Errorf("NullInt64Value(invalid) = %d, want 0", got)
	}
	if got := NullStringValue(sql.NullString{String: "x", Valid: true}); got != "x" {
		t.Errorf("NullStringValue(x) = %q", got)
	}
	if got := NullStringValue(sql.NullString{}); got != "" {
		t.Errorf("NullStringValue(invalid) = %q, want empty", got)
	}
}
