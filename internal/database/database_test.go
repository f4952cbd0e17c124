package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestListMigrations_OrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_reminder_due_index.sql",
		"001_study_sessions.sql",
		"010_later.sql",
		"000_ignored.sql",
		"README.md",
		"abc_not_versioned.sql",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	files, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("listMigrations returned error: %v", err)
	}

	want := []int{1, 2, 10}
	if len(files) != len(want) {
		t.Fatalf("expected %d migrations, got %+v", len(want), files)
	}
	for i, v := range want {
		if files[i].version != v {
			t.Fatalf("expected version %d at position %d, got %d", v, i, files[i].version)
		}
	}
}

func TestListMigrations_RepoMigrations(t *testing.T) {
	files, err := listMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("listMigrations returned error: %v", err)
	}
	if len(files) == 0 || files[0].name != "001_study_sessions.sql" {
		t.Fatalf("expected shipped migrations starting at 001, got %+v", files)
	}
}

func TestListMigrations_MissingDir(t *testing.T) {
	if _, err := listMigrations(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestOpenSQLite_SchemaConstraints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reminders.db")
	db, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	defer db.Close()

	userID := uuid.NewString()
	now := time.Now().UnixMicro()
	if _, err := db.Exec(`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`, userID, "ada@example.com", now); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	start := time.Now().Add(time.Hour).UnixMicro()
	_, err = db.Exec(`INSERT INTO study_sessions (id, user_id, start_time, end_time, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, start, start-1, now, now)
	if err == nil {
		t.Fatalf("expected end_time before start_time to be rejected")
	}

	_, err = db.Exec(`INSERT INTO study_sessions (id, user_id, start_time, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), uuid.NewString(), start, now, now)
	if err == nil {
		t.Fatalf("expected session for unknown user to be rejected")
	}

	var sent, attempts int
	id := uuid.NewString()
	if _, err := db.Exec(`INSERT INTO study_sessions (id, user_id, start_time, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, start, now, now); err != nil {
		t.Fatalf("failed to insert open-ended session: %v", err)
	}
	if err := db.QueryRow(`SELECT reminder_sent, reminder_attempts FROM study_sessions WHERE id = ?`, id).Scan(&sent, &attempts); err != nil {
		t.Fatalf("failed to read session: %v", err)
	}
	if sent != 0 || attempts != 0 {
		t.Fatalf("expected fresh session to be unreminded, got sent=%d attempts=%d", sent, attempts)
	}

	// Reopening runs the schema again without error.
	db.Close()
	again, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("reopening returned error: %v", err)
	}
	again.Close()
}
