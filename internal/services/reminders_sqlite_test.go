package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"studyblocks-backend/internal/database"
	"studyblocks-backend/internal/repository"
)

func seedSQLite(t *testing.T, db *sql.DB, email string, starts ...time.Time) (uuid.UUID, []uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	now := time.Now().UnixMicro()
	if _, err := db.Exec(`INSERT INTO users (id, email, full_name, created_at) VALUES (?, ?, ?, ?)`,
		userID.String(), email, "", now); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	ids := make([]uuid.UUID, len(starts))
	for i, start := range starts {
		ids[i] = uuid.New()
		if _, err := db.Exec(`
			INSERT INTO study_sessions (id, user_id, start_time, end_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ids[i].String(), userID.String(), start.UnixMicro(), start.Add(45*time.Minute).UnixMicro(), now, now); err != nil {
			t.Fatalf("failed to insert session: %v", err)
		}
	}
	return userID, ids
}

func TestReminderDispatcher_SQLiteConcurrentInvocations(t *testing.T) {
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "dispatch.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	store := repository.NewSQLiteStudySessionRepo(db)
	contacts := NewRepoContactResolver(repository.NewSQLiteUserRepo(db))

	_, aliceSessions := seedSQLite(t, db, "alice@example.com",
		testNow.Add(10*time.Minute+5*time.Second), testNow.Add(10*time.Minute+50*time.Second))
	seedSQLite(t, db, "bob@example.com", testNow.Add(10*time.Minute+30*time.Second))
	seedSQLite(t, db, "later@example.com", testNow.Add(30*time.Minute))

	mailer := &stubMailer{failTo: map[string]bool{}}

	const invocations = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		summaries []int
	)
	for i := 0; i < invocations; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := NewReminderDispatcher(store, contacts, mailer, nil, ReminderOptions{})
			// Distinct claim stamps per invocation, as separate processes would have.
			d.now = func() time.Time { return testNow.Add(time.Duration(i) * time.Millisecond) }
			summary, err := d.Run(context.Background())
			if err != nil {
				t.Errorf("invocation %d failed: %v", i, err)
				return
			}
			mu.Lock()
			summaries = append(summaries, summary.EmailsSent)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range summaries {
		total += n
	}
	if len(mailer.sent) != total {
		t.Fatalf("summaries report %d emails but mailer saw %d", total, len(mailer.sent))
	}

	perRecipient := map[string]int{}
	for _, e := range mailer.sent {
		perRecipient[e.to]++
	}
	if perRecipient["bob@example.com"] != 1 {
		t.Fatalf("expected bob to be reminded exactly once, got %d", perRecipient["bob@example.com"])
	}
	if perRecipient["later@example.com"] != 0 {
		t.Fatalf("expected session outside the window to be left alone")
	}
	// Alice's two sessions may be claimed by different invocations, but each only once.
	if perRecipient["alice@example.com"] < 1 || perRecipient["alice@example.com"] > 2 {
		t.Fatalf("unexpected number of emails to alice: %d", perRecipient["alice@example.com"])
	}

	for _, id := range aliceSessions {
		s, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID returned error: %v", err)
		}
		if !s.ReminderSent || s.ReminderAttempts != 1 {
			t.Fatalf("expected session %s claimed exactly once, got sent=%v attempts=%d", id, s.ReminderSent, s.ReminderAttempts)
		}
	}
}

func TestReminderDispatcher_SQLiteMissingEmailReverts(t *testing.T) {
	db, err := database.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "dispatch.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	store := repository.NewSQLiteStudySessionRepo(db)
	contacts := NewRepoContactResolver(repository.NewSQLiteUserRepo(db))
	_, ids := seedSQLite(t, db, "   ", testNow.Add(10*time.Minute+30*time.Second))

	d := NewReminderDispatcher(store, contacts, &stubMailer{}, nil, ReminderOptions{})
	d.now = func() time.Time { return testNow }

	summary, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.EmailsFailed != 1 || summary.EmailsSent != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	s, err := store.GetByID(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if s.ReminderSent || s.ReminderSentAt != nil || s.ReminderAttempts != 1 {
		t.Fatalf("expected claim reverted with attempts kept, got %+v", s)
	}
}
