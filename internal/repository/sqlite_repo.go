package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyblocks-backend/internal/models"
)

// SQLiteStudySessionRepo mirrors StudySessionRepo on the embedded store.
type SQLiteStudySessionRepo struct {
	db *sql.DB
}

func NewSQLiteStudySessionRepo(db *sql.DB) *SQLiteStudySessionRepo {
	return &SQLiteStudySessionRepo{db: db}
}

func (r *SQLiteStudySessionRepo) ListDueForReminder(ctx context.Context, windowStart, windowEnd time.Time, limit int) ([]models.StudySession, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+studySessionColumns+`
		FROM study_sessions
		WHERE reminder_sent = 0
		  AND start_time >= ?
		  AND start_time < ?
		ORDER BY start_time, id
		LIMIT ?`,
		toMicros(windowStart), toMicros(windowEnd), limit)
	if err != nil {
		return nil, fmt.Errorf("query due sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.StudySession, 0)
	for rows.Next() {
		s, scanErr := scanSQLiteStudySession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *s)
	}

	return sessions, rows.Err()
}

func (r *SQLiteStudySessionRepo) ClaimReminder(ctx context.Context, id uuid.UUID, claimedAt time.Time) (*models.StudySession, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE study_sessions
		SET reminder_sent = 1,
			reminder_sent_at = ?,
			reminder_attempts = reminder_attempts + 1,
			updated_at = ?
		WHERE id = ?
		  AND reminder_sent = 0
		RETURNING `+studySessionColumns,
		toMicros(claimedAt), toMicros(time.Now()), id.String())

	s, err := scanSQLiteStudySession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim session %s: %w", id, err)
	}
	return s, nil
}

func (r *SQLiteStudySessionRepo) RevertReminders(ctx context.Context, ids []uuid.UUID, claimedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := []interface{}{toMicros(time.Now())}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id.String())
	}
	args = append(args, toMicros(claimedAt))

	result, err := r.db.ExecContext(ctx, `
		UPDATE study_sessions
		SET reminder_sent = 0,
			reminder_sent_at = NULL,
			updated_at = ?
		WHERE id IN (`+strings.Join(placeholders, ", ")+`)
		  AND reminder_sent = 1
		  AND reminder_sent_at = ?`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("revert reminders: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

func (r *SQLiteStudySessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+studySessionColumns+` FROM study_sessions WHERE id = ?`, id.String())
	return scanSQLiteStudySession(row)
}

// SQLiteUserRepo answers contact lookups from the embedded users table.
type SQLiteUserRepo struct {
	db *sql.DB
}

func NewSQLiteUserRepo(db *sql.DB) *SQLiteUserRepo {
	return &SQLiteUserRepo{db: db}
}

// GetContact returns sql.ErrNoRows when the user does not exist.
func (r *SQLiteUserRepo) GetContact(ctx context.Context, userID uuid.UUID) (*models.UserContact, error) {
	var (
		c  models.UserContact
		id string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name FROM users WHERE id = ?`, userID.String(),
	).Scan(&id, &c.Email, &c.DisplayName)
	if err != nil {
		return nil, err
	}

	c.UserID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", id, err)
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteStudySession(row rowScanner) (*models.StudySession, error) {
	var (
		s                    models.StudySession
		id, userID           string
		start                int64
		end, sentAt          sql.NullInt64
		sent                 int64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &userID, &start, &end, &sent, &sentAt, &s.ReminderAttempts, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse session id %q: %w", id, err)
	}
	if s.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", userID, err)
	}

	s.StartTime = fromMicros(start)
	s.EndTime = fromNullMicros(end)
	s.ReminderSent = sent != 0
	s.ReminderSentAt = fromNullMicros(sentAt)
	s.CreatedAt = fromMicros(createdAt)
	s.UpdatedAt = fromMicros(updatedAt)
	return &s, nil
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func fromNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMicros(v.Int64)
	return &t
}
