package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyblocks-backend/internal/models"
)

const studySessionColumns = `id, user_id, start_time, end_time, reminder_sent, reminder_sent_at, reminder_attempts, created_at, updated_at`

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

// ListDueForReminder returns unreminded sessions starting in [windowStart, windowEnd).
func (r *StudySessionRepo) ListDueForReminder(ctx context.Context, windowStart, windowEnd time.Time, limit int) ([]models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+studySessionColumns+`
		FROM study_sessions
		WHERE reminder_sent = FALSE
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time, id
		LIMIT $3
	`, windowStart, windowEnd, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.StudySession, 0)
	for rows.Next() {
		s, scanErr := scanStudySession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *s)
	}

	return sessions, rows.Err()
}

// ClaimReminder flips reminder_sent from false to true in a single statement.
// It returns (nil, nil) when the row was already claimed or no longer exists.
func (r *StudySessionRepo) ClaimReminder(ctx context.Context, id uuid.UUID, claimedAt time.Time) (*models.StudySession, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE study_sessions
		SET reminder_sent = TRUE,
			reminder_sent_at = $2,
			reminder_attempts = reminder_attempts + 1,
			updated_at = NOW()
		WHERE id = $1
		  AND reminder_sent = FALSE
		RETURNING `+studySessionColumns,
		id, claimedAt)

	s, err := scanStudySession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// RevertReminders undoes claims stamped with claimedAt. Rows re-claimed by a
// later invocation carry a different reminder_sent_at and are left alone.
func (r *StudySessionRepo) RevertReminders(ctx context.Context, ids []uuid.UUID, claimedAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET reminder_sent = FALSE,
			reminder_sent_at = NULL,
			updated_at = NOW()
		WHERE id = ANY($1)
		  AND reminder_sent = TRUE
		  AND reminder_sent_at = $2
	`, ids, claimedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *StudySessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+studySessionColumns+` FROM study_sessions WHERE id = $1`, id)
	return scanStudySession(row)
}

func scanStudySession(row pgx.Row) (*models.StudySession, error) {
	s := &models.StudySession{}
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.StartTime,
		&s.EndTime,
		&s.ReminderSent,
		&s.ReminderSentAt,
		&s.ReminderAttempts,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
