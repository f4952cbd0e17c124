package models

import (
	"time"

	"github.com/google/uuid"
)

type StudySession struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
	ReminderSent     bool       `json:"reminder_sent"`
	ReminderSentAt   *time.Time `json:"reminder_sent_at"`
	ReminderAttempts int        `json:"reminder_attempts"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DispatchSummary is the result of one reminder dispatch invocation.
type DispatchSummary struct {
	Message           string `json:"message"`
	EmailsSent        int    `json:"emailsSent"`
	EmailsFailed      int    `json:"emailsFailed"`
	SessionsProcessed int    `json:"sessionsProcessed"`
}

// WebSocket push for a delivered reminder
type ReminderEvent struct {
	UserID   uuid.UUID         `json:"user_id"`
	SentAt   time.Time         `json:"sent_at"`
	Sessions []ReminderSession `json:"sessions"`
}

type ReminderSession struct {
	ID        uuid.UUID  `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// DispatchFailure is the body returned when an invocation aborts.
type DispatchFailure struct {
	Error string `json:"error"`
}
