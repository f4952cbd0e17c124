package models

import "github.com/google/uuid"

// WebSocket message envelope
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// API Error response
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

const WSTypeStudyReminder = "study_reminder"

// ReminderChannel is the Redis pub/sub channel carrying a user's live reminders.
func ReminderChannel(userID uuid.UUID) string {
	return "user_reminders:" + userID.String()
}
