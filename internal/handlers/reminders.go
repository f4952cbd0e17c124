package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"studyblocks-backend/internal/models"
	"studyblocks-backend/internal/services"
)

type ReminderHandler struct {
	dispatcher services.ReminderRunner
	timeout    time.Duration
}

func NewReminderHandler(dispatcher services.ReminderRunner, timeout time.Duration) *ReminderHandler {
	return &ReminderHandler{dispatcher: dispatcher, timeout: timeout}
}

// Dispatch runs one reminder invocation. A caller hanging up does not abort
// the run; only the invocation timeout does.
func (h *ReminderHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	summary, err := h.dispatcher.Run(ctx)
	if err != nil {
		log.Printf("study reminders: invocation failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.DispatchFailure{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
