package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studyblocks-backend/internal/handlers"
	"studyblocks-backend/internal/middleware"
	"studyblocks-backend/internal/websocket"
)

const ReminderTriggerPath = "/functions/v1/send-study-reminders"

// New assembles the HTTP surface. wsHub may be nil, in which case the
// websocket route is not mounted.
func New(
	serviceAuth *middleware.ServiceAuth,
	triggerLimiter *middleware.RateLimiter,
	reminderHandler *handlers.ReminderHandler,
	healthHandler *handlers.HealthHandler,
	wsHub *websocket.Hub,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)

	r.Get("/health", healthHandler.Check)

	// ──── Reminder trigger ────
	r.Route(ReminderTriggerPath, func(r chi.Router) {
		// CORS answers preflight before auth sees it.
		r.Use(middleware.CORS)
		r.Options("/", func(w http.ResponseWriter, r *http.Request) {})

		r.Group(func(r chi.Router) {
			r.Use(triggerLimiter.Middleware)
			r.Use(serviceAuth.Middleware)
			r.Post("/", reminderHandler.Dispatch)
			r.Get("/", reminderHandler.Dispatch)
		})
	})

	// ──── WebSocket ────
	if wsHub != nil {
		r.Get("/api/v1/ws", wsHub.HandleWebSocket)
	}

	return r
}
