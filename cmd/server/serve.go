package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"studyblocks-backend/internal/handlers"
	"studyblocks-backend/internal/middleware"
	"studyblocks-backend/internal/router"
	"studyblocks-backend/internal/services"
	"studyblocks-backend/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger endpoint (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Println("🚀 Starting study reminder service...")

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	// ──── Live push ────
	var (
		wsHub     *websocket.Hub
		publisher services.ReminderPublisher
	)
	if cfg.AuthEnabled() {
		if a.redis != nil {
			wsHub = websocket.NewHub(a.redis.PubSub, cfg.JWTSecret)
			publisher = services.NewRedisReminderPublisher(a.redis.Cache)
		} else {
			wsHub = websocket.NewHub(nil, cfg.JWTSecret)
			publisher = wsHub
		}
		defer wsHub.Close()
		log.Println("✓ WebSocket hub started")
	} else {
		log.Println("⚠ JWT_SECRET not set: trigger endpoint is unauthenticated and live push is disabled")
	}

	dispatcher := a.newDispatcher(publisher)

	// ──── Scheduler ────
	var scheduler *services.ReminderScheduler
	if cfg.SchedulerEnabled {
		scheduler = services.NewReminderScheduler(dispatcher, cfg.SchedulerInterval, cfg.InvocationTimeout)
		scheduler.Start()
		defer scheduler.Stop()
		log.Println("✓ Reminder scheduler started")
	}

	// ──── HTTP Server ────
	triggerLimiter := middleware.NewRateLimiter(cfg.TriggerRateLimitPerMinute, time.Minute)
	defer triggerLimiter.Stop()

	r := router.New(
		middleware.NewServiceAuth(cfg.JWTSecret),
		triggerLimiter,
		handlers.NewReminderHandler(dispatcher, cfg.InvocationTimeout),
		handlers.NewHealthHandler(a.ping),
		wsHub,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// An invocation may run up to InvocationTimeout before responding.
		WriteTimeout: cfg.InvocationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		if scheduler != nil {
			scheduler.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("✗ HTTP shutdown: %v", err)
		}
	}()

	log.Printf("✓ Study reminder service ready on http://localhost:%s", cfg.Port)
	log.Printf("  Trigger: http://localhost:%s%s", cfg.Port, router.ReminderTriggerPath)
	if wsHub != nil {
		log.Printf("  WS:      ws://localhost:%s/api/v1/ws", cfg.Port)
	}

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	<-shutdownDone
	return nil
}
