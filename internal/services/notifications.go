package services

import (
	"context"
	"log"
	"sync"
	"time"

	"studyblocks-backend/internal/models"
)

const (
	defaultSchedulerInterval = time.Minute
	defaultInvocationTimeout = 50 * time.Second
)

// ReminderRunner is one dispatch invocation.
type ReminderRunner interface {
	Run(ctx context.Context) (*models.DispatchSummary, error)
}

// ReminderScheduler triggers the dispatcher in-process on a fixed interval,
// for deployments without an external cron hitting the trigger endpoint.
type ReminderScheduler struct {
	runner   ReminderRunner
	interval time.Duration
	timeout  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewReminderScheduler(runner ReminderRunner, interval, timeout time.Duration) *ReminderScheduler {
	if interval <= 0 {
		interval = defaultSchedulerInterval
	}
	if timeout <= 0 {
		timeout = defaultInvocationTimeout
	}
	return &ReminderScheduler{
		runner:   runner,
		interval: interval,
		timeout:  timeout,
		stopChan: make(chan struct{}),
	}
}

func (s *ReminderScheduler) Start() {
	if s.runner == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()

	log.Printf("Reminder scheduler started (every %s)", s.interval)
}

// Stop is safe to call more than once. It waits for an in-flight run.
func (s *ReminderScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func (s *ReminderScheduler) loop() {
	// Run on startup as well as by interval.
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *ReminderScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Cancel the run early on shutdown.
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, err := s.runner.Run(ctx)
	if err != nil {
		log.Printf("study reminders: scheduled run failed: %v", err)
		return
	}
	log.Printf("study reminders: scheduled run: %s", summary.Message)
}
