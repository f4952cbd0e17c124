package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"studyblocks-backend/internal/models"
)

const (
	defaultReminderLeadTime  = 10 * time.Minute
	defaultReminderWindow    = time.Minute
	defaultReminderBatchSize = 500
	revertTimeout            = 10 * time.Second
)

// ReminderStore is the slice of the session store the dispatcher needs.
// ClaimReminder must be a single conditional write: it returns (nil, nil)
// when reminder_sent was no longer false.
type ReminderStore interface {
	ListDueForReminder(ctx context.Context, windowStart, windowEnd time.Time, limit int) ([]models.StudySession, error)
	ClaimReminder(ctx context.Context, id uuid.UUID, claimedAt time.Time) (*models.StudySession, error)
	RevertReminders(ctx context.Context, ids []uuid.UUID, claimedAt time.Time) (int64, error)
}

// ReminderPublisher pushes a delivered reminder to live clients.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, event models.ReminderEvent) error
}

type ReminderOptions struct {
	LeadTime    time.Duration
	Window      time.Duration
	BatchSize   int
	FrontendURL string
}

type ReminderDispatcher struct {
	store     ReminderStore
	contacts  ContactResolver
	mailer    Mailer
	publisher ReminderPublisher
	opts      ReminderOptions
	now       func() time.Time
}

func NewReminderDispatcher(store ReminderStore, contacts ContactResolver, mailer Mailer, publisher ReminderPublisher, opts ReminderOptions) *ReminderDispatcher {
	if opts.LeadTime <= 0 {
		opts.LeadTime = defaultReminderLeadTime
	}
	if opts.Window <= 0 {
		opts.Window = defaultReminderWindow
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultReminderBatchSize
	}
	return &ReminderDispatcher{
		store:     store,
		contacts:  contacts,
		mailer:    mailer,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// ReminderWindow returns the half-open interval [now+lead, now+lead+width).
func ReminderWindow(now time.Time, lead, width time.Duration) (time.Time, time.Time) {
	start := now.Add(lead)
	return start, start.Add(width)
}

// userBatch is the set of sessions claimed for one user, in claim order.
type userBatch struct {
	userID   uuid.UUID
	sessions []models.StudySession
}

func (b *userBatch) ids() []uuid.UUID {
	ids := make([]uuid.UUID, len(b.sessions))
	for i, s := range b.sessions {
		ids[i] = s.ID
	}
	return ids
}

// Run performs one dispatch invocation. Only a failure to load candidates is
// returned as an error; per-user failures are rolled back and counted.
func (d *ReminderDispatcher) Run(ctx context.Context) (*models.DispatchSummary, error) {
	// Storage keeps microseconds; the revert guard compares this value exactly.
	now := d.now().UTC().Truncate(time.Microsecond)
	windowStart, windowEnd := ReminderWindow(now, d.opts.LeadTime, d.opts.Window)

	log.Printf("study reminders: looking for sessions between %s and %s",
		windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339))

	candidates, err := d.store.ListDueForReminder(ctx, windowStart, windowEnd, d.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate sessions: %w", err)
	}

	if len(candidates) == 0 {
		log.Printf("study reminders: no sessions need reminders")
		return &models.DispatchSummary{Message: "No sessions to remind"}, nil
	}

	log.Printf("study reminders: found %d candidate sessions", len(candidates))

	batches := d.claimAll(ctx, candidates, now)
	if len(batches) == 0 {
		log.Printf("study reminders: no sessions were successfully claimed")
		return &models.DispatchSummary{
			Message:           "No sessions were claimed",
			SessionsProcessed: len(candidates),
		}, nil
	}

	log.Printf("study reminders: notifying %d users", len(batches))

	summary := &models.DispatchSummary{SessionsProcessed: len(candidates)}
	for i := range batches {
		batch := &batches[i]
		if err := d.notifyUser(ctx, batch); err != nil {
			log.Printf("study reminders: failed to notify user %s: %v", batch.userID, err)
			d.revert(ctx, batch, now)
			summary.EmailsFailed++
			continue
		}

		log.Printf("study reminders: sent reminder to user %s for %d session(s)", batch.userID, len(batch.sessions))
		summary.EmailsSent++
		d.publish(ctx, batch, now)
	}

	summary.Message = fmt.Sprintf("Processed %d sessions, sent %d emails, %d failed",
		summary.SessionsProcessed, summary.EmailsSent, summary.EmailsFailed)
	log.Printf("study reminders: run completed: %s", summary.Message)

	return summary, nil
}

// claimAll claims candidates one by one and groups the winners by user.
func (d *ReminderDispatcher) claimAll(ctx context.Context, candidates []models.StudySession, claimedAt time.Time) []userBatch {
	var batches []userBatch
	index := make(map[uuid.UUID]int)

	for _, candidate := range candidates {
		claimed, err := d.store.ClaimReminder(ctx, candidate.ID, claimedAt)
		if err != nil {
			log.Printf("study reminders: failed to claim session %s: %v", candidate.ID, err)
			continue
		}
		if claimed == nil {
			log.Printf("study reminders: session %s was already claimed by another run", candidate.ID)
			continue
		}

		i, ok := index[claimed.UserID]
		if !ok {
			i = len(batches)
			index[claimed.UserID] = i
			batches = append(batches, userBatch{userID: claimed.UserID})
		}
		batches[i].sessions = append(batches[i].sessions, *claimed)
	}

	return batches
}

// notifyUser resolves the contact and sends one email. A panic anywhere in
// here is reported as an error so the caller rolls the claims back.
func (d *ReminderDispatcher) notifyUser(ctx context.Context, batch *userBatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while notifying user %s: %v", batch.userID, r)
		}
	}()

	contact, err := d.contacts.GetUserContact(ctx, batch.userID)
	if err != nil {
		return fmt.Errorf("failed to resolve contact: %w", err)
	}

	subject, body := ComposeReminderEmail(contact, batch.sessions, d.opts.LeadTime, d.opts.FrontendURL)
	if err := d.mailer.Send(ctx, contact.Email, subject, body); err != nil {
		return fmt.Errorf("failed to send reminder to %s: %w", contact.Email, err)
	}
	return nil
}

// revert runs on a context detached from the invocation deadline: a timed-out
// send must still be able to release its claims.
func (d *ReminderDispatcher) revert(ctx context.Context, batch *userBatch, claimedAt time.Time) {
	revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revertTimeout)
	defer cancel()

	ids := batch.ids()
	n, err := d.store.RevertReminders(revertCtx, ids, claimedAt)
	if err != nil {
		// TODO: surface sessions stuck in the claimed state to a reconciliation sweep instead of only logging.
		log.Printf("study reminders: failed to revert %d claims for user %s: %v", len(ids), batch.userID, err)
		return
	}
	log.Printf("study reminders: reverted %d of %d claims for user %s", n, len(ids), batch.userID)
}

// publish is best effort. The email has already gone out, so a failure or
// panic here is logged and the claims stay in place.
func (d *ReminderDispatcher) publish(ctx context.Context, batch *userBatch, sentAt time.Time) {
	if d.publisher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("study reminders: panic while publishing live reminder for user %s: %v", batch.userID, r)
		}
	}()

	event := models.ReminderEvent{
		UserID:   batch.userID,
		SentAt:   sentAt,
		Sessions: make([]models.ReminderSession, len(batch.sessions)),
	}
	for i, s := range batch.sessions {
		event.Sessions[i] = models.ReminderSession{ID: s.ID, StartTime: s.StartTime, EndTime: s.EndTime}
	}

	if err := d.publisher.PublishReminder(ctx, event); err != nil {
		log.Printf("study reminders: failed to publish live reminder for user %s: %v", batch.userID, err)
	}
}
