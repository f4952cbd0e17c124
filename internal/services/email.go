package services

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"

	"studyblocks-backend/internal/models"
)

// Mailer delivers one HTML message. A nil error means the provider accepted it.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type MailerFunc func(ctx context.Context, to, subject, htmlBody string) error

func (f MailerFunc) Send(ctx context.Context, to, subject, htmlBody string) error {
	return f(ctx, to, subject, htmlBody)
}

type SMTPMailer struct {
	host    string
	port    string
	user    string
	pass    string
	from    string
	devMode bool
}

func NewSMTPMailer(host, port, user, pass, from string) *SMTPMailer {
	devMode := host == "" || user == ""
	if devMode {
		log.Println("⚠ Email service running in DEV MODE (logging to console)")
	}
	return &SMTPMailer{
		host:    host,
		port:    port,
		user:    user,
		pass:    pass,
		from:    from,
		devMode: devMode,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.devMode {
		log.Printf("📧 [DEV EMAIL] To: %s | Subject: %s", to, subject)
		log.Printf("📧 Body:\n%s", htmlBody)
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Date: %s", time.Now().UTC().Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := smtp.SendMail(addr, auth, envelopeAddress(s.from), []string{to}, []byte(message)); err != nil {
		return &DeliveryError{Provider: "smtp", Err: fmt.Errorf("failed to send email to %s: %w", to, err)}
	}

	log.Printf("📧 Email sent to %s: %s", to, subject)
	return nil
}

// envelopeAddress strips a display name: "Study Reminder <noreply@x>" -> "noreply@x".
func envelopeAddress(from string) string {
	start := strings.LastIndex(from, "<")
	end := strings.LastIndex(from, ">")
	if start >= 0 && end > start {
		return from[start+1 : end]
	}
	return strings.TrimSpace(from)
}

type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type ResendMailer struct {
	emails resendEmails
	from   string
}

func NewResendMailer(apiKey, from string) *ResendMailer {
	client := resend.NewClient(apiKey)
	return &ResendMailer{emails: client.Emails, from: from}
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sent, err := m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	})
	if err != nil {
		return &DeliveryError{Provider: "resend", Err: err}
	}

	log.Printf("📧 Email sent to %s via Resend (id %s): %s", to, sent.Id, subject)
	return nil
}

const reminderTimeLayout = "Jan 2, 2006 3:04 PM MST"

// ComposeReminderEmail renders one message covering every session claimed for
// a user in this invocation, in claim order.
func ComposeReminderEmail(contact *models.UserContact, sessions []models.StudySession, leadTime time.Duration, frontendURL string) (subject, body string) {
	plural := len(sessions) > 1
	minutes := int(leadTime.Round(time.Minute) / time.Minute)

	noun, verb := "session", "starts"
	if plural {
		noun, verb = "sessions", "start"
	}
	subject = fmt.Sprintf("Reminder: Your study %s %s in %d minutes", noun, verb, minutes)

	var list strings.Builder
	for _, s := range sessions {
		list.WriteString(`
        <div style="background: #f8f9fa; padding: 15px; margin: 10px 0; border-radius: 8px; border-left: 4px solid #6366f1;">
          <div style="font-weight: bold; color: #333;">📚 `)
		list.WriteString(html.EscapeString(s.StartTime.UTC().Format(reminderTimeLayout)))
		list.WriteString(`</div>`)
		if s.EndTime != nil {
			list.WriteString(`
          <div style="color: #666; font-size: 14px; margin-top: 5px;">Until `)
			list.WriteString(html.EscapeString(s.EndTime.UTC().Format(reminderTimeLayout)))
			list.WriteString(`</div>`)
		}
		list.WriteString(`
        </div>`)
	}

	blocks, heading := "block", "Session"
	if plural {
		blocks, heading = "blocks", "Sessions"
	}

	body = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Study Session Reminder</title></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; background-color: #f8fafc;">
  <div style="max-width: 600px; margin: 40px auto; background: white; border-radius: 12px; box-shadow: 0 4px 24px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="background: linear-gradient(135deg, #6366f1 0%%, #8b5cf6 100%%); padding: 32px; text-align: center;">
      <h1 style="color: white; margin: 0; font-size: 24px; font-weight: 700;">🔔 Study Session Reminder</h1>
      <p style="color: rgba(255,255,255,0.85); margin: 8px 0 0; font-size: 14px;">Your study %s %s in %d minutes!</p>
    </div>
    <div style="padding: 32px;">
      <p style="color: #1e293b; font-size: 14px;">Hi %s,</p>
      <p style="color: #64748b; font-size: 14px; line-height: 1.6;">
        This is a friendly reminder that your study %s will begin in approximately <strong>%d minutes</strong>.
      </p>
      <h3 style="color: #1e293b; margin: 24px 0 8px;">Your Upcoming %s:</h3>%s
      <div style="background: #eef2ff; padding: 20px; border-radius: 8px; margin: 24px 0;">
        <h4 style="margin: 0 0 10px; color: #4338ca;">💡 Tips for Your Study Session:</h4>
        <ul style="margin: 0; padding-left: 20px; color: #475569; font-size: 14px;">
          <li>Find a quiet, comfortable space</li>
          <li>Put your phone in silent mode</li>
          <li>Have water and any needed materials ready</li>
        </ul>
      </div>
      <p style="color: #94a3b8; font-size: 12px; margin: 24px 0 0; text-align: center;">
        This is an automated reminder because you scheduled a study block that starts soon.<br>
        <a href="%s" style="color: #6366f1;">Manage your sessions</a>
      </p>
    </div>
  </div>
</body>
</html>`,
		blocks, verb, minutes,
		html.EscapeString(contact.Name()),
		noun, minutes,
		heading, list.String(),
		html.EscapeString(frontendURL),
	)

	return subject, body
}
