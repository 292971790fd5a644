package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"surajya/models"
)

// Sender is the interface for notification senders
type Sender interface {
	Send(ctx context.Context, notification *models.Notification) error
	Channel() models.NotificationChannel
	Validate(notification *models.Notification) error
}

// EmailConfig configures EmailSender.
type EmailConfig struct {
	APIKey        string // SendGrid key; empty means no real send
	ShadowAddress string // when set, every mail goes here instead of the recipient
	FromEmail     string
	FromName      string
	Endpoint      string // defaults to the SendGrid v3 mail endpoint
	RetryDelay    time.Duration
	Client        *http.Client
}

// EmailSender sends email through SendGrid. In shadow mode the recipient is
// forced to the shadow address.
type EmailSender struct {
	cfg EmailConfig
}

const sendGridURL = "https://api.sendgrid.com/v3/mail/send"
const maxSendGridRetries = 3

// NewEmailSender creates an email sender
func NewEmailSender(cfg EmailConfig) *EmailSender {
	if cfg.Endpoint == "" {
		cfg.Endpoint = sendGridURL
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	return &EmailSender{cfg: cfg}
}

// Channel returns the email channel type
func (s *EmailSender) Channel() models.NotificationChannel {
	return models.ChannelEmail
}

// Validate validates email notification
func (s *EmailSender) Validate(notification *models.Notification) error {
	if notification.Recipient == "" {
		return ErrInvalidRecipient
	}
	return nil
}

// Send sends an email. In shadow mode, recipient is forced to shadow address.
func (s *EmailSender) Send(ctx context.Context, notification *models.Notification) error {
	if s.cfg.ShadowAddress != "" {
		notification.Recipient = s.cfg.ShadowAddress
	}
	if err := s.Validate(notification); err != nil {
		return err
	}
	if s.cfg.APIKey == "" {
		log.Printf("[OTP] SendGrid not configured; email to %s for grievance %s not sent", notification.Recipient, notification.GrievanceID)
		return nil
	}
	return s.sendViaSendGrid(ctx, notification)
}

func (s *EmailSender) sendViaSendGrid(ctx context.Context, n *models.Notification) error {
	body := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]any{{"email": n.Recipient}}},
		},
		"from":    map[string]string{"email": s.cfg.FromEmail, "name": s.cfg.FromName},
		"subject": n.Subject,
		"content": []map[string]string{{"type": "text/plain", "value": n.Body}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode sendgrid payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxSendGridRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.cfg.RetryDelay):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build sendgrid request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.cfg.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("sendgrid status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return &NotificationError{Message: "max retries exceeded", Err: lastErr}
}

// LogSender writes notifications to the log instead of delivering them. Used
// in development when no mail provider is configured.
type LogSender struct {
	// ShowBody logs the message body, which contains the OTP.
	ShowBody bool
}

// Channel returns the log channel type
func (s *LogSender) Channel() models.NotificationChannel {
	return models.ChannelLog
}

// Validate validates the notification
func (s *LogSender) Validate(notification *models.Notification) error {
	if notification.Recipient == "" {
		return ErrInvalidRecipient
	}
	return nil
}

// Send logs the notification.
func (s *LogSender) Send(ctx context.Context, notification *models.Notification) error {
	if err := s.Validate(notification); err != nil {
		return err
	}
	if s.ShowBody {
		log.Printf("[OTP] to=%s subject=%q body=%q", notification.Recipient, notification.Subject, notification.Body)
	} else {
		log.Printf("[OTP] to=%s subject=%q (body hidden)", notification.Recipient, notification.Subject)
	}
	return nil
}

// Errors
var (
	ErrInvalidRecipient = &NotificationError{Message: "invalid recipient"}
)

// NotificationError represents a notification error
type NotificationError struct {
	Message string
	Err     error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
