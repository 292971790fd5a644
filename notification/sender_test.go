package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surajya/models"
)

func TestEmailSender_ShadowModeAndPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewEmailSender(EmailConfig{
		APIKey:        "key-1",
		ShadowAddress: "shadow@example.com",
		FromEmail:     "desk@example.com",
		FromName:      "Desk",
		Endpoint:      srv.URL,
	})
	n := &models.Notification{Recipient: "citizen@example.com", Subject: "hello", Body: "body"}
	require.NoError(t, s.Send(context.Background(), n))

	assert.Equal(t, "shadow@example.com", n.Recipient)
	assert.Equal(t, "hello", got["subject"])
	to := got["personalizations"].([]any)[0].(map[string]any)["to"].([]any)[0].(map[string]any)
	assert.Equal(t, "shadow@example.com", to["email"])
}

func TestEmailSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewEmailSender(EmailConfig{APIKey: "k", Endpoint: srv.URL, RetryDelay: time.Millisecond})
	require.NoError(t, s.Send(context.Background(), &models.Notification{Recipient: "a@example.com"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmailSender_GivesUpOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewEmailSender(EmailConfig{APIKey: "k", Endpoint: srv.URL, RetryDelay: time.Millisecond})
	err := s.Send(context.Background(), &models.Notification{Recipient: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sendgrid status 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmailSender_NoAPIKeyIsNoop(t *testing.T) {
	s := NewEmailSender(EmailConfig{})
	assert.NoError(t, s.Send(context.Background(), &models.Notification{Recipient: "a@example.com"}))
	assert.ErrorIs(t, s.Send(context.Background(), &models.Notification{}), ErrInvalidRecipient)
}

type recordingSender struct {
	sent []*models.Notification
	err  error
}

func (s *recordingSender) Send(ctx context.Context, n *models.Notification) error {
	s.sent = append(s.sent, n)
	return s.err
}
func (s *recordingSender) Channel() models.NotificationChannel   { return models.ChannelLog }
func (s *recordingSender) Validate(n *models.Notification) error { return nil }

func TestOTPMailer_RendersMessage(t *testing.T) {
	rec := &recordingSender{}
	m := NewOTPMailer(rec, 15*time.Minute)

	require.NoError(t, m.SendOTP(context.Background(), "citizen@example.com", "042917", "g-1"))
	require.Len(t, rec.sent, 1)
	n := rec.sent[0]
	assert.Equal(t, "OTP for Grievance Resolution", n.Subject)
	assert.Contains(t, n.Body, "042917")
	assert.Contains(t, n.Body, "15 minutes")
	assert.Equal(t, "g-1", n.GrievanceID)
}

func TestOTPMailer_WrapsFailure(t *testing.T) {
	cause := errors.New("smtp down")
	m := NewOTPMailer(&recordingSender{err: cause}, 15*time.Minute)

	err := m.SendOTP(context.Background(), "citizen@example.com", "123456", "g-1")
	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "g-1", de.GrievanceID)
	assert.ErrorIs(t, err, cause)
}

func TestLogSender(t *testing.T) {
	s := &LogSender{}
	assert.NoError(t, s.Send(context.Background(), &models.Notification{Recipient: "a@example.com"}))
	assert.ErrorIs(t, s.Send(context.Background(), &models.Notification{}), ErrInvalidRecipient)
}
