package notification

import (
	"context"
	"fmt"
	"time"

	"surajya/models"
)

// OTPSender delivers a resolution code to a citizen.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code, grievanceID string) error
}

// DeliveryError is returned when an OTP could not be delivered. The issued
// code stays valid; the caller may retry or issue a new one.
type DeliveryError struct {
	Recipient   string
	GrievanceID string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver OTP for grievance %s: %v", e.GrievanceID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

const otpSubject = "OTP for Grievance Resolution"

// OTPMailer renders the OTP message and hands it to a Sender.
type OTPMailer struct {
	sender Sender
	ttl    time.Duration
}

// NewOTPMailer creates an OTPSender over sender. ttl is quoted in the message body.
func NewOTPMailer(sender Sender, ttl time.Duration) *OTPMailer {
	return &OTPMailer{sender: sender, ttl: ttl}
}

// SendOTP sends the code. Any failure is a *DeliveryError.
func (m *OTPMailer) SendOTP(ctx context.Context, email, code, grievanceID string) error {
	n := &models.Notification{
		Channel:     m.sender.Channel(),
		Recipient:   email,
		Subject:     otpSubject,
		Body:        otpBody(code, grievanceID, m.ttl),
		GrievanceID: grievanceID,
	}
	if err := m.sender.Send(ctx, n); err != nil {
		return &DeliveryError{Recipient: email, GrievanceID: grievanceID, Err: err}
	}
	return nil
}

func otpBody(code, grievanceID string, ttl time.Duration) string {
	return fmt.Sprintf(
		"Your OTP for resolving grievance %s is: %s\n\n"+
			"An official is ready to mark your grievance as resolved. Share this code with them only if the issue is fixed.\n"+
			"This OTP will expire in %d minutes.",
		grievanceID, code, int(ttl.Minutes()),
	)
}
