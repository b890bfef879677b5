// Package notify delivers one-time passcodes to account owners.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Purpose names the flow an OTP confirms
type Purpose string

const (
	PurposeRegistration  Purpose = "registration"
	PurposePasswordReset Purpose = "password_reset"
	PurposeEmailUpdate   Purpose = "email_update"
	PurposeDeactivation  Purpose = "deactivation"
	PurposeReactivation  Purpose = "reactivation"
)

// OTPSender delivers an OTP to an address
type OTPSender interface {
	SendOTP(ctx context.Context, to string, purpose Purpose, otp string) error
}

// LogSender writes OTPs to the log instead of sending mail.
// It is meant for development environments.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that logs every OTP at info level
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("notify")}
}

func (s *LogSender) SendOTP(ctx context.Context, to string, purpose Purpose, otp string) error {
	s.logger.Info("OTP issued",
		zap.String("to", to),
		zap.String("purpose", string(purpose)),
		zap.String("otp", otp),
	)
	return nil
}
