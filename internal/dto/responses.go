package dto

import (
	"github.com/prperemyshlev/gamelib-auth/internal/domain"
)

// Response is the envelope of every successful response
type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError names a request field that failed validation and the rule it broke
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// AccountData wraps an account
type AccountData struct {
	User *domain.Account `json:"user"`
}

// OTPData is returned by flows that issue an OTP. OTP is only set when
// the server runs with OTP exposure enabled. ExpiresIn is in seconds.
type OTPData struct {
	User      *domain.Account `json:"user"`
	OTP       string          `json:"otp,omitempty"`
	ExpiresIn int             `json:"otpExpiresIn"`
}

// SessionData is returned by flows that open a session
type SessionData struct {
	User      *domain.Account  `json:"user"`
	Tokens    domain.TokenPair `json:"tokens"`
	ExpiresIn int              `json:"expiresIn"`
}

// ResetTokenData is returned when a password-reset OTP is verified
type ResetTokenData struct {
	User       *domain.Account `json:"user"`
	ResetToken string          `json:"resetToken"`
}

// EmailReplacementData is returned when an email change is confirmed
type EmailReplacementData struct {
	User          *domain.Account `json:"user"`
	PreviousEmail string          `json:"previousEmail"`
}
