package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/dto"
)

// AuthService defines the account authentication and session lifecycle.
// Every failure the caller can act on is a *domain.Error; anything else is
// a collaborator failure.
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*OTPResult, error)
	VerifyRegistration(ctx context.Context, otp string) (*SessionResult, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*SessionResult, error)
	Logout(ctx context.Context, refreshToken string) (*domain.Account, error)
	RefreshToken(ctx context.Context, refreshToken string) (*SessionResult, error)

	ForgotPassword(ctx context.Context, email string) (*OTPResult, error)
	VerifyResetOTP(ctx context.Context, otp string) (*ResetTokenResult, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) (*domain.Account, error)
	UpdatePassword(ctx context.Context, accountID, oldPassword, newPassword string) (*domain.Account, error)

	RequestEmailUpdate(ctx context.Context, accountID, newEmail, password string) (*OTPResult, error)
	ReplaceEmail(ctx context.Context, accountID, otp string) (*EmailReplacement, error)

	RequestAccountDeactivation(ctx context.Context, accountID string) (*OTPResult, error)
	DeactivateAccount(ctx context.Context, accountID, otp string) (*domain.Account, error)
	RequestAccountReactivation(ctx context.Context, email string) (*OTPResult, error)
	ReactivateAccount(ctx context.Context, otp string) (*domain.Account, error)

	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ValidateToken(ctx context.Context, token string) (*domain.TokenClaims, error)
}

// OTPResult is returned by every step that starts an OTP-confirmed flow.
// The OTP must be delivered out of band.
type OTPResult struct {
	Account   *domain.Account
	OTP       string
	ExpiresIn time.Duration
}

// SessionResult carries a freshly issued token pair
type SessionResult struct {
	Account *domain.Account
	Tokens  domain.TokenPair
}

// ResetTokenResult carries the token that authorizes one password reset
type ResetTokenResult struct {
	Account    *domain.Account
	ResetToken string
}

// EmailReplacement is the outcome of a confirmed email change
type EmailReplacement struct {
	Account       *domain.Account
	PreviousEmail string
}
