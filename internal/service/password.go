package service

import (
	"context"
	"errors"
	"strings"

	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/secrets"
	"github.com/prperemyshlev/gamelib-auth/internal/utils"
)

const msgInvalidResetToken = "Invalid or expired reset token"

// ForgotPassword issues a password-reset OTP for an active account
func (s *authService) ForgotPassword(ctx context.Context, email string) (*OTPResult, error) {
	email = utils.SanitizeEmail(email)
	if email == "" {
		return nil, domain.BadRequest("Please provide an email address")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	return s.issueCooledOTP(ctx, secrets.PurposePasswordResetOTP, account)
}

// VerifyResetOTP exchanges a password-reset OTP for a reset token
func (s *authService) VerifyResetOTP(ctx context.Context, otp string) (*ResetTokenResult, error) {
	account, err := s.consumeOTP(ctx, secrets.PurposePasswordResetOTP, otp)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	resetToken, err := s.issuer.IssueResetToken(account.ID)
	if err != nil {
		return nil, err
	}

	if err := s.resetTokens.Put(ctx, resetToken, account.ID); err != nil {
		return nil, err
	}

	return &ResetTokenResult{Account: account, ResetToken: resetToken}, nil
}

// ResetPassword sets a new password using a reset token. A password that
// fails the policy leaves the token usable.
func (s *authService) ResetPassword(ctx context.Context, resetToken, newPassword string) (*domain.Account, error) {
	resetToken = strings.TrimSpace(resetToken)
	if resetToken == "" || newPassword == "" {
		return nil, domain.BadRequest(msgRequiredFields)
	}

	passwordHash, err := s.hashNewPassword(newPassword)
	if err != nil {
		return nil, err
	}

	accountID, err := s.resetTokens.Consume(ctx, resetToken)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, domain.NotFound(msgInvalidResetToken)
		}
		return nil, err
	}

	claims, err := s.issuer.Verify(resetToken, domain.KeyClassReset)
	if err != nil || claims.AccountID != accountID {
		return nil, domain.NotFound(msgInvalidResetToken)
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	return s.updateAccount(ctx, account.ID, domain.AccountUpdate{PasswordHash: &passwordHash})
}

// UpdatePassword changes the password of an authenticated account
func (s *authService) UpdatePassword(ctx context.Context, accountID, oldPassword, newPassword string) (*domain.Account, error) {
	if oldPassword == "" || newPassword == "" {
		return nil, domain.BadRequest(msgRequiredFields)
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	if err := s.verifyPassword(account, oldPassword, "Old password is incorrect"); err != nil {
		return nil, err
	}

	passwordHash, err := s.hashNewPassword(newPassword)
	if err != nil {
		return nil, err
	}

	return s.updateAccount(ctx, account.ID, domain.AccountUpdate{PasswordHash: &passwordHash})
}
