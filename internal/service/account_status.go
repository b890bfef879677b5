package service

import (
	"context"

	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/secrets"
	"github.com/prperemyshlev/gamelib-auth/internal/utils"
)

// RequestAccountDeactivation issues the OTP that confirms deactivation
func (s *authService) RequestAccountDeactivation(ctx context.Context, accountID string) (*OTPResult, error) {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	return s.issueCooledOTP(ctx, secrets.PurposeDeactivationOTP, account)
}

// DeactivateAccount deactivates the caller's account. The OTP must have
// been issued to that account.
func (s *authService) DeactivateAccount(ctx context.Context, accountID, otp string) (*domain.Account, error) {
	account, err := s.consumeOwnOTP(ctx, secrets.PurposeDeactivationOTP, accountID, otp)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	deactivated := domain.AccountStatusDeactivated
	now := s.now().UTC()

	return s.updateAccount(ctx, account.ID, domain.AccountUpdate{
		Status:              &deactivated,
		SetDeactivationDate: true,
		DeactivationDate:    &now,
	})
}

// RequestAccountReactivation issues the OTP that reactivates a deactivated account
func (s *authService) RequestAccountReactivation(ctx context.Context, email string) (*OTPResult, error) {
	email = utils.SanitizeEmail(email)
	if email == "" {
		return nil, domain.BadRequest("Please provide an email address")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := requireDeactivated(account); err != nil {
		return nil, err
	}

	return s.issueCooledOTP(ctx, secrets.PurposeReactivationOTP, account)
}

// ReactivateAccount reactivates the account an OTP was issued for
func (s *authService) ReactivateAccount(ctx context.Context, otp string) (*domain.Account, error) {
	account, err := s.consumeOTP(ctx, secrets.PurposeReactivationOTP, otp)
	if err != nil {
		return nil, err
	}

	if err := requireDeactivated(account); err != nil {
		return nil, err
	}

	active := domain.AccountStatusActive

	return s.updateAccount(ctx, account.ID, domain.AccountUpdate{
		Status:              &active,
		SetDeactivationDate: true,
	})
}

func requireDeactivated(account *domain.Account) error {
	switch account.Status {
	case domain.AccountStatusDeactivated:
		return nil
	case domain.AccountStatusActive:
		return domain.BadRequest("Account is already active")
	default:
		return domain.BadRequest(msgPendingAccount)
	}
}
