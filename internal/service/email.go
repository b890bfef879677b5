package service

import (
	"context"
	"errors"
	"strings"

	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/repository"
	"github.com/prperemyshlev/gamelib-auth/internal/secrets"
	"github.com/prperemyshlev/gamelib-auth/internal/utils"
)

const msgNoPendingEmail = "No pending email update found"

// pendingEmail is the newEmail record: the address awaiting confirmation
// and the OTP that was sent to it.
type pendingEmail struct {
	OTP   string
	Email string
}

func (p pendingEmail) encode() string { return p.OTP + "|" + p.Email }

func decodePendingEmail(value string) (pendingEmail, bool) {
	otp, email, ok := strings.Cut(value, "|")
	if !ok || otp == "" || email == "" {
		return pendingEmail{}, false
	}
	return pendingEmail{OTP: otp, Email: email}, true
}

// RequestEmailUpdate stores the pending address and issues the OTP that
// confirms it. The OTP is delivered to the new address. A new request
// revokes the OTP of any earlier one.
func (s *authService) RequestEmailUpdate(ctx context.Context, accountID, newEmail, password string) (*OTPResult, error) {
	newEmail = utils.SanitizeEmail(newEmail)
	if newEmail == "" || password == "" {
		return nil, domain.BadRequest(msgRequiredFields)
	}

	if !utils.ValidateEmail(newEmail) {
		return nil, domain.BadRequest(msgInvalidEmail)
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	if utils.SanitizeEmail(account.Email) == newEmail {
		return nil, domain.BadRequest("New email must be different from the current email")
	}

	if err := s.ensureEmailFree(ctx, newEmail); err != nil {
		return nil, err
	}

	if err := s.verifyPassword(account, password, "Password is incorrect"); err != nil {
		return nil, err
	}

	purpose := secrets.PurposeEmailUpdateOTP
	if err := s.acquireCooldown(ctx, purpose, account.ID); err != nil {
		return nil, err
	}

	if err := s.discardPendingEmail(ctx, account.ID); err != nil {
		return nil, s.releaseCooldown(ctx, purpose, account.ID, err)
	}

	otp, err := s.issueOTP(ctx, purpose, account.ID)
	if err != nil {
		return nil, s.releaseCooldown(ctx, purpose, account.ID, err)
	}

	pending := pendingEmail{OTP: otp, Email: newEmail}
	if err := s.newEmails.Put(ctx, account.ID, pending.encode()); err != nil {
		if delErr := s.secrets.Keyspace(purpose).Delete(ctx, otp); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return nil, s.releaseCooldown(ctx, purpose, account.ID, err)
	}

	return s.otpResult(account, purpose, otp), nil
}

// discardPendingEmail revokes the OTP of an earlier email change request
func (s *authService) discardPendingEmail(ctx context.Context, accountID string) error {
	value, err := s.newEmails.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil
		}
		return err
	}

	pending, ok := decodePendingEmail(value)
	if !ok {
		return nil
	}

	return s.secrets.Keyspace(secrets.PurposeEmailUpdateOTP).Delete(ctx, pending.OTP)
}

// ReplaceEmail confirms the caller's pending email change. The OTP must be
// the one sent to the pending address.
func (s *authService) ReplaceEmail(ctx context.Context, accountID, otp string) (*EmailReplacement, error) {
	otp = strings.TrimSpace(otp)

	account, err := s.consumeOwnOTP(ctx, secrets.PurposeEmailUpdateOTP, accountID, otp)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	value, err := s.newEmails.Get(ctx, account.ID)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, domain.NotFound(msgNoPendingEmail)
		}
		return nil, err
	}

	pending, ok := decodePendingEmail(value)
	if !ok || pending.OTP != otp {
		return nil, domain.NotFound(msgNoPendingEmail)
	}

	if _, err := s.newEmails.Consume(ctx, account.ID); err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, domain.NotFound(msgNoPendingEmail)
		}
		return nil, err
	}

	previous := account.Email
	account.Email = pending.Email

	if err := s.accounts.Save(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, domain.BadRequest(msgEmailTaken)
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.NotFound(msgUserNotFound)
		}
		return nil, err
	}

	return &EmailReplacement{Account: account, PreviousEmail: previous}, nil
}
