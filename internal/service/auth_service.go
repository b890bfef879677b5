package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/dto"
	"github.com/prperemyshlev/gamelib-auth/internal/repository"
	"github.com/prperemyshlev/gamelib-auth/internal/secrets"
	"github.com/prperemyshlev/gamelib-auth/internal/token"
	"github.com/prperemyshlev/gamelib-auth/internal/utils"
)

// maxOTPAttempts bounds regeneration when a fresh OTP collides with a live one
const maxOTPAttempts = 5

const (
	msgRequiredFields     = "Please provide all required fields"
	msgInvalidEmail       = "Please provide a valid email address"
	msgEmailTaken         = "A user with this email already exists"
	msgUserNotFound       = "User not found"
	msgInvalidOTP         = "Invalid or expired OTP"
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidRefresh     = "Invalid or expired refresh token"
	msgPendingAccount     = "Please complete account verification first"
	msgDeactivatedAccount = "Account is deactivated. Please reactivate your account first"
	msgWeakPassword       = "Password must be at least 8 characters long, include an uppercase letter, a lowercase letter, a number, and a special character."
)

// authService implements AuthService interface
type authService struct {
	accounts   repository.AccountRepository
	secrets    *secrets.Store
	issuer     *token.Issuer
	cooldown   *secrets.Cooldown
	bcryptCost int
	now        func() time.Time

	refreshTokens *secrets.Keyspace
	resetTokens   *secrets.Keyspace
	newEmails     *secrets.Keyspace
}

// NewAuthService creates a new auth service. A nil cooldown disables
// the wait between repeated OTP requests.
func NewAuthService(
	accounts repository.AccountRepository,
	store *secrets.Store,
	issuer *token.Issuer,
	cooldown *secrets.Cooldown,
	bcryptCost int,
) AuthService {
	return &authService{
		accounts:      accounts,
		secrets:       store,
		issuer:        issuer,
		cooldown:      cooldown,
		bcryptCost:    bcryptCost,
		now:           time.Now,
		refreshTokens: store.Keyspace(secrets.PurposeRefreshToken),
		resetTokens:   store.Keyspace(secrets.PurposeResetToken),
		newEmails:     store.Keyspace(secrets.PurposeNewEmail),
	}
}

// Register creates a pending account and issues its verification OTP
func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*OTPResult, error) {
	username := strings.TrimSpace(req.Username)
	email := utils.SanitizeEmail(req.Email)

	if username == "" || email == "" || req.Password == "" {
		return nil, domain.BadRequest(msgRequiredFields)
	}

	if !utils.ValidateEmail(email) {
		return nil, domain.BadRequest(msgInvalidEmail)
	}

	if err := s.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	passwordHash, err := s.hashNewPassword(req.Password)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		Status:       domain.AccountStatusPending,
		Username:     username,
		Email:        email,
		PasswordHash: &passwordHash,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, domain.BadRequest(msgEmailTaken)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	otp, err := s.issueOTP(ctx, secrets.PurposeRegistrationOTP, account.ID)
	if err != nil {
		return nil, err
	}

	return s.otpResult(account, secrets.PurposeRegistrationOTP, otp), nil
}

// VerifyRegistration activates a pending account and opens its first session
func (s *authService) VerifyRegistration(ctx context.Context, otp string) (*SessionResult, error) {
	account, err := s.consumeOTP(ctx, secrets.PurposeRegistrationOTP, otp)
	if err != nil {
		return nil, err
	}

	switch account.Status {
	case domain.AccountStatusPending:
	case domain.AccountStatusActive:
		return nil, domain.BadRequest("Account is already verified")
	default:
		return nil, domain.BadRequest(msgDeactivatedAccount)
	}

	active := domain.AccountStatusActive
	account, err = s.updateAccount(ctx, account.ID, domain.AccountUpdate{Status: &active})
	if err != nil {
		return nil, err
	}

	return s.startSession(ctx, account)
}

// Login authenticates an active account. A refresh token from an earlier
// session, when supplied, is revoked before the new pair is issued.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*SessionResult, error) {
	email := utils.SanitizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, domain.BadRequest("Please provide email and password")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	if err := s.verifyPassword(account, req.Password, msgInvalidCredentials); err != nil {
		return nil, err
	}

	if req.RefreshToken != "" {
		if err := s.refreshTokens.Delete(ctx, req.RefreshToken); err != nil {
			return nil, err
		}
	}

	return s.startSession(ctx, account)
}

// Logout revokes a refresh token. The token is gone even when the
// account turns out to be missing or unverified.
func (s *authService) Logout(ctx context.Context, refreshToken string) (*domain.Account, error) {
	accountID, err := s.refreshTokens.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, domain.Unauthorized(msgInvalidRefresh)
		}
		return nil, err
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.Status == domain.AccountStatusPending {
		return nil, domain.BadRequest(msgPendingAccount)
	}

	return account, nil
}

// RefreshToken rotates a refresh token. The presented token is single-use:
// it is consumed before any other check, so a second call with it fails.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*SessionResult, error) {
	accountID, err := s.refreshTokens.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, domain.Unauthorized(msgInvalidRefresh)
		}
		return nil, err
	}

	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := requireActive(account); err != nil {
		return nil, err
	}

	claims, err := s.issuer.Verify(refreshToken, domain.KeyClassRefresh)
	if err != nil || claims.AccountID != account.ID {
		return nil, domain.Unauthorized(msgInvalidRefresh)
	}

	return s.startSession(ctx, account)
}

// GetAccount returns the account behind an authenticated request
func (s *authService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.loadAccount(ctx, accountID)
}

// ValidateToken validates an access token
func (s *authService) ValidateToken(ctx context.Context, accessToken string) (*domain.TokenClaims, error) {
	claims, err := s.issuer.Verify(accessToken, domain.KeyClassAccess)
	if err != nil {
		return nil, domain.Unauthorized("Not authorized, token failed")
	}
	return claims, nil
}

// startSession issues a token pair and records the refresh token
func (s *authService) startSession(ctx context.Context, account *domain.Account) (*SessionResult, error) {
	pair, err := s.issuer.IssuePair(account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	if err := s.refreshTokens.Put(ctx, pair.RefreshToken, account.ID); err != nil {
		return nil, err
	}

	return &SessionResult{Account: account, Tokens: *pair}, nil
}

// issueOTP generates an OTP unique within its purpose and maps it to the account
func (s *authService) issueOTP(ctx context.Context, purpose secrets.Purpose, accountID string) (string, error) {
	otps := s.secrets.Keyspace(purpose)

	for attempt := 0; attempt < maxOTPAttempts; attempt++ {
		otp, err := utils.GenerateOTP()
		if err != nil {
			return "", err
		}

		stored, err := otps.PutNew(ctx, otp, accountID)
		if err != nil {
			return "", err
		}
		if stored {
			return otp, nil
		}
	}

	return "", fmt.Errorf("failed to allocate a unique %s code after %d attempts", purpose, maxOTPAttempts)
}

func (s *authService) otpResult(account *domain.Account, purpose secrets.Purpose, otp string) *OTPResult {
	return &OTPResult{
		Account:   account,
		OTP:       otp,
		ExpiresIn: s.secrets.Keyspace(purpose).TTL(),
	}
}

// issueCooledOTP issues an OTP under the per-account cooldown of its purpose
func (s *authService) issueCooledOTP(ctx context.Context, purpose secrets.Purpose, account *domain.Account) (*OTPResult, error) {
	if err := s.acquireCooldown(ctx, purpose, account.ID); err != nil {
		return nil, err
	}

	otp, err := s.issueOTP(ctx, purpose, account.ID)
	if err != nil {
		return nil, s.releaseCooldown(ctx, purpose, account.ID, err)
	}

	return s.otpResult(account, purpose, otp), nil
}

func (s *authService) acquireCooldown(ctx context.Context, purpose secrets.Purpose, accountID string) error {
	if s.cooldown == nil {
		return nil
	}
	return s.cooldown.Acquire(ctx, string(purpose), accountID)
}

// releaseCooldown gives back the cooldown of a request that issued nothing
// and returns cause, joined with any release failure.
func (s *authService) releaseCooldown(ctx context.Context, purpose secrets.Purpose, accountID string, cause error) error {
	if s.cooldown == nil {
		return cause
	}
	if err := s.cooldown.Release(ctx, string(purpose), accountID); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// consumeOTP spends an OTP and loads the account it was issued for
func (s *authService) consumeOTP(ctx context.Context, purpose secrets.Purpose, otp string) (*domain.Account, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, domain.BadRequest("Please provide the OTP")
	}

	accountID, err := s.secrets.Keyspace(purpose).Consume(ctx, otp)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, domain.NotFound(msgInvalidOTP)
		}
		return nil, err
	}

	return s.loadAccount(ctx, accountID)
}

// consumeOwnOTP is consumeOTP for flows run by an authenticated caller.
// An OTP issued to another account is reported as unknown and left intact.
func (s *authService) consumeOwnOTP(ctx context.Context, purpose secrets.Purpose, accountID, otp string) (*domain.Account, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, domain.BadRequest("Please provide the OTP")
	}

	owner, err := s.secrets.Keyspace(purpose).Get(ctx, otp)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, domain.NotFound(msgInvalidOTP)
		}
		return nil, err
	}
	if owner != accountID {
		return nil, domain.NotFound(msgInvalidOTP)
	}

	account, err := s.consumeOTP(ctx, purpose, otp)
	if err != nil {
		return nil, err
	}
	if account.ID != accountID {
		return nil, domain.NotFound(msgInvalidOTP)
	}
	return account, nil
}

func (s *authService) loadAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *authService) findByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return account, nil
}

func (s *authService) updateAccount(ctx context.Context, accountID string, update domain.AccountUpdate) (*domain.Account, error) {
	account, err := s.accounts.UpdateByID(ctx, accountID, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, domain.NotFound(msgUserNotFound)
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, domain.BadRequest(msgEmailTaken)
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// ensureEmailFree fails when any account already uses email
func (s *authService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.accounts.FindByEmail(ctx, email)
	if err == nil {
		return domain.BadRequest(msgEmailTaken)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check account existence: %w", err)
	}
	return nil
}

// hashNewPassword enforces the password policy and hashes the password
func (s *authService) hashNewPassword(password string) (string, error) {
	if !utils.ValidatePassword(password) {
		return "", domain.BadRequest(msgWeakPassword)
	}
	return utils.HashPassword(password, s.bcryptCost)
}

// verifyPassword checks password against the account credential.
// mismatch is the message reported on a wrong password.
func (s *authService) verifyPassword(account *domain.Account, password, mismatch string) error {
	if account.IsExternalAccount {
		return domain.BadRequest("This account signs in with an external identity provider")
	}

	ok, err := utils.CheckPasswordHash(password, account.Credential())
	if err != nil {
		return err
	}
	if !ok {
		return domain.BadRequest(mismatch)
	}
	return nil
}

// requireActive gates every flow that needs a verified, non-deactivated account
func requireActive(account *domain.Account) error {
	switch account.Status {
	case domain.AccountStatusActive:
		return nil
	case domain.AccountStatusPending:
		return domain.BadRequest(msgPendingAccount)
	case domain.AccountStatusDeactivated:
		return domain.BadRequest(msgDeactivatedAccount)
	default:
		return domain.BadRequestf("Account is in an unknown state: %s", account.Status)
	}
}
