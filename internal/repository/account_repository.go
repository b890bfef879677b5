package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/pkg/database"
)

const accountColumns = `id, status, username, email, password_hash, external_identity_id,
		is_external_account, deactivation_date, created_at, updated_at`

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *database.Postgres
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.Postgres) AccountRepository {
	return &accountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	account := &domain.Account{}
	var (
		status             string
		passwordHash       sql.NullString
		externalIdentityID sql.NullString
		deactivationDate   sql.NullTime
	)

	err := row.Scan(
		&account.ID,
		&status,
		&account.Username,
		&account.Email,
		&passwordHash,
		&externalIdentityID,
		&account.IsExternalAccount,
		&deactivationDate,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Status, err = domain.ParseAccountStatus(status)
	if err != nil {
		return nil, err
	}
	if passwordHash.Valid {
		account.PasswordHash = &passwordHash.String
	}
	if externalIdentityID.Valid {
		account.ExternalIdentityID = &externalIdentityID.String
	}
	if deactivationDate.Valid {
		account.DeactivationDate = &deactivationDate.Time
	}

	return account, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Create creates a new account in the database
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	if account.IsExternalAccount {
		account.PasswordHash = nil
	}
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	query := `
		INSERT INTO accounts (id, status, username, email, password_hash, external_identity_id,
			is_external_account, deactivation_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.Status == "" {
		account.Status = domain.AccountStatusPending
	}

	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	_, err := r.db.DB.ExecContext(ctx, query,
		account.ID,
		string(account.Status),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.ExternalIdentityID,
		account.IsExternalAccount,
		account.DeactivationDate,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account with email %s already exists: %w", account.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// FindByEmail retrieves an account by email, case-insensitively
func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`

	account, err := scanAccount(r.db.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with email %s not found: %w", email, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return account, nil
}

// FindByID retrieves an account by ID
func (r *accountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}

	return account, nil
}

// UpdateByID applies the non-nil fields of update and returns the new record
func (r *accountRepository) UpdateByID(ctx context.Context, id string, update domain.AccountUpdate) (*domain.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
	}

	query := `
		UPDATE accounts
		SET status = COALESCE($2, status),
			email = COALESCE($3, email),
			password_hash = COALESCE($4, password_hash),
			deactivation_date = CASE WHEN $5 THEN $6 ELSE deactivation_date END,
			updated_at = $7
		WHERE id = $1
		RETURNING ` + accountColumns

	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}

	account, err := scanAccount(r.db.DB.QueryRowContext(ctx, query,
		id,
		status,
		update.Email,
		update.PasswordHash,
		update.SetDeactivationDate,
		update.DeactivationDate,
		time.Now(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("account with email %s already exists: %w", *update.Email, ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return account, nil
}

// Save persists every mutable field of an existing account
func (r *accountRepository) Save(ctx context.Context, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	query := `
		UPDATE accounts
		SET status = $2, username = $3, email = $4, password_hash = $5,
			external_identity_id = $6, is_external_account = $7, deactivation_date = $8,
			updated_at = $9
		WHERE id = $1
	`

	account.UpdatedAt = time.Now()

	result, err := r.db.DB.ExecContext(ctx, query,
		account.ID,
		string(account.Status),
		account.Username,
		account.Email,
		account.PasswordHash,
		account.ExternalIdentityID,
		account.IsExternalAccount,
		account.DeactivationDate,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account with email %s already exists: %w", account.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("failed to save account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account with id %s not found: %w", account.ID, ErrNotFound)
	}

	return nil
}
