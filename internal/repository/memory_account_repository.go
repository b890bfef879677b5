package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/gamelib-auth/internal/domain"
)

// MemoryAccountRepository keeps accounts in a map. It honors the same
// contract as the Postgres repository, including case-insensitive unique emails.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	byEmail  map[string]string

	// FailWith, when set, is returned by every call
	FailWith error
}

var _ AccountRepository = (*MemoryAccountRepository)(nil)

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]*domain.Account),
		byEmail:  make(map[string]string),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clone(a *domain.Account) *domain.Account {
	c := *a
	if a.PasswordHash != nil {
		h := *a.PasswordHash
		c.PasswordHash = &h
	}
	if a.ExternalIdentityID != nil {
		id := *a.ExternalIdentityID
		c.ExternalIdentityID = &id
	}
	if a.DeactivationDate != nil {
		d := *a.DeactivationDate
		c.DeactivationDate = &d
	}
	return &c
}

func (r *MemoryAccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
	}
	return clone(account), nil
}

func (r *MemoryAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("account with email %s not found: %w", email, ErrNotFound)
	}
	return clone(r.accounts[id]), nil
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if r.FailWith != nil {
		return r.FailWith
	}
	if account.IsExternalAccount {
		account.PasswordHash = nil
	}
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := emailKey(account.Email)
	if _, taken := r.byEmail[key]; taken {
		return fmt.Errorf("account with email %s already exists: %w", account.Email, ErrDuplicateEmail)
	}

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

	r.accounts[account.ID] = clone(account)
	r.byEmail[key] = account.ID
	return nil
}

func (r *MemoryAccountRepository) UpdateByID(ctx context.Context, id string, update domain.AccountUpdate) (*domain.Account, error) {
	if r.FailWith != nil {
		return nil, r.FailWith
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account with id %s not found: %w", id, ErrNotFound)
	}

	next := clone(stored)
	if update.Status != nil {
		next.Status = *update.Status
	}
	if update.PasswordHash != nil {
		h := *update.PasswordHash
		next.PasswordHash = &h
	}
	if update.SetDeactivationDate {
		next.DeactivationDate = nil
		if update.DeactivationDate != nil {
			d := *update.DeactivationDate
			next.DeactivationDate = &d
		}
	}
	if update.Email != nil {
		next.Email = *update.Email
	}

	if err := r.replace(stored, next); err != nil {
		return nil, err
	}
	return clone(next), nil
}

func (r *MemoryAccountRepository) Save(ctx context.Context, account *domain.Account) error {
	if r.FailWith != nil {
		return r.FailWith
	}
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok {
		return fmt.Errorf("account with id %s not found: %w", account.ID, ErrNotFound)
	}

	next := clone(account)
	if err := r.replace(stored, next); err != nil {
		return err
	}
	account.UpdatedAt = next.UpdatedAt
	return nil
}

// replace swaps stored for next, keeping the email index unique. Callers hold mu.
func (r *MemoryAccountRepository) replace(stored, next *domain.Account) error {
	oldKey, newKey := emailKey(stored.Email), emailKey(next.Email)
	if oldKey != newKey {
		if owner, taken := r.byEmail[newKey]; taken && owner != stored.ID {
			return fmt.Errorf("account with email %s already exists: %w", next.Email, ErrDuplicateEmail)
		}
		delete(r.byEmail, oldKey)
		r.byEmail[newKey] = stored.ID
	}

	next.UpdatedAt = time.Now()
	r.accounts[stored.ID] = next
	return nil
}
