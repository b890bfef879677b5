package repository

import (
	"context"

	"github.com/prperemyshlev/gamelib-auth/internal/domain"
)

// AccountRepository defines methods for durable account records.
// Emails are compared case-insensitively and must be unique.
type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	// UpdateByID applies a partial update and returns the updated record
	UpdateByID(ctx context.Context, id string, update domain.AccountUpdate) (*domain.Account, error)
	// Save persists the whole record
	Save(ctx context.Context, account *domain.Account) error
}
