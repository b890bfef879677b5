package domain

import (
	"errors"
	"strings"
	"time"
)

// AccountStatus is the lifecycle state of an account
type AccountStatus string

const (
	AccountStatusPending     AccountStatus = "pending"
	AccountStatusActive      AccountStatus = "active"
	AccountStatusDeactivated AccountStatus = "deactivated"
)

// ParseAccountStatus normalizes a stored status string.
// Older records were written with upper-case values, so comparison is case-insensitive.
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch status := AccountStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case AccountStatusPending, AccountStatusActive, AccountStatusDeactivated:
		return status, nil
	default:
		return "", errors.New("unknown account status: " + s)
	}
}

// Account represents a game library account
type Account struct {
	ID                 string        `json:"id" db:"id"`
	Status             AccountStatus `json:"accountStatus" db:"status"`
	Username           string        `json:"username" db:"username"`
	Email              string        `json:"email" db:"email"`
	PasswordHash       *string       `json:"-" db:"password_hash"`
	ExternalIdentityID *string       `json:"externalIdentityId,omitempty" db:"external_identity_id"`
	IsExternalAccount  bool          `json:"isExternalAccount" db:"is_external_account"`
	DeactivationDate   *time.Time    `json:"deactivationDate,omitempty" db:"deactivation_date"`
	CreatedAt          time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time     `json:"updatedAt" db:"updated_at"`
}

// AccountUpdate is a partial update; nil fields are left untouched.
type AccountUpdate struct {
	Status       *AccountStatus
	Email        *string
	PasswordHash *string

	// SetDeactivationDate writes DeactivationDate, including a nil value that clears it.
	SetDeactivationDate bool
	DeactivationDate    *time.Time
}

// Validate checks the credential invariant: local accounts carry a password hash,
// external accounts never do.
func (a *Account) Validate() error {
	if a.IsExternalAccount && a.PasswordHash != nil {
		return errors.New("external account must not have a password hash")
	}
	if !a.IsExternalAccount && (a.PasswordHash == nil || *a.PasswordHash == "") {
		return errors.New("local account requires a password hash")
	}
	return nil
}

// Credential returns the stored password hash or an empty string
func (a *Account) Credential() string {
	if a.IsExternalAccount || a.PasswordHash == nil {
		return ""
	}
	return *a.PasswordHash
}
