package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when an email is already taken by another account
	ErrDuplicateEmail = errors.New("account with this email already exists")
)
