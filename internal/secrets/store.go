// Package secrets keeps short-lived, single-use secrets in Redis.
//
// Every secret lives under a purpose-specific key prefix with its own TTL.
// A record's presence is the only proof of validity: a missing key and an
// expired key are the same thing to callers.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prperemyshlev/gamelib-auth/pkg/database"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a secret is absent or expired
var ErrNotFound = errors.New("secret not found or expired")

// Purpose is the key prefix of one secret key space
type Purpose string

const (
	PurposeRegistrationOTP  Purpose = "otp:registration"
	PurposePasswordResetOTP Purpose = "otp:passwordReset"
	PurposeEmailUpdateOTP   Purpose = "otp:emailUpdate"
	PurposeDeactivationOTP  Purpose = "otp:deactivation"
	PurposeReactivationOTP  Purpose = "otp:reactivation"
	PurposeRefreshToken     Purpose = "refreshToken"
	PurposeResetToken       Purpose = "resetToken"
	PurposeNewEmail         Purpose = "newEmail"
)

// IsOTP reports whether the purpose holds one-time passcodes
func (p Purpose) IsOTP() bool {
	return strings.HasPrefix(string(p), "otp:")
}

// TTLs configures the lifetime of each family of secrets
type TTLs struct {
	OTP          time.Duration
	RefreshToken time.Duration
	ResetToken   time.Duration
	NewEmail     time.Duration
}

// DefaultTTLs are the lifetimes used when nothing else is configured
var DefaultTTLs = TTLs{
	OTP:          5 * time.Minute,
	RefreshToken: 30 * 24 * time.Hour,
	ResetToken:   15 * time.Minute,
	NewEmail:     5 * time.Minute,
}

// Store handles secret records in Redis
type Store struct {
	redis *database.Redis
	ttls  TTLs
}

// NewStore creates a new secret store
func NewStore(redis *database.Redis, ttls TTLs) *Store {
	return &Store{redis: redis, ttls: ttls}
}

func (s *Store) ttl(p Purpose) time.Duration {
	switch {
	case p.IsOTP():
		return s.ttls.OTP
	case p == PurposeRefreshToken:
		return s.ttls.RefreshToken
	case p == PurposeResetToken:
		return s.ttls.ResetToken
	case p == PurposeNewEmail:
		return s.ttls.NewEmail
	default:
		return s.ttls.OTP
	}
}

// Keyspace returns the view of the store for one purpose
func (s *Store) Keyspace(p Purpose) *Keyspace {
	return &Keyspace{
		client:  s.redis.Client,
		purpose: p,
		ttl:     s.ttl(p),
	}
}

// Keyspace maps secret values of one purpose to account ids
type Keyspace struct {
	client  *redis.Client
	purpose Purpose
	ttl     time.Duration
}

func (k *Keyspace) key(secret string) string {
	return fmt.Sprintf("%s:%s", k.purpose, secret)
}

// TTL returns the lifetime given to new records
func (k *Keyspace) TTL() time.Duration {
	return k.ttl
}

// Put stores value under secret, replacing any previous record
func (k *Keyspace) Put(ctx context.Context, secret, value string) error {
	if err := k.client.Set(ctx, k.key(secret), value, k.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s secret: %w", k.purpose, err)
	}
	return nil
}

// PutNew stores value under secret only if no live record exists.
// It reports false when the secret is already taken.
func (k *Keyspace) PutNew(ctx context.Context, secret, value string) (bool, error) {
	ok, err := k.client.SetNX(ctx, k.key(secret), value, k.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to store %s secret: %w", k.purpose, err)
	}
	return ok, nil
}

// Get returns the value stored under secret without consuming it
func (k *Keyspace) Get(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", ErrNotFound
	}

	value, err := k.client.Get(ctx, k.key(secret)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s secret: %w", k.purpose, err)
	}
	return value, nil
}

// Consume atomically reads and deletes the record, so of two concurrent
// consumers of the same secret only one receives the value.
func (k *Keyspace) Consume(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", ErrNotFound
	}

	value, err := k.client.GetDel(ctx, k.key(secret)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume %s secret: %w", k.purpose, err)
	}
	return value, nil
}

// Delete removes the record; deleting a missing record is not an error
func (k *Keyspace) Delete(ctx context.Context, secret string) error {
	if secret == "" {
		return nil
	}

	if err := k.client.Del(ctx, k.key(secret)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s secret: %w", k.purpose, err)
	}
	return nil
}
