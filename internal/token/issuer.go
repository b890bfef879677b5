// Package token mints and verifies the signed, time-bound credentials handed to clients.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/utils"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrUnknownKeyClass  = errors.New("unknown key class")
	ErrTokenClassDiffer = errors.New("token class mismatch")
)

// Config carries the signing material and lifetimes, built once from config.JWTConfig.
type Config struct {
	AccessSecret       string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	ResetTokenExpiry   time.Duration
}

type claims struct {
	AccountID string          `json:"accountId"`
	Class     domain.KeyClass `json:"class"`
	jwt.RegisteredClaims
}

// Issuer manages JWT token operations
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	expiry        map[domain.KeyClass]time.Duration
	now           func() time.Time
}

// NewIssuer creates a new token issuer
func NewIssuer(cfg Config) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		expiry: map[domain.KeyClass]time.Duration{
			domain.KeyClassAccess:  cfg.AccessTokenExpiry,
			domain.KeyClassRefresh: cfg.RefreshTokenExpiry,
			domain.KeyClassReset:   cfg.ResetTokenExpiry,
		},
		now: time.Now,
	}
}

func (i *Issuer) secret(class domain.KeyClass) ([]byte, error) {
	switch class {
	case domain.KeyClassAccess, domain.KeyClassReset:
		return i.accessSecret, nil
	case domain.KeyClassRefresh:
		return i.refreshSecret, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyClass, class)
	}
}

func (i *Issuer) issue(accountID string, class domain.KeyClass) (string, error) {
	secret, err := i.secret(class)
	if err != nil {
		return "", err
	}

	jti, err := utils.GenerateStringToken()
	if err != nil {
		return "", err
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		AccountID: accountID,
		Class:     class,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiry[class])),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", class, err)
	}

	return signed, nil
}

// IssueAccessToken mints a short-lived bearer token
func (i *Issuer) IssueAccessToken(accountID string) (string, error) {
	return i.issue(accountID, domain.KeyClassAccess)
}

// IssueRefreshToken mints a long-lived token exchanged for a new pair
func (i *Issuer) IssueRefreshToken(accountID string) (string, error) {
	return i.issue(accountID, domain.KeyClassRefresh)
}

// IssueResetToken mints the token that authorizes one password reset
func (i *Issuer) IssueResetToken(accountID string) (string, error) {
	return i.issue(accountID, domain.KeyClassReset)
}

// IssuePair mints an access and refresh token for the account
func (i *Issuer) IssuePair(accountID string) (*domain.TokenPair, error) {
	access, err := i.IssueAccessToken(accountID)
	if err != nil {
		return nil, err
	}

	refresh, err := i.IssueRefreshToken(accountID)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, expiry and class of a token issued for the given key class
func (i *Issuer) Verify(tokenString string, class domain.KeyClass) (*domain.TokenClaims, error) {
	secret, err := i.secret(class)
	if err != nil {
		return nil, err
	}

	parsed := &claims{}
	token, err := jwt.ParseWithClaims(tokenString, parsed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if parsed.Class != class {
		return nil, fmt.Errorf("%w: want %s, got %s", ErrTokenClassDiffer, class, parsed.Class)
	}

	if parsed.AccountID == "" {
		return nil, fmt.Errorf("%w: missing accountId", ErrInvalidToken)
	}

	result := &domain.TokenClaims{
		AccountID: parsed.AccountID,
		Class:     parsed.Class,
		TokenID:   parsed.ID,
	}
	if parsed.ExpiresAt != nil {
		result.Exp = parsed.ExpiresAt.Unix()
	}
	if parsed.IssuedAt != nil {
		result.Iat = parsed.IssuedAt.Unix()
	}

	return result, nil
}

// AccessTokenExpiry returns the access token expiry duration in seconds
func (i *Issuer) AccessTokenExpiry() int {
	return int(i.expiry[domain.KeyClassAccess].Seconds())
}

// RefreshTokenExpiry returns the refresh token lifetime
func (i *Issuer) RefreshTokenExpiry() time.Duration {
	return i.expiry[domain.KeyClassRefresh]
}

// ResetTokenExpiry returns the reset token lifetime
func (i *Issuer) ResetTokenExpiry() time.Duration {
	return i.expiry[domain.KeyClassReset]
}
