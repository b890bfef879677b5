package domain

import "time"

// KeyClass selects the signing key a token was issued with
type KeyClass string

const (
	KeyClassAccess  KeyClass = "access"
	KeyClassRefresh KeyClass = "refresh"

	// KeyClassReset marks password-reset tokens. They are signed with the
	// access key but are never accepted as bearer credentials.
	KeyClassReset KeyClass = "reset"
)

// TokenClaims represents verified JWT claims
type TokenClaims struct {
	AccountID string   `json:"accountId"`
	Class     KeyClass `json:"class"`
	TokenID   string   `json:"jti"`
	Exp       int64    `json:"exp"`
	Iat       int64    `json:"iat"`
}

// TokenPair represents a pair of access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// IsExpired checks if the token is expired
func (tc TokenClaims) IsExpired() bool {
	return time.Now().Unix() > tc.Exp
}
