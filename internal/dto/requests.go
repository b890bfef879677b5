package dto

// Binding tags reject absent fields and malformed emails at the boundary.
// The service repeats these checks because it is also called without HTTP.

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest represents a login request. RefreshToken is a token from an
// earlier session on the same client, revoked when the login succeeds.
type LoginRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	RefreshToken string `json:"potentialRefreshToken"`
}

// OTPRequest carries a one-time passcode
type OTPRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// RefreshTokenRequest carries a refresh token. The refresh_token cookie is
// used when the body omits it.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// EmailRequest carries an account email
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest represents a password reset with a reset token
type ResetPasswordRequest struct {
	ResetToken  string `json:"resetToken" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// UpdatePasswordRequest represents a password change by an authenticated account
type UpdatePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// UpdateEmailRequest represents an email change request
type UpdateEmailRequest struct {
	NewEmail string `json:"newEmail" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
