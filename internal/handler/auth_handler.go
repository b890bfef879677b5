package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/dto"
	"github.com/prperemyshlev/gamelib-auth/internal/notify"
	"github.com/prperemyshlev/gamelib-auth/internal/service"
	"github.com/prperemyshlev/gamelib-auth/internal/utils"
	"github.com/prperemyshlev/gamelib-auth/pkg/observability"
	"go.uber.org/zap"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

// Config tunes the HTTP boundary
type Config struct {
	// ExposeOTP returns issued OTPs in response bodies. Development only.
	ExposeOTP bool
	// SecureCookies marks the refresh cookie Secure
	SecureCookies bool
	// AccessTokenExpiry and RefreshTokenExpiry are in seconds
	AccessTokenExpiry  int
	RefreshTokenExpiry int
}

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService service.AuthService
	notifier    notify.OTPSender
	metrics     *observability.AuthMetrics
	logger      *zap.Logger
	cfg         Config
}

// NewAuthHandler creates a new auth handler. notifier and metrics may be nil.
func NewAuthHandler(
	authService service.AuthService,
	notifier notify.OTPSender,
	metrics *observability.AuthMetrics,
	logger *zap.Logger,
	cfg Config,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// RegisterRoutes mounts the auth routes on rg
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/verify", h.Verify)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.POST("/refresh-token", h.RefreshToken)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/verify-otp", h.VerifyResetOTP)
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/request-account-reactivation", h.RequestAccountReactivation)
		auth.POST("/reactivate-account", h.ReactivateAccount)
	}

	protected := auth.Group("")
	protected.Use(AuthMiddleware(h.authService))
	{
		protected.GET("/me", h.GetMe)
		protected.POST("/update-password", h.UpdatePassword)
		protected.POST("/update-email", h.UpdateEmail)
		protected.POST("/replace-email", h.ReplaceEmail)
		protected.POST("/request-account-deactivation", h.RequestAccountDeactivation)
		protected.POST("/deactivate-account", h.DeactivateAccount)
	}
}

// Register handles account registration
// @Summary Register a new account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "Registration request"
// @Success 201 {object} dto.Response
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	h.record(c, "register", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.deliverOTP(c.Request.Context(), result.Account.Email, notify.PurposeRegistration, result.OTP)

	c.JSON(http.StatusCreated, dto.Response{
		Message: "User registered successfully. Please verify your email.",
		Data:    h.otpData(result),
	})
}

// Verify handles registration OTP verification
// @Summary Verify a pending account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.OTPRequest true "OTP"
// @Success 200 {object} dto.Response
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/verify [post]
func (h *AuthHandler) Verify(c *gin.Context) {
	var req dto.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	result, err := h.authService.VerifyRegistration(c.Request.Context(), req.OTP)
	h.record(c, "verify_registration", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.respondSession(c, "User verified successfully.", result)
}

// Login handles account login
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Login request"
// @Success 200 {object} dto.Response
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(refreshCookieName)
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	h.record(c, "login", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.respondSession(c, "User logged in successfully.", result)
}

// Logout revokes the presented refresh token
// @Summary Logout
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest false "Refresh token, or the refresh_token cookie"
// @Success 200 {object} dto.Response
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	refreshToken, ok := h.refreshTokenFrom(c)
	if !ok {
		return
	}

	account, err := h.authService.Logout(c.Request.Context(), refreshToken)
	h.record(c, "logout", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", h.cfg.SecureCookies, true)

	c.JSON(http.StatusOK, dto.Response{
		Message: "User logged out successfully.",
		Data:    dto.AccountData{User: account},
	})
}

// RefreshToken rotates the presented refresh token
// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest false "Refresh token, or the refresh_token cookie"
// @Success 200 {object} dto.Response
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	refreshToken, ok := h.refreshTokenFrom(c)
	if !ok {
		return
	}

	result, err := h.authService.RefreshToken(c.Request.Context(), refreshToken)
	h.record(c, "refresh_token", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.respondSession(c, "Token refreshed successfully.", result)
}

// ForgotPassword issues a password-reset OTP
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	result, err := h.authService.ForgotPassword(c.Request.Context(), req.Email)
	h.record(c, "forgot_password", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.deliverOTP(c.Request.Context(), result.Account.Email, notify.PurposePasswordReset, result.OTP)

	c.JSON(http.StatusOK, dto.Response{
		Message: "Password reset instructions sent.",
		Data:    h.otpData(result),
	})
}

// VerifyResetOTP exchanges a password-reset OTP for a reset token
func (h *AuthHandler) VerifyResetOTP(c *gin.Context) {
	var req dto.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	result, err := h.authService.VerifyResetOTP(c.Request.Context(), req.OTP)
	h.record(c, "verify_reset_otp", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Message: "OTP verified successfully.",
		Data:    dto.ResetTokenData{User: result.Account, ResetToken: result.ResetToken},
	})
}

// ResetPassword sets a new password with a reset token
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	account, err := h.authService.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword)
	h.record(c, "reset_password", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Message: "Password reset successfully.",
		Data:    dto.AccountData{User: account},
	})
}

// UpdatePassword changes the password of the authenticated account
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		respondError(c, h.logger, domain.Unauthorized("Not authorized"))
		return
	}

	var req dto.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	account, err := h.authService.UpdatePassword(c.Request.Context(), id, req.OldPassword, req.NewPassword)
	h.record(c, "update_password", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Message: "Password updated successfully.",
		Data:    dto.AccountData{User: account},
	})
}

// UpdateEmail requests an email change; the OTP goes to the new address
func (h *AuthHandler) UpdateEmail(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		respondError(c, h.logger, domain.Unauthorized("Not authorized"))
		return
	}

	var req dto.UpdateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	result, err := h.authService.RequestEmailUpdate(c.Request.Context(), id, req.NewEmail, req.Password)
	h.record(c, "request_email_update", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.deliverOTP(c.Request.Context(), utils.SanitizeEmail(req.NewEmail), notify.PurposeEmailUpdate, result.OTP)

	c.JSON(http.StatusOK, dto.Response{
		Message: "Email update requested successfully.",
		Data:    h.otpData(result),
	})
}

// ReplaceEmail confirms the caller's pending email change
func (h *AuthHandler) ReplaceEmail(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		respondError(c, h.logger, domain.Unauthorized("Not authorized"))
		return
	}

	var req dto.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	result, err := h.authService.ReplaceEmail(c.Request.Context(), id, req.OTP)
	h.record(c, "replace_email", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Message: "Email updated successfully.",
		Data:    dto.EmailReplacementData{User: result.Account, PreviousEmail: result.PreviousEmail},
	})
}

// RequestAccountDeactivation issues a deactivation OTP to the authenticated account
// @Summary Request account deactivation
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.Response
// @Failure 429 {object} dto.ErrorResponse
// @Router /auth/request-account-deactivation [post]
func (h *AuthHandler) RequestAccountDeactivation(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		respondError(c, h.logger, domain.Unauthorized("Not authorized"))
		return
	}

	result, err := h.authService.RequestAccountDeactivation(c.Request.Context(), id)
	h.record(c, "request_account_deactivation", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.deliverOTP(c.Request.Context(), result.Account.Email, notify.PurposeDeactivation, result.OTP)

	c.JSON(http.StatusOK, dto.Response{
		Message: "Account deactivation requested successfully.",
		Data:    h.otpData(result),
	})
}

// DeactivateAccount deactivates the authenticated account with its OTP
// @Summary Deactivate account
// @Tags auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.OTPRequest true "OTP"
// @Success 200 {object} dto.Response
// @Failure 404 {object} dto.ErrorResponse
// @Router /auth/deactivate-account [post]
func (h *AuthHandler) DeactivateAccount(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		respondError(c, h.logger, domain.Unauthorized("Not authorized"))
		return
	}

	var req dto.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	account, err := h.authService.DeactivateAccount(c.Request.Context(), id, req.OTP)
	h.record(c, "deactivate_account", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Message: "Account deactivated successfully.",
		Data:    dto.AccountData{User: account},
	})
}

// RequestAccountReactivation issues a reactivation OTP for a deactivated account
func (h *AuthHandler) RequestAccountReactivation(c *gin.Context) {
	var req dto.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	result, err := h.authService.RequestAccountReactivation(c.Request.Context(), req.Email)
	h.record(c, "request_account_reactivation", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.deliverOTP(c.Request.Context(), result.Account.Email, notify.PurposeReactivation, result.OTP)

	c.JSON(http.StatusOK, dto.Response{
		Message: "Account reactivation requested successfully.",
		Data:    h.otpData(result),
	})
}

// ReactivateAccount reactivates the account a reactivation OTP was issued for
func (h *AuthHandler) ReactivateAccount(c *gin.Context) {
	var req dto.OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadBody(c, err)
		return
	}

	account, err := h.authService.ReactivateAccount(c.Request.Context(), req.OTP)
	h.record(c, "reactivate_account", err)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Message: "Account reactivated successfully.",
		Data:    dto.AccountData{User: account},
	})
}

// GetMe returns the authenticated account
// @Summary Get current account
// @Tags auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.Response
// @Failure 401 {object} dto.ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) GetMe(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		respondError(c, h.logger, domain.Unauthorized("Not authorized"))
		return
	}

	account, err := h.authService.GetAccount(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.Response{
		Message: "User retrieved successfully.",
		Data:    dto.AccountData{User: account},
	})
}

func (h *AuthHandler) respondSession(c *gin.Context, message string, result *service.SessionResult) {
	c.SetCookie(refreshCookieName, result.Tokens.RefreshToken, h.cfg.RefreshTokenExpiry, refreshCookiePath, "", h.cfg.SecureCookies, true)

	c.JSON(http.StatusOK, dto.Response{
		Message: message,
		Data: dto.SessionData{
			User:      result.Account,
			Tokens:    result.Tokens,
			ExpiresIn: h.cfg.AccessTokenExpiry,
		},
	})
}

// refreshTokenFrom reads the refresh token from the body, falling back to
// the cookie. It writes the error response itself and reports false.
func (h *AuthHandler) refreshTokenFrom(c *gin.Context) (string, bool) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBadBody(c, err)
		return "", false
	}

	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(refreshCookieName)
	}

	if req.RefreshToken == "" {
		respondError(c, h.logger, domain.Unauthorized("Refresh token is required"))
		return "", false
	}

	return req.RefreshToken, true
}

func (h *AuthHandler) otpData(result *service.OTPResult) dto.OTPData {
	data := dto.OTPData{
		User:      result.Account,
		ExpiresIn: int(result.ExpiresIn.Seconds()),
	}
	if h.cfg.ExposeOTP {
		data.OTP = result.OTP
	}
	return data
}

// deliverOTP hands the OTP to the notifier. The OTP is already stored,
// so a delivery failure is logged and the request still succeeds.
func (h *AuthHandler) deliverOTP(ctx context.Context, to string, purpose notify.Purpose, otp string) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.SendOTP(ctx, to, purpose, otp); err != nil {
		h.logger.Error("failed to deliver OTP",
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
	}
}

func (h *AuthHandler) record(c *gin.Context, operation string, err error) {
	h.metrics.Record(c.Request.Context(), operation, outcome(err))
}
