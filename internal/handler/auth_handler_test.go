package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/dto"
	"github.com/prperemyshlev/gamelib-auth/internal/notify"
	"github.com/prperemyshlev/gamelib-auth/internal/repository"
	"github.com/prperemyshlev/gamelib-auth/internal/secrets"
	"github.com/prperemyshlev/gamelib-auth/internal/service"
	"github.com/prperemyshlev/gamelib-auth/internal/token"
	"github.com/prperemyshlev/gamelib-auth/pkg/database"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type sessionBody struct {
	User      domain.Account   `json:"user"`
	Tokens    domain.TokenPair `json:"tokens"`
	ExpiresIn int              `json:"expiresIn"`
}

type otpBody struct {
	User      domain.Account `json:"user"`
	OTP       string         `json:"otp"`
	ExpiresIn int            `json:"otpExpiresIn"`
}

type sentOTP struct {
	to      string
	purpose notify.Purpose
	otp     string
}

type recordingSender struct {
	sent []sentOTP
}

func (r *recordingSender) SendOTP(_ context.Context, to string, purpose notify.Purpose, otp string) error {
	r.sent = append(r.sent, sentOTP{to: to, purpose: purpose, otp: otp})
	return nil
}

func newTestService(t *testing.T) service.AuthService {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rdb := &database.Redis{Client: client}

	issuer := token.NewIssuer(token.Config{
		AccessSecret:       "access-secret-access-secret-access-secret",
		RefreshSecret:      "refresh-secret-refresh-secret-refresh-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 30 * 24 * time.Hour,
		ResetTokenExpiry:   15 * time.Minute,
	})

	return service.NewAuthService(
		repository.NewMemoryAccountRepository(),
		secrets.NewStore(rdb, secrets.DefaultTTLs),
		issuer,
		secrets.NewCooldown(rdb, 0),
		bcrypt.MinCost,
	)
}

func newTestRouter(svc service.AuthService, sender notify.OTPSender, exposeOTP bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := NewAuthHandler(svc, sender, nil, zap.NewNop(), Config{
		ExposeOTP:          exposeOTP,
		AccessTokenExpiry:  900,
		RefreshTokenExpiry: 2592000,
	})

	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, header http.Header) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func registerAndVerify(t *testing.T, router *gin.Engine) sessionBody {
	t.Helper()
	return registerAndVerifyAs(t, router, "alice", "alice@x.io")
}

func registerAndVerifyAs(t *testing.T, router *gin.Engine, username, email string) sessionBody {
	t.Helper()

	w, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "Secret#123",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	issued := decode[otpBody](t, env.Data)
	require.Len(t, issued.OTP, 6)
	require.Equal(t, 300, issued.ExpiresIn)
	otp := issued.OTP

	w, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/verify", dto.OTPRequest{OTP: otp}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	return decode[sessionBody](t, env.Data)
}

func TestAuthHandler_RegisterVerifyLogin(t *testing.T) {
	sender := &recordingSender{}
	router := newTestRouter(newTestService(t), sender, true)

	session := registerAndVerify(t, router)
	assert.Equal(t, domain.AccountStatusActive, session.User.Status)
	assert.NotEmpty(t, session.Tokens.AccessToken)
	assert.Equal(t, 900, session.ExpiresIn)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "alice@x.io", sender.sent[0].to)
	assert.Equal(t, notify.PurposeRegistration, sender.sent[0].purpose)

	w, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "alice@x.io",
		Password: "Secret#123",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User logged in successfully.", env.Message)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, decode[sessionBody](t, env.Data).Tokens.RefreshToken, cookie.Value)
}

func TestAuthHandler_RegisterHidesOTPByDefault(t *testing.T) {
	router := newTestRouter(newTestService(t), nil, false)

	w, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: "alice",
		Email:    "alice@x.io",
		Password: "Secret#123",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, decode[otpBody](t, env.Data).OTP)
}

func TestAuthHandler_ErrorStatuses(t *testing.T) {
	router := newTestRouter(newTestService(t), nil, true)
	registerAndVerify(t, router)

	w, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "alice@x.io",
		Password: "Wrong#999",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Bad Request", env.Error)
	assert.Equal(t, "Invalid credentials", env.Message)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/verify", dto.OTPRequest{OTP: "000000"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh-token", dto.RefreshTokenRequest{RefreshToken: "bogus"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Refresh token is required", env.Message)
}

func TestAuthHandler_RefreshFromCookie(t *testing.T) {
	router := newTestRouter(newTestService(t), nil, true)
	session := registerAndVerify(t, router)

	header := http.Header{"Cookie": {refreshCookieName + "=" + session.Tokens.RefreshToken}}

	w, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh-token", nil, header)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, session.Tokens.RefreshToken, decode[sessionBody](t, env.Data).Tokens.RefreshToken)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/refresh-token", nil, header)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_ProtectedRoutes(t *testing.T) {
	router := newTestRouter(newTestService(t), nil, true)
	session := registerAndVerify(t, router)

	w, env := doJSON(t, router, http.MethodGet, "/api/v1/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authorized, no token", env.Message)

	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", nil,
		http.Header{"Authorization": {"Bearer " + session.Tokens.RefreshToken}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	bearer := http.Header{"Authorization": {"Bearer " + session.Tokens.AccessToken}}

	w, env = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", nil, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice@x.io", decode[dto.AccountData](t, env.Data).User.Email)

	w, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/update-email",
		dto.UpdateEmailRequest{NewEmail: "alice2@x.io", Password: "Secret#123"}, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	otp := decode[otpBody](t, env.Data).OTP

	w, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/replace-email", dto.OTPRequest{OTP: otp}, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	replaced := decode[dto.EmailReplacementData](t, env.Data)
	assert.Equal(t, "alice@x.io", replaced.PreviousEmail)
	assert.Equal(t, "alice2@x.io", replaced.User.Email)
}

func TestAuthHandler_DeactivateAndReactivate(t *testing.T) {
	router := newTestRouter(newTestService(t), nil, true)
	session := registerAndVerify(t, router)
	bearer := http.Header{"Authorization": {"Bearer " + session.Tokens.AccessToken}}

	w, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/request-account-deactivation", nil, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	otp := decode[otpBody](t, env.Data).OTP

	w, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/deactivate-account", dto.OTPRequest{OTP: otp}, bearer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.AccountStatusDeactivated, decode[dto.AccountData](t, env.Data).User.Status)

	w, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/request-account-reactivation", dto.EmailRequest{Email: "alice@x.io"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	otp = decode[otpBody](t, env.Data).OTP

	w, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/reactivate-account", dto.OTPRequest{OTP: otp}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.AccountStatusActive, decode[dto.AccountData](t, env.Data).User.Status)
}

func TestAuthHandler_ConfirmationsUseCallerAccount(t *testing.T) {
	router := newTestRouter(newTestService(t), nil, true)
	alice := registerAndVerifyAs(t, router, "alice", "alice@x.io")
	bob := registerAndVerifyAs(t, router, "bob", "bob@x.io")
	aliceBearer := http.Header{"Authorization": {"Bearer " + alice.Tokens.AccessToken}}
	bobBearer := http.Header{"Authorization": {"Bearer " + bob.Tokens.AccessToken}}

	w, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/request-account-deactivation", nil, bobBearer)
	require.Equal(t, http.StatusOK, w.Code)
	bobOTP := decode[otpBody](t, env.Data).OTP

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/deactivate-account", dto.OTPRequest{OTP: bobOTP}, aliceBearer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = doJSON(t, router, http.MethodPost, "/api/v1/auth/update-email",
		dto.UpdateEmailRequest{NewEmail: "bob2@x.io", Password: "Secret#123"}, bobBearer)
	require.Equal(t, http.StatusOK, w.Code)
	emailOTP := decode[otpBody](t, env.Data).OTP

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/replace-email", dto.OTPRequest{OTP: emailOTP}, aliceBearer)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = doJSON(t, router, http.MethodGet, "/api/v1/auth/me", nil, aliceBearer)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[dto.AccountData](t, env.Data).User
	assert.Equal(t, "alice@x.io", me.Email)
	assert.Equal(t, domain.AccountStatusActive, me.Status)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/replace-email", dto.OTPRequest{OTP: emailOTP}, bobBearer)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/auth/deactivate-account", dto.OTPRequest{OTP: bobOTP}, bobBearer)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_BindingValidation(t *testing.T) {
	router := newTestRouter(newTestService(t), nil, true)

	cases := []struct {
		name    string
		path    string
		body    any
		message string
		details []dto.FieldError
	}{
		{
			name:    "register without username",
			path:    "/api/v1/auth/register",
			body:    dto.RegisterRequest{Email: "alice@x.io", Password: "Secret#123"},
			message: "Please provide all required fields",
			details: []dto.FieldError{{Field: "username", Rule: "required"}},
		},
		{
			name:    "login with malformed email",
			path:    "/api/v1/auth/login",
			body:    dto.LoginRequest{Email: "not-an-email", Password: "Secret#123"},
			message: "Please provide a valid email address",
			details: []dto.FieldError{{Field: "email", Rule: "email"}},
		},
		{
			name:    "verify without otp",
			path:    "/api/v1/auth/verify",
			body:    dto.OTPRequest{},
			message: "Please provide all required fields",
			details: []dto.FieldError{{Field: "otp", Rule: "required"}},
		},
		{
			name:    "missing field outranks malformed email",
			path:    "/api/v1/auth/login",
			body:    dto.LoginRequest{Email: "not-an-email"},
			message: "Please provide all required fields",
			details: []dto.FieldError{{Field: "email", Rule: "email"}, {Field: "password", Rule: "required"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, json.NewEncoder(&buf).Encode(tc.body))
			req := httptest.NewRequest(http.MethodPost, tc.path, &buf)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "Bad Request", body.Error)
			assert.Equal(t, tc.message, body.Message)
			assert.Equal(t, tc.details, body.Details)
		})
	}
}

type failingService struct {
	service.AuthService
	err error
}

func (f failingService) Login(context.Context, *dto.LoginRequest) (*service.SessionResult, error) {
	return nil, f.err
}

func TestAuthHandler_InternalErrorIsHidden(t *testing.T) {
	router := newTestRouter(failingService{err: errors.New("pq: connection refused")}, nil, false)

	w, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "alice@x.io",
		Password: "Secret#123",
	}, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Something went wrong", env.Message)
}

func TestAuthHandler_TooManyRequests(t *testing.T) {
	router := newTestRouter(failingService{err: domain.TooManyRequests("Please wait 90 seconds before requesting another token.")}, nil, false)

	w, env := doJSON(t, router, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "alice@x.io",
		Password: "Secret#123",
	}, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too Many Requests", env.Error)
}

func TestAuthHandler_MalformedBody(t *testing.T) {
	router := newTestRouter(newTestService(t), nil, false)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid request body", body.Message)
	assert.Empty(t, body.Details)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", outcome(nil))
	assert.Equal(t, "not_found", outcome(domain.NotFound("x")))
	assert.Equal(t, "error", outcome(errors.New("boom")))
}
