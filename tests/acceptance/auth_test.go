package acceptance

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/prperemyshlev/gamelib-auth/internal/domain"
	"github.com/prperemyshlev/gamelib-auth/internal/dto"
)

const alicePassword = "Secret#123"

type response struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type sessionData struct {
	User   domain.Account   `json:"user"`
	Tokens domain.TokenPair `json:"tokens"`
}

type otpData struct {
	User domain.Account `json:"user"`
	OTP  string         `json:"otp"`
}

func (s *Suite) do(method, path string, body any, accessToken string) (int, response) {
	s.T().Helper()

	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, s.App.BaseURL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out response
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *Suite) decode(raw json.RawMessage, v any) {
	s.T().Helper()
	s.Require().NoError(json.Unmarshal(raw, v))
}

func (s *Suite) register(username, email string) otpData {
	s.T().Helper()

	status, resp := s.do(http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: username,
		Email:    email,
		Password: alicePassword,
	}, "")
	s.Require().Equal(http.StatusCreated, status, resp.Message)

	var data otpData
	s.decode(resp.Data, &data)
	return data
}

func (s *Suite) activeSession(username, email string) sessionData {
	s.T().Helper()

	registered := s.register(username, email)

	status, resp := s.do(http.MethodPost, "/api/v1/auth/verify", dto.OTPRequest{OTP: registered.OTP}, "")
	s.Require().Equal(http.StatusOK, status, resp.Message)

	var session sessionData
	s.decode(resp.Data, &session)
	return session
}

func (s *Suite) TestHealthEndpoint() {
	resp, err := http.Get(s.App.BaseURL + "/health")
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestRegistrationAndSession() {
	registered := s.register("alice", "alice@x.io")
	s.Equal(domain.AccountStatusPending, registered.User.Status)

	status, _ := s.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "alice@x.io",
		Password: alicePassword,
	}, "")
	s.Equal(http.StatusBadRequest, status)

	status, resp := s.do(http.MethodPost, "/api/v1/auth/verify", dto.OTPRequest{OTP: registered.OTP}, "")
	s.Require().Equal(http.StatusOK, status)
	var session sessionData
	s.decode(resp.Data, &session)
	s.Equal(domain.AccountStatusActive, session.User.Status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/verify", dto.OTPRequest{OTP: registered.OTP}, "")
	s.Equal(http.StatusNotFound, status)

	status, _ = s.do(http.MethodGet, "/api/v1/auth/me", nil, session.Tokens.AccessToken)
	s.Require().Equal(http.StatusOK, status)

	status, resp = s.do(http.MethodPost, "/api/v1/auth/refresh-token",
		dto.RefreshTokenRequest{RefreshToken: session.Tokens.RefreshToken}, "")
	s.Require().Equal(http.StatusOK, status)
	var rotated sessionData
	s.decode(resp.Data, &rotated)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/refresh-token",
		dto.RefreshTokenRequest{RefreshToken: session.Tokens.RefreshToken}, "")
	s.Equal(http.StatusUnauthorized, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/logout",
		dto.RefreshTokenRequest{RefreshToken: rotated.Tokens.RefreshToken}, "")
	s.Equal(http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/logout",
		dto.RefreshTokenRequest{RefreshToken: rotated.Tokens.RefreshToken}, "")
	s.Equal(http.StatusUnauthorized, status)
}

func (s *Suite) TestRegister_DuplicateEmail() {
	s.register("alice", "alice@x.io")

	status, resp := s.do(http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username: "alice2",
		Email:    "ALICE@x.io",
		Password: alicePassword,
	}, "")
	s.Equal(http.StatusBadRequest, status)
	s.Equal("A user with this email already exists", resp.Message)
}

func (s *Suite) TestPasswordReset() {
	s.activeSession("alice", "alice@x.io")

	status, resp := s.do(http.MethodPost, "/api/v1/auth/forgot-password", dto.EmailRequest{Email: "alice@x.io"}, "")
	s.Require().Equal(http.StatusOK, status)
	var requested otpData
	s.decode(resp.Data, &requested)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/forgot-password", dto.EmailRequest{Email: "alice@x.io"}, "")
	s.Equal(http.StatusTooManyRequests, status)

	status, resp = s.do(http.MethodPost, "/api/v1/auth/verify-otp", dto.OTPRequest{OTP: requested.OTP}, "")
	s.Require().Equal(http.StatusOK, status)
	var verified dto.ResetTokenData
	s.decode(resp.Data, &verified)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/reset-password", dto.ResetPasswordRequest{
		ResetToken:  verified.ResetToken,
		NewPassword: "Changed#456",
	}, "")
	s.Require().Equal(http.StatusOK, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "alice@x.io", Password: alicePassword}, "")
	s.Equal(http.StatusBadRequest, status)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "alice@x.io", Password: "Changed#456"}, "")
	s.Equal(http.StatusOK, status)
}

func (s *Suite) TestEmailChange() {
	session := s.activeSession("alice", "alice@x.io")
	s.activeSession("bob", "bob@x.io")

	status, _ := s.do(http.MethodPost, "/api/v1/auth/update-email",
		dto.UpdateEmailRequest{NewEmail: "bob@x.io", Password: alicePassword}, session.Tokens.AccessToken)
	s.Equal(http.StatusBadRequest, status)

	status, resp := s.do(http.MethodPost, "/api/v1/auth/update-email",
		dto.UpdateEmailRequest{NewEmail: "alice.new@x.io", Password: alicePassword}, session.Tokens.AccessToken)
	s.Require().Equal(http.StatusOK, status)
	var requested otpData
	s.decode(resp.Data, &requested)

	status, resp = s.do(http.MethodPost, "/api/v1/auth/replace-email",
		dto.OTPRequest{OTP: requested.OTP}, session.Tokens.AccessToken)
	s.Require().Equal(http.StatusOK, status)
	var replaced dto.EmailReplacementData
	s.decode(resp.Data, &replaced)
	s.Equal("alice@x.io", replaced.PreviousEmail)
	s.Equal("alice.new@x.io", replaced.User.Email)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "alice.new@x.io", Password: alicePassword}, "")
	s.Equal(http.StatusOK, status)
}

func (s *Suite) TestDeactivationAndReactivation() {
	session := s.activeSession("alice", "alice@x.io")

	status, resp := s.do(http.MethodPost, "/api/v1/auth/request-account-deactivation", nil, session.Tokens.AccessToken)
	s.Require().Equal(http.StatusOK, status)
	var requested otpData
	s.decode(resp.Data, &requested)

	status, resp = s.do(http.MethodPost, "/api/v1/auth/deactivate-account",
		dto.OTPRequest{OTP: requested.OTP}, session.Tokens.AccessToken)
	s.Require().Equal(http.StatusOK, status)
	var deactivated dto.AccountData
	s.decode(resp.Data, &deactivated)
	s.Equal(domain.AccountStatusDeactivated, deactivated.User.Status)
	s.NotNil(deactivated.User.DeactivationDate)

	status, _ = s.do(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "alice@x.io", Password: alicePassword}, "")
	s.Equal(http.StatusBadRequest, status)

	status, resp = s.do(http.MethodPost, "/api/v1/auth/request-account-reactivation", dto.EmailRequest{Email: "alice@x.io"}, "")
	s.Require().Equal(http.StatusOK, status)
	s.decode(resp.Data, &requested)

	status, resp = s.do(http.MethodPost, "/api/v1/auth/reactivate-account", dto.OTPRequest{OTP: requested.OTP}, "")
	s.Require().Equal(http.StatusOK, status)
	var reactivated dto.AccountData
	s.decode(resp.Data, &reactivated)
	s.Equal(domain.AccountStatusActive, reactivated.User.Status)
	s.Nil(reactivated.User.DeactivationDate)
}
