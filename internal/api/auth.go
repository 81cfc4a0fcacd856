package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/sensorflow-hub/internal/auth"
)

// registerRequest is the request body for POST /api/auth/register.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest is the request body for POST /api/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type verifyResetCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// handleRegister creates an account and issues its first session.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeBadRequest(w, "username, email and password are required")
		return
	}

	creds, err := s.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUsernameExists):
		writeConflict(w, "username already taken")
		return
	case errors.Is(err, auth.ErrEmailExists):
		writeConflict(w, "email already registered")
		return
	case errors.Is(err, auth.ErrUsernameTooShort),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrEmailInvalid):
		writeValidationError(w, err.Error())
		return
	default:
		s.logger.Error("registration failed", "error", err)
		writeInternalError(w, "failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, creds)
}

// handleLogin verifies credentials and issues a new session.
// Prior sessions for the user stay valid.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	creds, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, creds)
}

// handleLogout revokes the presented session. The guard has already
// validated the token, so failures here are infrastructure errors.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)
	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.logger.Error("logout failed", "error", err)
		writeInternalError(w, "failed to log out")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// handleMe returns the authenticated user's profile.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "invalid or missing token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// handleForgotPassword starts the reset flow. The response is identical
// whether or not the email is registered.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	if err := s.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		s.logger.Error("forgot password failed", "error", err)
		writeInternalError(w, "failed to process request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "if that email is registered, a reset code has been sent",
	})
}

// handleVerifyResetCode checks a code without consuming it.
func (s *Server) handleVerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req verifyResetCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Code == "" {
		writeBadRequest(w, "email and code are required")
		return
	}

	err := s.auth.VerifyResetCode(r.Context(), req.Email, req.Code)
	switch {
	case err == nil:
	case isResetFlowError(err):
		writeBadRequest(w, "invalid or expired reset code")
		return
	default:
		s.logger.Error("verify reset code failed", "error", err)
		writeInternalError(w, "failed to verify code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "code verified"})
}

// handleResetPassword consumes a code, rotates the credential and
// revokes every session the user had.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Code == "" || req.NewPassword == "" {
		writeBadRequest(w, "email, code and new_password are required")
		return
	}

	err := s.auth.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrPasswordTooShort):
		writeValidationError(w, err.Error())
		return
	case isResetFlowError(err):
		writeBadRequest(w, "invalid or expired reset code")
		return
	default:
		s.logger.Error("reset password failed", "error", err)
		writeInternalError(w, "failed to reset password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset successful"})
}

// isResetFlowError reports whether err is one of the internal reset-code
// failures. Clients get a single generic message for all of them.
func isResetFlowError(err error) bool {
	return errors.Is(err, auth.ErrCodeNotFound) ||
		errors.Is(err, auth.ErrCodeExpired) ||
		errors.Is(err, auth.ErrCodeMismatch) ||
		errors.Is(err, auth.ErrCodeAlreadyUsed)
}
