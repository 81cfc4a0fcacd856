package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// ─── Register Tests ────────────────────────────────────────────────

func TestRegister_IssuesWorkingToken(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"username":"alice","email":"Alice@Example.com","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp struct {
		User struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.User.Username != "alice" {
		t.Errorf("username = %q, want alice", resp.User.Username)
	}
	if resp.User.Email != "alice@example.com" {
		t.Errorf("email = %q, want lowercased alice@example.com", resp.User.Email)
	}
	if resp.Token == "" {
		t.Fatal("token is empty")
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Errorf("expires_at = %v, want in the future", resp.ExpiresAt)
	}

	// The hash must never appear in the payload
	if strings.Contains(w.Body.String(), "password_hash") {
		t.Error("response leaks password_hash")
	}

	// Token from registration authenticates immediately
	meReq := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+resp.Token)
	meW := httptest.NewRecorder()
	router.ServeHTTP(meW, meReq)

	if meW.Code != http.StatusOK {
		t.Errorf("me status = %d, want %d; body: %s", meW.Code, http.StatusOK, meW.Body.String())
	}
}

func TestRegister_Validation(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name string
		body string
	}{
		{"missing fields", `{"username":"alice"}`},
		{"short username", `{"username":"ab","email":"a@b.com","password":"secret1"}`},
		{"short password", `{"username":"alice","email":"a@b.com","password":"abc"}`},
		{"bad email", `{"username":"alice","email":"not-an-email","password":"secret1"}`},
		{"invalid JSON", `{"username":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	registerUser(t, router, "alice", "alice@example.com", "secret1")

	tests := []struct {
		name string
		body string
	}{
		{"duplicate username", `{"username":"alice","email":"other@example.com","password":"secret1"}`},
		{"duplicate email", `{"username":"bob","email":"alice@example.com","password":"secret1"}`},
		{"case-variant duplicate email", `{"username":"carol","email":"ALICE@EXAMPLE.COM","password":"secret1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusConflict {
				t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusConflict, w.Body.String())
			}

			var resp Error
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Code != ErrCodeConflict {
				t.Errorf("error code = %q, want %q", resp.Code, ErrCodeConflict)
			}
		})
	}
}

// ─── Login Tests ───────────────────────────────────────────────────

func TestLogin_Succeeds(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	first := registerUser(t, router, "alice", "alice@example.com", "secret1")

	body := `{"username":"alice","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		User  struct {
			LastLogin *time.Time `json:"last_login"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Token == "" || resp.Token == first {
		t.Errorf("login should issue a fresh token")
	}
	if resp.User.LastLogin == nil {
		t.Error("last_login should be stamped on login")
	}

	// Both the registration session and the login session stay valid
	for _, token := range []string{first, resp.Token} {
		meReq := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		meReq.Header.Set("Authorization", "Bearer "+token)
		meW := httptest.NewRecorder()
		router.ServeHTTP(meW, meReq)
		if meW.Code != http.StatusOK {
			t.Errorf("me with token %s... = %d, want %d", token[:8], meW.Code, http.StatusOK)
		}
	}
}

func TestLogin_Rejections(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	registerUser(t, router, "alice", "alice@example.com", "secret1")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"wrong password", `{"username":"alice","password":"wrong-pass"}`, http.StatusUnauthorized},
		{"unknown user", `{"username":"nobody","password":"secret1"}`, http.StatusUnauthorized},
		{"missing password", `{"username":"alice"}`, http.StatusBadRequest},
		{"invalid JSON", `{"username"`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

// ─── Session Guard Tests ───────────────────────────────────────────

func TestSessionGuard_IdenticalRejections(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	// Build a token that is valid in shape but unknown to the store,
	// and an expired-looking one by logging out a real session.
	revoked := registerUser(t, router, "alice", "alice@example.com", "secret1")
	logoutReq := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	logoutReq.Header.Set("Authorization", "Bearer "+revoked)
	logoutW := httptest.NewRecorder()
	router.ServeHTTP(logoutW, logoutReq)
	if logoutW.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want %d", logoutW.Code, http.StatusOK)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"one part", "Bearer"},
		{"wrong scheme", "Basic abc123"},
		{"three parts", "Bearer abc def"},
		{"double space", "Bearer  abc"},
		{"unknown token", "Bearer " + strings.Repeat("ab", 32)},
		{"revoked token", "Bearer " + revoked},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sensors/data", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			bodies = append(bodies, w.Body.String())
		})
	}

	// Every rejection must be byte-identical so callers cannot probe
	// which failure they hit
	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("rejection body %d differs:\n%s\nvs\n%s", i, bodies[i], bodies[0])
		}
	}
}

// ─── Logout Tests ──────────────────────────────────────────────────

func TestLogout_RevokesSession(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	token := registerUser(t, router, "alice", "alice@example.com", "secret1")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// The revoked token no longer passes the guard: logout is now a 401
	// like any other invalid token, revealing nothing
	again := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	again.Header.Set("Authorization", "Bearer "+token)
	againW := httptest.NewRecorder()
	router.ServeHTTP(againW, again)

	if againW.Code != http.StatusUnauthorized {
		t.Errorf("second logout status = %d, want %d", againW.Code, http.StatusUnauthorized)
	}
}

// ─── Me Tests ──────────────────────────────────────────────────────

func TestMe_ReturnsProfile(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	token := registerUser(t, router, "alice", "alice@example.com", "secret1")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.User.Username != "alice" {
		t.Errorf("username = %q, want alice", resp.User.Username)
	}
	if strings.Contains(w.Body.String(), "password_hash") {
		t.Error("profile leaks password_hash")
	}
}

// ─── Password Reset Flow Tests ─────────────────────────────────────

func TestForgotPassword_IdenticalForUnknownEmail(t *testing.T) {
	srv, sender := testServer(t)
	router := srv.buildRouter()

	registerUser(t, router, "alice", "alice@example.com", "secret1")

	var responses []string
	for _, email := range []string{"alice@example.com", "ghost@example.com"} {
		body := fmt.Sprintf(`{"email":%q}`, email)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/forgot-password", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("forgot status for %s = %d, want %d", email, w.Code, http.StatusOK)
		}
		responses = append(responses, w.Body.String())
	}

	if responses[0] != responses[1] {
		t.Errorf("known and unknown emails got different responses:\n%s\nvs\n%s", responses[0], responses[1])
	}

	// A code was issued only for the registered address
	if sender.code("alice@example.com") == "" {
		t.Error("no code issued for the registered email")
	}
	if sender.code("ghost@example.com") != "" {
		t.Error("a code was issued for an unknown email")
	}
}

func TestForgotPassword_MissingEmail(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/forgot-password", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestVerifyResetCode(t *testing.T) {
	srv, sender := testServer(t)
	router := srv.buildRouter()

	registerUser(t, router, "alice", "alice@example.com", "secret1")

	forgotBody := `{"email":"alice@example.com"}`
	forgotReq := httptest.NewRequest(http.MethodPost, "/api/auth/forgot-password", strings.NewReader(forgotBody))
	forgotW := httptest.NewRecorder()
	router.ServeHTTP(forgotW, forgotReq)
	if forgotW.Code != http.StatusOK {
		t.Fatalf("forgot status = %d, want %d", forgotW.Code, http.StatusOK)
	}

	code := sender.code("alice@example.com")
	if len(code) != 6 {
		t.Fatalf("issued code = %q, want 6 digits", code)
	}

	// Correct code verifies, and verification does not consume
	for i := 0; i < 2; i++ {
		body := fmt.Sprintf(`{"email":"alice@example.com","code":%q}`, code)
		req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-reset-code", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("verify attempt %d status = %d, want %d; body: %s", i+1, w.Code, http.StatusOK, w.Body.String())
		}
	}

	// Wrong code and unknown email both get the same generic 400
	rejections := []string{
		fmt.Sprintf(`{"email":"alice@example.com","code":%q}`, wrongCode(code)),
		fmt.Sprintf(`{"email":"ghost@example.com","code":%q}`, code),
	}
	for _, body := range rejections {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-reset-code", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("verify rejection status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
		}
	}
}

func TestResetPassword_FullCycle(t *testing.T) {
	srv, sender := testServer(t)
	router := srv.buildRouter()

	oldToken := registerUser(t, router, "alice", "alice@example.com", "secret1")

	forgotReq := httptest.NewRequest(http.MethodPost, "/api/auth/forgot-password",
		strings.NewReader(`{"email":"alice@example.com"}`))
	forgotW := httptest.NewRecorder()
	router.ServeHTTP(forgotW, forgotReq)
	if forgotW.Code != http.StatusOK {
		t.Fatalf("forgot status = %d", forgotW.Code)
	}
	code := sender.code("alice@example.com")

	// Too-short replacement password is rejected before the code burns
	shortBody := fmt.Sprintf(`{"email":"alice@example.com","code":%q,"new_password":"abc"}`, code)
	shortReq := httptest.NewRequest(http.MethodPost, "/api/auth/reset-password", strings.NewReader(shortBody))
	shortW := httptest.NewRecorder()
	router.ServeHTTP(shortW, shortReq)
	if shortW.Code != http.StatusBadRequest {
		t.Fatalf("short password status = %d, want %d", shortW.Code, http.StatusBadRequest)
	}

	// Real reset
	resetBody := fmt.Sprintf(`{"email":"alice@example.com","code":%q,"new_password":"fresh-pass-1"}`, code)
	resetReq := httptest.NewRequest(http.MethodPost, "/api/auth/reset-password", strings.NewReader(resetBody))
	resetW := httptest.NewRecorder()
	router.ServeHTTP(resetW, resetReq)
	if resetW.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want %d; body: %s", resetW.Code, http.StatusOK, resetW.Body.String())
	}

	// Old password no longer logs in
	oldLogin := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"secret1"}`))
	oldLoginW := httptest.NewRecorder()
	router.ServeHTTP(oldLoginW, oldLogin)
	if oldLoginW.Code != http.StatusUnauthorized {
		t.Errorf("old password login status = %d, want %d", oldLoginW.Code, http.StatusUnauthorized)
	}

	// Old session is dead
	meReq := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+oldToken)
	meW := httptest.NewRecorder()
	router.ServeHTTP(meW, meReq)
	if meW.Code != http.StatusUnauthorized {
		t.Errorf("old session status = %d, want %d", meW.Code, http.StatusUnauthorized)
	}

	// New password works
	newLogin := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"alice","password":"fresh-pass-1"}`))
	newLoginW := httptest.NewRecorder()
	router.ServeHTTP(newLoginW, newLogin)
	if newLoginW.Code != http.StatusOK {
		t.Errorf("new password login status = %d, want %d; body: %s", newLoginW.Code, http.StatusOK, newLoginW.Body.String())
	}

	// The code was consumed: replaying the reset is a 400
	replayW := httptest.NewRecorder()
	replayReq := httptest.NewRequest(http.MethodPost, "/api/auth/reset-password", strings.NewReader(resetBody))
	router.ServeHTTP(replayW, replayReq)
	if replayW.Code != http.StatusBadRequest {
		t.Errorf("replayed reset status = %d, want %d", replayW.Code, http.StatusBadRequest)
	}
}

// wrongCode returns a 6-digit code that differs from the given one.
func wrongCode(code string) string {
	if code == "123456" {
		return "654321"
	}
	return "123456"
}
