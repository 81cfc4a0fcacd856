package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/sensorflow-hub/internal/auth"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/config"
	"github.com/nerrad567/sensorflow-hub/internal/infrastructure/logging"
	"github.com/nerrad567/sensorflow-hub/internal/sensor"
)

// captureSender records issued reset codes so tests can complete the
// reset flow without a delivery channel.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func newCaptureSender() *captureSender {
	return &captureSender{codes: make(map[string]string)}
}

func (c *captureSender) SendResetCode(_ context.Context, email, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[email] = code
	return nil
}

func (c *captureSender) code(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email]
}

// testServer creates a Server backed by the in-memory storage variant.
func testServer(t *testing.T) (*Server, *captureSender) {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := newCaptureSender()

	authSvc, err := auth.NewService(auth.Deps{
		Users:    auth.NewMemoryUserRepository(),
		Sessions: auth.NewMemorySessionRepository(),
		Resets:   auth.NewMemoryResetRepository(),
		Sender:   sender,
		Logger:   quiet,
	})
	if err != nil {
		t.Fatalf("auth.NewService() error: %v", err)
	}

	sensorSvc, err := sensor.NewService(sensor.NewMemoryRepository(), nil, quiet)
	if err != nil {
		t.Fatalf("sensor.NewService() error: %v", err)
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:        log,
		Auth:          authSvc,
		Sensors:       sensorSvc,
		StorageDriver: "memory",
		Version:       "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return srv, sender
}

// registerUser registers an account through the API and returns the
// issued session token.
func registerUser(t *testing.T, router http.Handler, username, email, password string) string {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"email":%q,"password":%q}`, username, email, password)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("register returned an empty token")
	}
	return resp.Token
}

// ─── New() Tests ───────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name  string
		strip func(*Deps)
	}{
		{"missing logger", func(d *Deps) { d.Logger = nil }},
		{"missing auth service", func(d *Deps) { d.Auth = nil }},
		{"missing sensor service", func(d *Deps) { d.Sensors = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := Deps{
				Logger:  srv.logger,
				Auth:    srv.auth,
				Sensors: srv.sensors,
			}
			tt.strip(&deps)
			if _, err := New(deps); err == nil {
				t.Error("New() should fail with missing dependency")
			}
		})
	}
}

// ─── Service Info & Health Tests ───────────────────────────────────

func TestServiceInfo(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["service"] != "sensorflow-hub" {
		t.Errorf("service = %v, want sensorflow-hub", resp["service"])
	}
	if resp["storage"] != "memory" {
		t.Errorf("storage = %v, want memory", resp["storage"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	endpoints, ok := resp["endpoints"].(map[string]any)
	if !ok || len(endpoints) == 0 {
		t.Errorf("endpoints missing from info card: %v", resp["endpoints"])
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}

	// Memory variant carries no database, mqtt or influxdb fields
	for _, absent := range []string{"database", "mqtt", "influxdb"} {
		if _, present := resp[absent]; present {
			t.Errorf("health should not report %q for the memory variant", absent)
		}
	}
}

func TestHealth_ContentType(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-ID")
	if requestID == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound_JSONEnvelope(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}

	var resp Error
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", resp.Code, ErrCodeNotFound)
	}
}

func TestMethodNotAllowed_JSONEnvelope(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/auth/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}

	var resp Error
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != ErrCodeMethodNotAllow {
		t.Errorf("error code = %q, want %q", resp.Code, ErrCodeMethodNotAllow)
	}
}

func TestRecovery_PanicReturns500(t *testing.T) {
	srv, _ := testServer(t)

	// Wrap a panicking handler in the full middleware chain
	handler := srv.requestIDMiddleware(srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var resp Error
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Code != ErrCodeInternal {
		t.Errorf("error code = %q, want %q", resp.Code, ErrCodeInternal)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	oversized := strings.Repeat("x", maxRequestBodySize+1)
	body := fmt.Sprintf(`{"username":%q,"email":"a@b.com","password":"secret1"}`, oversized)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
