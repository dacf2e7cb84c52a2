package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/tollgate/internal/model"
	"github.com/faucetdb/tollgate/internal/service"
	"github.com/faucetdb/tollgate/internal/store"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const testJWTSecret = "test-secret-for-jwt-integration-tests"

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server *Server
	store  *store.Store
	keys   *service.KeyService
	admin  *service.AdminAuth
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// fully wired Server.
func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	st, err := store.Open(store.Config{Driver: store.DriverSQLite})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := service.NewKeyService(st, 0, logger)
	admin := service.NewAdminAuth(testJWTSecret)

	return &testEnv{
		server: New(cfg, keys, admin, st, logger),
		store:  st,
		keys:   keys,
		admin:  admin,
	}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	tok, err := e.admin.IssueToken("ops", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return tok
}

// do executes a request against the server, adding a bearer token when
// token is non-empty.
func (e *testEnv) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	rr := env.do(t, "GET", "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	if rr := env.do(t, "GET", "/readyz", ""); rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestReadyzDegraded(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(DefaultConfig(), nil, service.NewAdminAuth(testJWTSecret), failingPinger{}, logger)

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("GET", "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}

	var body map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "degraded" {
		t.Errorf("status = %v", body["status"])
	}
}

// ---------------------------------------------------------------------------
// Admin API
// ---------------------------------------------------------------------------

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())

	for _, tc := range []struct{ method, path string }{
		{"POST", "/api/v1/keys/60"},
		{"GET", "/api/v1/keys"},
		{"POST", "/api/v1/keys/reload"},
	} {
		if rr := env.do(t, tc.method, tc.path, ""); rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestIssueKeyThenPassGate(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	tok := env.token(t)

	rr := env.do(t, "POST", "/api/v1/keys/60", tok)
	if rr.Code != http.StatusCreated {
		t.Fatalf("generate: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var k model.KeyResponse
	if err := json.NewDecoder(rr.Body).Decode(&k); err != nil {
		t.Fatal(err)
	}

	if rr := env.do(t, "GET", "/gate/"+k.Key, ""); rr.Code != http.StatusOK {
		t.Errorf("gate by path: expected 200, got %d", rr.Code)
	}

	req := httptest.NewRequest("GET", "/gate", nil)
	req.Header.Set("X-Access-Key", k.Key)
	rr = httptest.NewRecorder()
	env.server.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("gate by header: expected 200, got %d", rr.Code)
	}

	if rr := env.do(t, "DELETE", "/api/v1/key/"+k.Key, tok); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}
	if rr := env.do(t, "GET", "/gate/"+k.Key, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("gate after delete: expected 401, got %d", rr.Code)
	}
}

func TestCustomKeyHeader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeyHeader = "X-Tollgate-Key"
	env := newTestEnv(t, cfg)

	k, err := env.keys.GenerateKey(context.Background(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/gate", nil)
	req.Header.Set("X-Tollgate-Key", k.Key.String())
	rr := httptest.NewRecorder()
	env.server.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestRateLimitEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 2
	env := newTestEnv(t, cfg)

	var last int
	for i := 0; i < 3; i++ {
		last = env.do(t, "GET", "/healthz", "").Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("expected 429 on third request, got %d", last)
	}
}

// ---------------------------------------------------------------------------
// OpenAPI
// ---------------------------------------------------------------------------

func TestOpenAPIDocument(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	cfg.KeyHeader = "X-Gate-Key"
	env := newTestEnv(t, cfg)

	// Served without a token.
	rr := env.do(t, "GET", "/openapi.json", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rr.Body.Bytes())
	if err != nil {
		t.Fatalf("LoadFromData: %v", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if doc.Info.Version != "1.2.3" {
		t.Errorf("info.version = %q, want 1.2.3", doc.Info.Version)
	}
	scheme := doc.Components.SecuritySchemes["accessKey"]
	if scheme == nil || scheme.Value.Name != "X-Gate-Key" {
		t.Errorf("accessKey scheme = %+v, want header X-Gate-Key", scheme)
	}

	// Every admin and gate route the router serves is documented.
	err = chi.Walk(env.server.Router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if !strings.HasPrefix(route, "/api/") && !strings.HasPrefix(route, "/gate") {
			return nil
		}
		item := doc.Paths.Find(route)
		if item == nil {
			t.Errorf("route %s %s missing from document", method, route)
			return nil
		}
		if item.GetOperation(method) == nil {
			t.Errorf("route %s %s has no documented operation", method, route)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("chi.Walk: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.ShutdownTimeout = time.Second
	env := newTestEnv(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.ListenAndServe(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
