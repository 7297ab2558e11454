package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/paylode/paylode/internal/auth"
	"github.com/paylode/paylode/internal/handlers"
	"github.com/paylode/paylode/internal/kvstore"
	"github.com/paylode/paylode/internal/obs"
	"github.com/paylode/paylode/internal/repositories"
	"github.com/paylode/paylode/internal/routes"
	"github.com/paylode/paylode/internal/services"
	pkghttp "github.com/paylode/paylode/pkg/http"
	pkglogger "github.com/paylode/paylode/pkg/logger"
)

const (
	testJWTSecret = "integration-test-secret-0123456789abcdef"
	testTOTPKey   = "0123456789abcdef0123456789abcdef"
)

// TestServer wires the full HTTP stack over a real database, with an
// in-memory lockout store. Each server gets its own rate limiter state,
// so tests stay independent.
type TestServer struct {
	Server       *httptest.Server
	TokenManager *auth.TokenManager
	Users        *repositories.UserRepository
	Sessions     *repositories.SessionChainRepository
	AuditLogs    *repositories.AuditLogRepository
	LockStore    *kvstore.MemoryStore
}

func NewTestServer(t *testing.T, testDB *TestDB) *TestServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger := pkglogger.NewAuditLogger(logger)
	metrics := obs.NewMetrics(prometheus.NewRegistry())

	userRepo := repositories.NewUserRepository(testDB.DB)
	sessionRepo := repositories.NewSessionChainRepository(testDB.DB)
	auditRepo := repositories.NewAuditLogRepository(testDB.DB)

	tm := auth.NewTokenManager(testJWTSecret, 15*time.Minute, 7*24*time.Hour)
	totpManager, err := auth.NewTOTPManager([]byte(testTOTPKey), "paylode-test")
	if err != nil {
		t.Fatalf("failed to create totp manager: %v", err)
	}

	lockStore := kvstore.NewMemoryStore()
	lockoutService := services.NewLockoutService(lockStore, 5, 15*time.Minute, time.Hour, logger)
	sessionService := services.NewSessionService(sessionRepo, logger)
	auditService := services.NewAuditService(auditRepo, auditLogger, logger)
	authService := services.NewAuthService(
		userRepo, sessionService, lockoutService,
		tm, totpManager, nil,
		7*24*time.Hour, logger, auditLogger, metrics,
	)
	userService := services.NewUserService(userRepo, sessionService, auditService, logger)

	ipConfig := &pkghttp.IPConfig{}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	adminHandler := handlers.NewAdminHandler(userService, auditService, ipConfig)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	routes.RegisterRoutes(router, authHandler, adminHandler, tm, sessionService)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:       server,
		TokenManager: tm,
		Users:        userRepo,
		Sessions:     sessionRepo,
		AuditLogs:    auditRepo,
		LockStore:    lockStore,
	}
}

// PostJSON sends a JSON POST to the test server and returns the response.
func (ts *TestServer) PostJSON(t *testing.T, path string, body any, token string) *http.Response {
	t.Helper()
	return ts.doJSON(t, http.MethodPost, path, body, token)
}

// Do sends a request with an optional JSON body and bearer token.
func (ts *TestServer) Do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	return ts.doJSON(t, method, path, body, token)
}

func (ts *TestServer) doJSON(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, ts.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// DecodeJSON reads the response body into dst.
func DecodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// AuthTokens mirrors the auth endpoint envelope: the user plus the token
// pair nested under "tokens".
type AuthTokens struct {
	User struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Role     string `json:"role"`
		Status   string `json:"status"`
	} `json:"user"`
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"tokens"`
}
