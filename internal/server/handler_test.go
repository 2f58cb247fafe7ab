package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"milesync/internal"
	"milesync/internal/auth"
	"milesync/internal/backend"
	"milesync/internal/config"
	"milesync/internal/programs"
	"milesync/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		BackendClientID:      "client-1",
		BackendTimeoutMs:     2000,
		BackendRateLimitRPS:  1000,
		BackendMaxAttempts:   1,
		ServerEnv:            "test",
		ServerRequestsPerSec: 1000,
		ServerBurst:          1000,
		SyncCooldownSec:      300,
		SessionTTLHours:      1,
		SyncRequireAuth:      true,
		AuthSecret:           "test-secret",
		AuthIssuer:           "milesyncd",
		Weights:              config.DefaultWeights(),
	}
}

func newTestRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	return newTestRouterWith(t, cfg, programs.Default())
}

func newTestRouterWith(t *testing.T, cfg config.Config, registry *programs.Registry) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := storage.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return SetupRouter(cfg, NewHandler(db, registry, testTokens(t, cfg), cfg, nil))
}

func testTokens(t *testing.T, cfg config.Config) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens(cfg.AuthSecret, cfg.AuthIssuer)
	require.NoError(t, err)
	return tokens
}

func latamBalance() internal.DetectedData {
	return internal.DetectedData{
		Program:    "LATAM",
		Balance:    89000,
		RawText:    "89.000",
		Confidence: internal.ConfidenceHigh,
		Score:      175,
		CapturedAt: "2026-03-01T12:00:00Z",
		URL:        "https://latampass.latam.com/pt_br/minha-conta",
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, testConfig())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestClientServerRoundTrip(t *testing.T) {
	cfg := testConfig()
	srv := httptest.NewServer(newTestRouter(t, cfg))
	defer srv.Close()
	cfg.BackendBaseURL = srv.URL

	ctx := context.Background()
	client := backend.NewHTTPClient(cfg, nil)

	consent, err := client.CheckConsent(ctx)
	require.NoError(t, err)
	assert.False(t, consent)

	require.NoError(t, client.SetConsent(ctx, true))
	consent, err = client.CheckConsent(ctx)
	require.NoError(t, err)
	assert.True(t, consent)

	authed, err := client.CheckAuth(ctx)
	require.NoError(t, err)
	assert.False(t, authed)

	_, err = client.SyncMiles(ctx, latamBalance())
	assert.ErrorIs(t, err, backend.ErrUnauthorized)

	assert.ErrorIs(t, client.SetAuth(ctx, "tok-abc"), backend.ErrUnauthorized, "opaque token")
	forger, err := auth.NewTokens("guessed-secret", cfg.AuthIssuer)
	require.NoError(t, err)
	forged, err := forger.Issue(cfg.BackendClientID, time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, client.SetAuth(ctx, forged), backend.ErrUnauthorized, "forged token")
	otherClient, err := testTokens(t, cfg).Issue("client-2", time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, client.SetAuth(ctx, otherClient), backend.ErrUnauthorized, "token issued to another client")
	authed, err = client.CheckAuth(ctx)
	require.NoError(t, err)
	assert.False(t, authed)

	issued, err := testTokens(t, cfg).Issue(cfg.BackendClientID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, client.SetAuth(ctx, issued))
	authed, err = client.CheckAuth(ctx)
	require.NoError(t, err)
	assert.True(t, authed)

	limit, err := client.CheckRateLimit(ctx, "LATAM")
	require.NoError(t, err)
	assert.True(t, limit.Allowed)

	res, err := client.SyncMiles(ctx, latamBalance())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "89000")

	limit, err = client.CheckRateLimit(ctx, "LATAM")
	require.NoError(t, err)
	assert.False(t, limit.Allowed)
	assert.Contains(t, limit.Message, "try again")

	limit, err = client.CheckRateLimit(ctx, "SMILES")
	require.NoError(t, err)
	assert.True(t, limit.Allowed, "cooldown is per program")

	_, err = client.SyncMiles(ctx, latamBalance())
	assert.ErrorIs(t, err, backend.ErrRateLimited)

	require.NoError(t, client.Logout(ctx))
	authed, err = client.CheckAuth(ctx)
	require.NoError(t, err)
	assert.False(t, authed)
}

func postMessage(router http.Handler, clientID string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if clientID != "" {
		req.Header.Set(clientHeader, clientID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMessagesValidation(t *testing.T) {
	cfg := testConfig()
	cfg.SyncRequireAuth = false
	router := newTestRouter(t, cfg)

	outOfRange := latamBalance()
	outOfRange.Balance = 10_000_000
	unknown := latamBalance()
	unknown.Program = "TAP"

	tests := []struct {
		name     string
		clientID string
		body     any
		want     int
	}{
		{"missing client id", "", backend.Message{Action: backend.ActionCheckConsent}, http.StatusBadRequest},
		{"unknown action", "c1", backend.Message{Action: "wipe"}, http.StatusBadRequest},
		{"set consent without flag", "c1", backend.Message{Action: backend.ActionSetConsent}, http.StatusBadRequest},
		{"set auth without token", "c1", backend.Message{Action: backend.ActionSetAuth}, http.StatusBadRequest},
		{"rate limit unknown program", "c1", backend.Message{Action: backend.ActionCheckRateLimit, ProgramCode: "TAP"}, http.StatusBadRequest},
		{"sync without data", "c1", backend.Message{Action: backend.ActionSyncMiles}, http.StatusBadRequest},
		{"sync unknown program", "c1", backend.Message{Action: backend.ActionSyncMiles, Data: &unknown}, http.StatusBadRequest},
		{"sync out of range", "c1", backend.Message{Action: backend.ActionSyncMiles, Data: &outOfRange}, http.StatusBadRequest},
		{"sync without auth when not required", "c1", backend.Message{Action: backend.ActionSyncMiles, Data: func() *internal.DetectedData { d := latamBalance(); return &d }()}, http.StatusOK},
		{"malformed body", "c1", "not an object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postMessage(router, tt.clientID, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			var resp backend.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.want == http.StatusOK, resp.Success)
		})
	}
}

func TestCooldownMatchesRegisteredCode(t *testing.T) {
	cfg := testConfig()
	cfg.SyncRequireAuth = false
	registry := programs.New([]internal.Program{
		{Name: "Tap Miles", Code: "TapMiles", Key: "tap", Hosts: []string{"flytap.com"}},
	})
	router := newTestRouterWith(t, cfg, registry)

	data := latamBalance()
	data.Program = "tapmiles"
	w := postMessage(router, "c1", backend.Message{Action: backend.ActionSyncMiles, Data: &data})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, code := range []string{"TapMiles", "TAPMILES", "tapmiles"} {
		w = postMessage(router, "c1", backend.Message{Action: backend.ActionCheckRateLimit, ProgramCode: code})
		require.Equal(t, http.StatusOK, w.Code)
		var resp backend.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Allowed, code)
	}

	w = postMessage(router, "c1", backend.Message{Action: backend.ActionSyncMiles, Data: &data})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.ServerRequestsPerSec = 1
	cfg.ServerBurst = 2
	router := newTestRouter(t, cfg)

	msg := backend.Message{Action: backend.ActionCheckConsent}
	assert.Equal(t, http.StatusOK, postMessage(router, "c1", msg).Code)
	assert.Equal(t, http.StatusOK, postMessage(router, "c1", msg).Code)
	assert.Equal(t, http.StatusTooManyRequests, postMessage(router, "c1", msg).Code)
	assert.Equal(t, http.StatusOK, postMessage(router, "c2", msg).Code, "limits are per client")
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))
}
