package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{Version: "test-version", Env: "test"}
}

func TestHealthHandler_Health_NoChecks(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Checks)
}

func TestHealthHandler_Health_ReportsFailingCheck(t *testing.T) {
	checks := map[string]HealthCheck{
		"postgres": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}
	handler := NewHealthHandler(testConfig(), checks, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "error"}, resp.Checks)
}

func TestHealthHandler_Ping(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(testConfig(), nil, zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-version", resp.Version)
	assert.Equal(t, "ekaya-risk-engine", resp.Service)
	assert.Equal(t, "test", resp.Environment)
}
