package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fedquery/fedquery/internal/auth"
	"github.com/fedquery/fedquery/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("fedquery-api", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(testConfig(t), Dependencies{Logger: testLogger()})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestReadyEndpointFailure(t *testing.T) {
	deps := Dependencies{
		Logger: testLogger(),
		Readiness: func(context.Context) error {
			return errors.New("metadata db unreachable")
		},
	}
	handler := NewHandler(testConfig(t), deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestAuthRequiredProtectsFederate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Required = true

	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst:query_runner")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	deps := Dependencies{
		Logger:         testLogger(),
		AuthMiddleware: auth.Middleware(testLogger(), validator),
		Federator:      &fakeFederator{},
		Store:          newMemoryStore(),
		Federation:     cfg.Federation,
	}
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/federate", strings.NewReader(`{}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/federate", strings.NewReader(`{"query":"SELECT 1","connection_ids":["conn-1"]}`))
	req.Header.Set("X-API-Key", "k1")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status with key = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestHealthUnprotectedWhenAuthRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Required = true
	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst:query_runner")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	handler := NewHandler(cfg, Dependencies{
		Logger:         testLogger(),
		AuthMiddleware: auth.Middleware(testLogger(), validator),
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestCombineReadinessChecksStopsAtFirstFailure(t *testing.T) {
	calls := 0
	failing := func(context.Context) error {
		calls++
		return errors.New("down")
	}
	never := func(context.Context) error {
		t.Fatal("second check should not run")
		return nil
	}

	combined := CombineReadinessChecks(nil, failing, never)
	if err := combined(context.Background()); err == nil {
		t.Fatal("expected combined check to fail")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
