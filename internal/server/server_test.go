package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatrelay/chatrelay/internal/config"
	apperrors "github.com/chatrelay/chatrelay/internal/errors"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, nil).Handler()
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestRelayRoutesAbsentWithoutRelay(t *testing.T) {
	// New(cfg, nil) builds a server without the relay surface, so /v1
	// paths fall through to the 404 envelope.
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/messages/text", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestAdminRoutesDisabledWithoutToken(t *testing.T) {
	t.Setenv(adminTokenEnv, "")

	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unregistered admin surface, got %d", rec.Code)
	}
}

func TestVersionRouteServesJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
}
