package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdminClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"cleared": 3}`))
	}))
	defer ts.Close()

	client := &adminClient{baseURL: ts.URL, token: "secret", http: ts.Client()}

	var result struct {
		Cleared int `json:"cleared"`
	}
	err := client.post(context.Background(), "/admin/rate-limits/reset", map[string]any{"user_id": 7}, &result)
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, 3, result.Cleared)
}

func TestAdminClientSurfacesEnvelopeErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"admin token required"}}`))
	}))
	defer ts.Close()

	client := &adminClient{baseURL: ts.URL, token: "wrong", http: ts.Client()}

	err := client.get(context.Background(), "/admin/stats", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "UNAUTHORIZED")
	require.Contains(t, err.Error(), "admin token required")
}

func TestAdminClientReportsPlainStatuses(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := &adminClient{baseURL: ts.URL, token: "secret", http: ts.Client()}

	err := client.get(context.Background(), "/admin/stats", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
