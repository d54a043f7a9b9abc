package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatrelay/chatrelay/internal/relay/content"
)

func TestClientRequiresAPIKey(t *testing.T) {
	client := NewClient("", "")
	_, err := client.Complete(context.Background(), &Request{Model: "test", Messages: []content.Message{content.Text(content.RoleUser, "hi")}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key")
}

func TestClientSendsRequestAndParsesStringContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Equal(t, "test-model", payload["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	text, err := client.Complete(context.Background(), &Request{
		Model: "test-model",
		Messages: []content.Message{
			content.Text(content.RoleSystem, "sys"),
			content.Text(content.RoleUser, "usr"),
		},
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", text)
}

func TestClientJoinsTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"first"},{"type":"tool_use","text":"skipped"},{"type":"text","text":"second"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	text, err := client.Complete(context.Background(), &Request{Model: "m", Messages: []content.Message{content.Text(content.RoleUser, "hi")}})
	require.NoError(t, err)
	require.Equal(t, "first\nsecond", text)
}

func TestClientSendsMixedImageContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var payload struct {
			Messages []struct {
				Role    string `json:"role"`
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
					URL  string `json:"url"`
				} `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Len(t, payload.Messages, 1)
		require.Len(t, payload.Messages[0].Content, 2)
		require.Equal(t, "text", payload.Messages[0].Content[0].Type)
		require.Equal(t, "what is this?", payload.Messages[0].Content[0].Text)
		require.Equal(t, "image_url", payload.Messages[0].Content[1].Type)
		require.Equal(t, "data:image/png;base64,aGk=", payload.Messages[0].Content[1].URL)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"a png"}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	text, err := client.Complete(context.Background(), &Request{
		Model:    "m",
		Messages: []content.Message{content.ImageWithCaption("data:image/png;base64,aGk=", "what is this?")},
	})
	require.NoError(t, err)
	require.Equal(t, "a png", text)
}

func TestClientErrorsOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("nope"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	_, err := client.Complete(context.Background(), &Request{Model: "m", Messages: []content.Message{content.Text(content.RoleUser, "hi")}})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	require.Contains(t, perr.Message, "nope")
	require.False(t, perr.Retryable())
}

func TestClientRejectsMalformedShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	client.HTTPClient = server.Client()

	_, err := client.Complete(context.Background(), &Request{Model: "m", Messages: []content.Message{content.Text(content.RoleUser, "hi")}})
	require.Error(t, err)

	var merr *MalformedError
	require.ErrorAs(t, err, &merr)
	require.Contains(t, merr.Reason, "no choices")
}
