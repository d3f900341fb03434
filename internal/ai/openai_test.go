package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_GenerateJSON(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"text\":\"q\"}"}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	out, err := p.GenerateJSON(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"text":"q"}`, out)
	assert.Equal(t, "m", body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
}

func TestOpenAIProvider_ChatMapsRoles(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIOptions{APIKey: "sk", BaseURL: srv.URL})
	require.NoError(t, err)

	out, err := p.Chat(context.Background(), "sys", []ChatMessage{NewChatMessage(RoleModel, "earlier")}, "now")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "assistant", body.Messages[1].Role)
	assert.Equal(t, "now", body.Messages[2].Content)
}

func TestOpenAIProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIOptions{APIKey: "sk", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.Describe(context.Background(), "x", "image/png", []byte{1})
	require.ErrorContains(t, err, "rate limited")

	_, err = NewOpenAIProvider(OpenAIOptions{})
	require.Error(t, err)
}

func TestOpenAIProvider_ChatKeepsRepeatedMessage(t *testing.T) {
	var body struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(OpenAIOptions{APIKey: "sk", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), "sys", []ChatMessage{NewChatMessage(RoleUser, "hi")}, "hi")
	require.NoError(t, err)
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "user", body.Messages[1].Role)
	assert.Equal(t, "hi", body.Messages[1].Content)
	assert.Equal(t, "user", body.Messages[2].Role)
	assert.Equal(t, "hi", body.Messages[2].Content)
}
