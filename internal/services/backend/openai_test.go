package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Egham-7/repurpose-api/internal/models"
	openaiOption "github.com/openai/openai-go/v2/option"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIBackend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewOpenAIBackend(models.GenerationConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL + "/",
		Model:       "gpt-4o-mini",
		MaxTokens:   1500,
		Temperature: 0.7,
	}, openaiOption.WithMaxRetries(0))
}

func TestOpenAIBackendProduce(t *testing.T) {
	var got map[string]any
	b := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  1. Hook one  "}}]
		}`)
	})

	content, err := b.Produce(context.Background(), "my transcript", models.OutputHooks)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if content != "1. Hook one" {
		t.Fatalf("content = %q", content)
	}

	if got["model"] != "gpt-4o-mini" || got["max_tokens"] != float64(1500) || got["temperature"] != 0.7 {
		t.Fatalf("request params = %v", got)
	}
	messages, _ := got["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %v", got["messages"])
	}
	system, _ := messages[0].(map[string]any)
	if system["role"] != "system" || system["content"] != systemPrompt {
		t.Fatalf("system message = %v", system)
	}
	user, _ := messages[1].(map[string]any)
	if user["role"] != "user" || user["content"] != BuildPrompt("my transcript", models.OutputHooks) {
		t.Fatalf("user message = %v", user)
	}
}

func TestOpenAIBackendNoChoice(t *testing.T) {
	b := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"chatcmpl-2","object":"chat.completion","created":1700000000,"model":"gpt-4o-mini","choices":[]}`)
	})

	_, err := b.Produce(context.Background(), "t", models.OutputHooks)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
}

func TestOpenAIBackendUpstreamStatus(t *testing.T) {
	b := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	})

	_, err := b.Produce(context.Background(), "t", models.OutputHooks)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if upstream.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", upstream.StatusCode)
	}
}

func TestOpenAIBackendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/"
	server.Close()

	b := NewOpenAIBackend(models.GenerationConfig{APIKey: "k", BaseURL: url, Model: "gpt-4o-mini"}, openaiOption.WithMaxRetries(0))
	_, err := b.Produce(context.Background(), "t", models.OutputHooks)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
