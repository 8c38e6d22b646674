package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAICompleterSendsPromptAndReadsFirstChoice(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Fatalf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"SELECT COUNT(*) FROM videos;"}},{"message":{"content":"ignored"}}]}`))
	}))
	defer server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL + "/", APIKey: "sk-test", Model: "gpt-test"})
	if err != nil {
		t.Fatalf("NewOpenAICompleter() error = %v", err)
	}
	text, err := completer.Complete(context.Background(), "Вопрос: сколько видео?\nSQL:")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "SELECT COUNT(*) FROM videos;" {
		t.Fatalf("Complete() = %q", text)
	}

	if got["model"] != "gpt-test" || got["temperature"] != float64(0) || got["max_tokens"] != float64(300) {
		t.Fatalf("payload = %#v", got)
	}
	messages, _ := got["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("messages = %#v", got["messages"])
	}
	message, _ := messages[0].(map[string]any)
	if message["role"] != "user" || message["content"] != "Вопрос: сколько видео?\nSQL:" {
		t.Fatalf("message = %#v", message)
	}
}

func TestOpenAICompleterFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"bad key"}`},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "malformed body", status: http.StatusOK, body: `not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			completer, err := NewOpenAICompleter(OpenAIConfig{BaseURL: server.URL, APIKey: "sk-test"})
			if err != nil {
				t.Fatalf("NewOpenAICompleter() error = %v", err)
			}
			if _, err := completer.Complete(context.Background(), "prompt"); !errors.Is(err, ErrCompletion) {
				t.Fatalf("error = %v, want ErrCompletion", err)
			}
		})
	}
}

func TestNewOpenAICompleterValidatesConfig(t *testing.T) {
	if _, err := NewOpenAICompleter(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAICompleter(OpenAIConfig{BaseURL: "http://localhost"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
