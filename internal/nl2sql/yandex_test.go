package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestYandexCompleterRequestShape(t *testing.T) {
	var got yandexRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Api-Key secret" {
			t.Fatalf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":{"alternatives":[{"message":{"role":"assistant","text":"` +
			"```sql\\nSELECT COUNT(*) FROM videos;\\n```" + `"},"status":"ALTERNATIVE_STATUS_FINAL"}]}}`))
	}))
	defer server.Close()

	completer, err := NewYandexCompleter(YandexConfig{Endpoint: server.URL, APIKey: "secret", FolderID: "b1gfolder"})
	if err != nil {
		t.Fatalf("NewYandexCompleter() error = %v", err)
	}
	text, err := completer.Complete(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "```sql\nSELECT COUNT(*) FROM videos;\n```" {
		t.Fatalf("Complete() = %q", text)
	}

	if got.ModelURI != "gpt://b1gfolder/yandexgpt/latest" {
		t.Fatalf("modelUri = %q", got.ModelURI)
	}
	if got.CompletionOptions.Stream || got.CompletionOptions.Temperature != 0 || got.CompletionOptions.MaxTokens != "300" {
		t.Fatalf("completionOptions = %+v", got.CompletionOptions)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" || got.Messages[0].Text != "prompt text" {
		t.Fatalf("messages = %+v", got.Messages)
	}
}

func TestYandexCompleterFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "non-2xx", status: http.StatusBadRequest, body: `{"error":{"message":"folder not found"}}`},
		{name: "empty alternatives", status: http.StatusOK, body: `{"result":{"alternatives":[]}}`},
		{name: "missing result", status: http.StatusOK, body: `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			completer, err := NewYandexCompleter(YandexConfig{Endpoint: server.URL, APIKey: "k", FolderID: "f"})
			if err != nil {
				t.Fatalf("NewYandexCompleter() error = %v", err)
			}
			if _, err := completer.Complete(context.Background(), "prompt"); !errors.Is(err, ErrCompletion) {
				t.Fatalf("error = %v, want ErrCompletion", err)
			}
		})
	}
}

func TestYandexCompleterHonoursTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	completer, err := NewYandexCompleter(YandexConfig{Endpoint: server.URL, APIKey: "k", FolderID: "f", Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewYandexCompleter() error = %v", err)
	}
	if _, err := completer.Complete(context.Background(), "prompt"); !errors.Is(err, ErrCompletion) {
		t.Fatalf("error = %v, want ErrCompletion", err)
	}
}

func TestYandexCompleterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer server.Close()

	completer, err := NewYandexCompleter(YandexConfig{Endpoint: server.URL, APIKey: "k", FolderID: "f"})
	if err != nil {
		t.Fatalf("NewYandexCompleter() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = completer.Complete(ctx, "prompt")
	if !errors.Is(err, ErrCompletion) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v", err)
	}
}

func TestNewYandexCompleterValidatesConfig(t *testing.T) {
	if _, err := NewYandexCompleter(YandexConfig{FolderID: "f"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewYandexCompleter(YandexConfig{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing folder id")
	}
}
