package nl2sql

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestNewCompleterSelectsProvider(t *testing.T) {
	yandex, err := NewCompleter(context.Background(), Settings{APIKey: "k", FolderID: "f"})
	if err != nil {
		t.Fatalf("NewCompleter(default) error = %v", err)
	}
	if _, ok := yandex.(*YandexCompleter); !ok {
		t.Fatalf("default provider = %T", yandex)
	}

	openai, err := NewCompleter(context.Background(), Settings{Provider: "OpenAI", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewCompleter(openai) error = %v", err)
	}
	typed, ok := openai.(*OpenAICompleter)
	if !ok {
		t.Fatalf("openai provider = %T", openai)
	}
	if typed.baseURL != defaultOpenAIBaseURL {
		t.Fatalf("baseURL = %q", typed.baseURL)
	}

	limited, err := NewCompleter(context.Background(), Settings{APIKey: "k", FolderID: "f", RateLimit: 2})
	if err != nil {
		t.Fatalf("NewCompleter(limited) error = %v", err)
	}
	if _, ok := limited.(*rateLimited); !ok {
		t.Fatalf("limited provider = %T", limited)
	}
}

func TestNewCompleterRejectsUnknownProvider(t *testing.T) {
	if _, err := NewCompleter(context.Background(), Settings{Provider: "llama", APIKey: "k"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := NewCompleter(context.Background(), Settings{Provider: "yandex", APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing folder id")
	}
}

func TestRateLimitedWaitsForToken(t *testing.T) {
	calls := 0
	next := CompleterFunc(func(context.Context, string) (string, error) {
		calls++
		return "SELECT 1;", nil
	})
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	completer := RateLimited(next, limiter)

	if _, err := completer.Complete(context.Background(), "p"); err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := completer.Complete(ctx, "p")
	if !errors.Is(err, ErrCompletion) {
		t.Fatalf("second Complete() error = %v, want ErrCompletion", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRateLimitedNilLimiterPassesThrough(t *testing.T) {
	next := CompleterFunc(func(context.Context, string) (string, error) { return "x", nil })
	if got := RateLimited(next, nil); got == nil {
		t.Fatal("RateLimited returned nil")
	}
}

type closingCompleter struct {
	closed bool
}

func (c *closingCompleter) Complete(context.Context, string) (string, error) {
	return "SELECT 1;", nil
}

func (c *closingCompleter) Close() error {
	c.closed = true
	return nil
}

func TestRateLimitedForwardsClose(t *testing.T) {
	inner := &closingCompleter{}
	completer := RateLimited(inner, rate.NewLimiter(rate.Inf, 1))
	closer, ok := completer.(io.Closer)
	if !ok {
		t.Fatal("rate limited completer does not implement io.Closer")
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !inner.closed {
		t.Fatal("inner completer was not closed")
	}

	plain := RateLimited(CompleterFunc(func(context.Context, string) (string, error) { return "", nil }), rate.NewLimiter(rate.Inf, 1))
	if err := plain.(io.Closer).Close(); err != nil {
		t.Fatalf("Close() without inner closer error = %v", err)
	}
}
