package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	ProviderYandex = "yandex"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultOpenAIBaseURL = "https://api.openai.com"
)

type Settings struct {
	Provider    string
	BaseURL     string
	APIKey      string
	FolderID    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// RateLimit is completions per second; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// NewCompleter builds the provider named in settings, wrapped in a rate
// limiter when one is configured.
func NewCompleter(ctx context.Context, settings Settings) (Completer, error) {
	var (
		completer Completer
		err       error
	)
	provider := strings.ToLower(strings.TrimSpace(settings.Provider))
	if provider == "" {
		provider = ProviderYandex
	}
	switch provider {
	case ProviderYandex:
		completer, err = NewYandexCompleter(YandexConfig{
			Endpoint:    settings.BaseURL,
			APIKey:      settings.APIKey,
			FolderID:    settings.FolderID,
			Model:       settings.Model,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
			Timeout:     settings.Timeout,
		})
	case ProviderOpenAI:
		baseURL := settings.BaseURL
		if strings.TrimSpace(baseURL) == "" {
			baseURL = defaultOpenAIBaseURL
		}
		completer, err = NewOpenAICompleter(OpenAIConfig{
			BaseURL:     baseURL,
			APIKey:      settings.APIKey,
			Model:       settings.Model,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
			Timeout:     settings.Timeout,
		})
	case ProviderGemini:
		completer, err = NewGeminiCompleter(ctx, GeminiConfig{
			APIKey:      settings.APIKey,
			Model:       settings.Model,
			Temperature: settings.Temperature,
			MaxTokens:   settings.MaxTokens,
			Timeout:     settings.Timeout,
			Endpoint:    settings.BaseURL,
		})
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", settings.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s completer: %w", provider, err)
	}

	if settings.RateLimit > 0 {
		burst := settings.RateBurst
		if burst <= 0 {
			burst = 1
		}
		completer = RateLimited(completer, rate.NewLimiter(rate.Limit(settings.RateLimit), burst))
	}
	return completer, nil
}
