package nl2sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-flash"

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// Timeout bounds each GenerateContent call; zero means 30s.
	Timeout time.Duration
	// Endpoint overrides the API host; empty keeps the library default.
	Endpoint string
}

// GeminiCompleter calls Google Generative AI models through the genai client.
type GeminiCompleter struct {
	client   *genai.Client
	generate func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)
	timeout  time.Duration
}

func NewGeminiCompleter(ctx context.Context, cfg GeminiConfig) (*GeminiCompleter, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(cfg.Temperature))
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SetCandidateCount(1)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &GeminiCompleter{
		client: client,
		generate: func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
			return model.GenerateContent(ctx, genai.Text(prompt))
		},
		timeout: timeout,
	}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: generate content: %w", ErrCompletion, err)
	}
	return candidateText(resp)
}

func (c *GeminiCompleter) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty gemini candidates", ErrCompletion)
	}
	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	if builder.Len() == 0 {
		return "", fmt.Errorf("%w: gemini candidate has no text parts", ErrCompletion)
	}
	return builder.String(), nil
}
