package nl2sql

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultYandexEndpoint = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
	defaultYandexModel    = "yandexgpt/latest"
)

type YandexConfig struct {
	Endpoint    string
	APIKey      string
	FolderID    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// YandexCompleter calls the YandexGPT foundation models completion API.
type YandexCompleter struct {
	endpoint    string
	apiKey      string
	modelURI    string
	temperature float64
	maxTokens   int
	http        jsonClient
}

func NewYandexCompleter(cfg YandexConfig) (*YandexCompleter, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	folderID := strings.TrimSpace(cfg.FolderID)
	if folderID == "" {
		return nil, fmt.Errorf("folder id is required")
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultYandexEndpoint
	}
	model := strings.Trim(strings.TrimSpace(cfg.Model), "/")
	if model == "" {
		model = defaultYandexModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &YandexCompleter{
		endpoint:    endpoint,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		modelURI:    "gpt://" + folderID + "/" + model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		http:        newJSONClient(cfg.Timeout),
	}, nil
}

type yandexMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type yandexRequest struct {
	ModelURI          string `json:"modelUri"`
	CompletionOptions struct {
		Stream      bool    `json:"stream"`
		Temperature float64 `json:"temperature"`
		// The API takes maxTokens as a decimal string.
		MaxTokens string `json:"maxTokens"`
	} `json:"completionOptions"`
	Messages []yandexMessage `json:"messages"`
}

type yandexResponse struct {
	Result struct {
		Alternatives []struct {
			Message yandexMessage `json:"message"`
			Status  string        `json:"status"`
		} `json:"alternatives"`
	} `json:"result"`
}

func (c *YandexCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	payload := yandexRequest{
		ModelURI: c.modelURI,
		Messages: []yandexMessage{{Role: "user", Text: prompt}},
	}
	payload.CompletionOptions.Temperature = c.temperature
	payload.CompletionOptions.MaxTokens = strconv.Itoa(c.maxTokens)

	var parsed yandexResponse
	headers := map[string]string{"Authorization": "Api-Key " + c.apiKey}
	if err := c.http.postJSON(ctx, c.endpoint, headers, payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Result.Alternatives) == 0 {
		return "", fmt.Errorf("%w: empty completion alternatives", ErrCompletion)
	}
	return parsed.Result.Alternatives[0].Message.Text, nil
}
