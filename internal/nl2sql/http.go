package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 300
	maxErrorBody     = 2048
)

type jsonClient struct {
	client *http.Client
}

func newJSONClient(timeout time.Duration) jsonClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return jsonClient{client: &http.Client{Timeout: timeout}}
}

// postJSON sends payload and decodes a 2xx response into out. Every failure
// wraps ErrCompletion.
func (c jsonClient) postJSON(ctx context.Context, url string, headers map[string]string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %w", ErrCompletion, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrCompletion, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request completion: %w", ErrCompletion, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response body: %w", ErrCompletion, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(rawBody) > maxErrorBody {
			rawBody = rawBody[:maxErrorBody]
		}
		return fmt.Errorf("%w: status=%d body=%s", ErrCompletion, resp.StatusCode, string(rawBody))
	}
	if err := json.Unmarshal(rawBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrCompletion, err)
	}
	return nil
}
