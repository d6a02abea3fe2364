// Package llm provides the chat-completion capability the pipeline stages
// call. The HTTP client targets any OpenAI-compatible gateway; all stage
// level retry policy lives with the stages, while this client only retries
// transport-level failures.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client completes a system+user prompt pair into model text.
type Client interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// GatewayClient talks to an OpenAI-compatible chat-completions endpoint.
type GatewayClient struct {
	URL    string
	APIKey string
	Model  string

	// HTTPClient defaults to a client with a 60s timeout.
	HTTPClient *http.Client

	// MaxElapsed bounds transport-level retries. Defaults to 30s.
	MaxElapsed time.Duration
}

// NewGatewayClient builds a client for the given gateway URL, key and model.
func NewGatewayClient(url, apiKey, model string) (*GatewayClient, error) {
	if url == "" {
		return nil, fmt.Errorf("llm gateway URL not configured")
	}
	if model == "" {
		return nil, fmt.Errorf("llm model not configured")
	}
	return &GatewayClient{
		URL:        url,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		MaxElapsed: 30 * time.Second,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete implements Client. Server errors (5xx) and transport failures
// are retried with exponential backoff; client errors (4xx) are returned
// immediately since retrying them cannot help.
func (c *GatewayClient) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var content string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("llm server error (%d): %s", resp.StatusCode, truncate(respBody, 200))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("llm request rejected (%d): %s", resp.StatusCode, truncate(respBody, 200)))
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decode llm response: %w", err))
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("llm response had no choices")
		}
		content = parsed.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxElapsed()
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}
	return content, nil
}

func (c *GatewayClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

func (c *GatewayClient) maxElapsed() time.Duration {
	if c.MaxElapsed > 0 {
		return c.MaxElapsed
	}
	return 30 * time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
