// Package ai wraps the natural-language oracle used for structured
// extraction: an OpenAI-compatible chat-completions endpoint called once per
// operation with a fixed schema prompt and a JSON response format. No
// streaming, no multi-turn state.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors for the two oracle failure classes callers branch on.
// Extraction failures happen before any persistence mutation and drop the
// message; evaluation failures leave the proposal unverdicted for retry on
// the next read.
var (
	ErrExtraction = errors.New("ai: proposal extraction failed")
	ErrEvaluation = errors.New("ai: compliance evaluation failed")
)

// Client calls an OpenAI-compatible chat-completions API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// Config carries the oracle endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient builds an oracle client from config. A zero timeout defaults to
// 60 seconds; extraction calls on large email bodies can be slow.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// completeJSON sends one system+user exchange requesting a JSON object and
// decodes the reply into out.
func (c *Client) completeJSON(ctx context.Context, system, user string, temperature float64, out interface{}) error {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    temperature,
	}
	bodyBytes, _ := json.Marshal(reqBody)

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call oracle: %w", err)
	}
	defer resp.Body.Close()

	respBytes, _ := io.ReadAll(resp.Body)

	var result chatResponse
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return fmt.Errorf("decode oracle response: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("oracle error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return errors.New("oracle returned no choices")
	}
	if err := json.Unmarshal([]byte(result.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("malformed oracle output: %w", err)
	}
	return nil
}
