// Package openaicompat provides a chat-completions client for
// OpenAI-compatible endpoints (OpenAI, Moonshot, and similar providers).
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Config for the chat-completions client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client calls an OpenAI-compatible chat-completions API.
type Client struct {
	config Config
	client *http.Client
}

// NewClient creates a client with provider defaults filled in.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Client{
		config: cfg,
		client: &http.Client{},
	}
}

// Name returns the configured model name.
func (c *Client) Name() string {
	return c.config.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error interface{} `json:"error"`
}

// Complete sends a single prompt (with optional system prompt) and returns the
// model's text response.
func (c *Client) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload := map[string]interface{}{
		"model":    c.config.Model,
		"messages": messages,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %v", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("chat api error: %v", result.Error)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat api error: empty choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
