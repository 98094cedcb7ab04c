// Package googleai provides a text-generation client backed by the Gemini API.
package googleai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Config for the Gemini client.
type Config struct {
	APIKey string
	Model  string
}

// Client calls the Gemini API for single-turn text generation.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini-backed client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{client: client, model: cfg.Model}, nil
}

// Name returns the configured model name.
func (c *Client) Name() string {
	return c.model
}

// Complete sends a single prompt (with optional system prompt) and returns the
// model's text response.
func (c *Client) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	var genConfig *genai.GenerateContentConfig
	if strings.TrimSpace(systemPrompt) != "" {
		genConfig = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genConfig)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini api error: empty response")
	}
	return text, nil
}
