package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type AnthropicClient struct {
	client *http.Client
	apiKey string
	apiURL string
}

const defaultAnthropicMaxTokens = 4096

func NewAnthropicClient(cfg Config) *AnthropicClient {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.anthropic.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicClient{
		client: &http.Client{Timeout: timeout},
		apiKey: cfg.APIKey,
		apiURL: apiURL,
	}
}

func (c *AnthropicClient) Invoke(ctx context.Context, model, prompt string, maxTokens int) (Completion, error) {
	if model == "" {
		return Completion{}, errors.New("anthropic model is required")
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	reqBody := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Anthropic-Version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return Completion{}, &TransportError{Provider: "anthropic", Model: model, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return Completion{}, &TransportError{
			Provider: "anthropic",
			Model:    model,
			Err:      fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Completion{}, &TransportError{Provider: "anthropic", Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return Completion{
		Text: strings.TrimSpace(text.String()),
		Usage: Usage{
			PromptTokens:     decoded.Usage.InputTokens,
			CompletionTokens: decoded.Usage.OutputTokens,
		},
	}, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
