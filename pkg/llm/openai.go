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

type OpenAIClient struct {
	client *http.Client
	apiKey string
	apiURL string
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		client: &http.Client{Timeout: timeout},
		apiKey: cfg.APIKey,
		apiURL: apiURL,
	}
}

func (c *OpenAIClient) Invoke(ctx context.Context, model, prompt string, maxTokens int) (Completion, error) {
	if model == "" {
		return Completion{}, errors.New("openai model is required")
	}
	reqBody := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt},
		},
	}
	if maxTokens > 0 {
		reqBody.MaxTokens = maxTokens
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Completion{}, &TransportError{Provider: "openai", Model: model, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return Completion{}, &TransportError{
			Provider: "openai",
			Model:    model,
			Err:      fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Completion{}, &TransportError{Provider: "openai", Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(decoded.Choices) == 0 {
		return Completion{}, &TransportError{Provider: "openai", Model: model, Err: errors.New("empty choices")}
	}

	return Completion{
		Text: strings.TrimSpace(decoded.Choices[0].Message.Content),
		Usage: Usage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
		},
	}, nil
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}
