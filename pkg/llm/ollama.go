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

type OllamaClient struct {
	client *http.Client
	apiURL string
}

func NewOllamaClient(cfg Config) *OllamaClient {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// Local models can be slow on first load
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		client: &http.Client{Timeout: timeout},
		apiURL: apiURL,
	}
}

func (c *OllamaClient) Invoke(ctx context.Context, model, prompt string, maxTokens int) (Completion, error) {
	if model == "" {
		return Completion{}, errors.New("ollama model is required")
	}
	reqBody := ollamaRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	}
	if maxTokens > 0 {
		reqBody.Options = &ollamaOptions{NumPredict: maxTokens}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return Completion{}, fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Completion{}, &TransportError{Provider: "ollama", Model: model, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return Completion{}, &TransportError{
			Provider: "ollama",
			Model:    model,
			Err:      fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))),
		}
	}

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Completion{}, &TransportError{Provider: "ollama", Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}

	return Completion{
		Text: strings.TrimSpace(decoded.Response),
		Usage: Usage{
			PromptTokens:     decoded.PromptEvalCount,
			CompletionTokens: decoded.EvalCount,
		},
	}, nil
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}
