package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClientInvoke(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("expected auth header")
		}
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-test" {
			t.Fatalf("unexpected model %q", req.Model)
		}
		if req.MaxTokens != 256 {
			t.Fatalf("expected max_tokens 256, got %d", req.MaxTokens)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"hello world"},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3}}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{APIURL: server.URL, APIKey: "test-key"})
	completion, err := client.Invoke(context.Background(), "gpt-test", "hi", 256)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if completion.Text != "hello world" {
		t.Fatalf("unexpected text %q", completion.Text)
	}
	if completion.Usage.PromptTokens != 12 || completion.Usage.CompletionTokens != 3 {
		t.Fatalf("unexpected usage %+v", completion.Usage)
	}
	if completion.Usage.Total() != 15 {
		t.Fatalf("expected total 15, got %d", completion.Usage.Total())
	}
}

func TestOpenAIClientInvoke_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewOpenAIClient(Config{APIURL: server.URL})
	_, err := client.Invoke(context.Background(), "gpt-test", "hi", 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if te.Provider != "openai" || te.Model != "gpt-test" {
		t.Fatalf("unexpected error context: %+v", te)
	}
}

func TestAnthropicClientInvoke(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Fatalf("expected api key header")
		}
		if r.URL.Path != "/v1/messages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"content":[{"type":"text","text":"summary text"}],"stop_reason":"end_turn","usage":{"input_tokens":40,"output_tokens":9}}`)
	}))
	defer server.Close()

	client := NewAnthropicClient(Config{APIURL: server.URL, APIKey: "test-key"})
	completion, err := client.Invoke(context.Background(), "claude-test", "hi", 0)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if completion.Text != "summary text" {
		t.Fatalf("unexpected text %q", completion.Text)
	}
	if completion.Usage.PromptTokens != 40 || completion.Usage.CompletionTokens != 9 {
		t.Fatalf("unexpected usage %+v", completion.Usage)
	}
}

func TestOllamaClientInvoke(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Fatalf("expected stream false")
		}
		fmt.Fprint(w, `{"response":"local answer","done":true,"prompt_eval_count":20,"eval_count":5}`)
	}))
	defer server.Close()

	client := NewOllamaClient(Config{APIURL: server.URL})
	completion, err := client.Invoke(context.Background(), "llama-test", "hi", 64)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if completion.Text != "local answer" {
		t.Fatalf("unexpected text %q", completion.Text)
	}
	if completion.Usage.Total() != 25 {
		t.Fatalf("expected total 25, got %d", completion.Usage.Total())
	}
}

func TestTransportRouting(t *testing.T) {
	t.Parallel()

	transport := NewTransport()
	transport.Register("OpenAI", invokerFunc(func(_ context.Context, model, _ string, _ int) (Completion, error) {
		return Completion{Text: "routed:" + model}, nil
	}))

	if !transport.Has("openai") {
		t.Fatalf("expected case-insensitive registration")
	}

	completion, err := transport.Invoke(context.Background(), "openai", "gpt-test", "p", 0)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if completion.Text != "routed:gpt-test" {
		t.Fatalf("unexpected completion %q", completion.Text)
	}

	_, err = transport.Invoke(context.Background(), "mystery", "m", "p", 0)
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	if _, err := NewClient(Config{Provider: "mystery"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

type invokerFunc func(ctx context.Context, model, prompt string, maxTokens int) (Completion, error)

func (f invokerFunc) Invoke(ctx context.Context, model, prompt string, maxTokens int) (Completion, error) {
	return f(ctx, model, prompt, maxTokens)
}
