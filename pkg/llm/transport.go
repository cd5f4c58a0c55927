package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Usage holds the token counters reported by a provider for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns the combined token count for the call.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Completion is the result of a single model invocation.
type Completion struct {
	Text  string
	Usage Usage
}

// Invoker executes a prompt against a named model and returns the completion
// text plus the provider-reported usage counters.
type Invoker interface {
	Invoke(ctx context.Context, model, prompt string, maxTokens int) (Completion, error)
}

// TransportError wraps a failed model invocation with provider/model context.
// Timeouts and HTTP failures both surface as TransportError; callers treat
// them identically.
type TransportError struct {
	Provider string
	Model    string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport (%s/%s): %v", e.Provider, e.Model, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ErrUnknownProvider is returned when no client is registered for a provider family.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Transport routes invocations to per-provider clients keyed by provider
// family name ("openai", "anthropic", "ollama"). Registration happens at
// startup; lookups afterward are read-only and safe for concurrent use.
type Transport struct {
	clients map[string]Invoker
}

func NewTransport() *Transport {
	return &Transport{clients: make(map[string]Invoker)}
}

// Register adds a client for a provider family, replacing any previous one.
func (t *Transport) Register(family string, client Invoker) {
	t.clients[strings.ToLower(family)] = client
}

// Has reports whether a client is registered for the provider family.
func (t *Transport) Has(family string) bool {
	_, ok := t.clients[strings.ToLower(family)]
	return ok
}

// Invoke routes the call to the client registered for the provider family.
func (t *Transport) Invoke(ctx context.Context, family, model, prompt string, maxTokens int) (Completion, error) {
	client, ok := t.clients[strings.ToLower(family)]
	if !ok {
		return Completion{}, &TransportError{Provider: family, Model: model, Err: ErrUnknownProvider}
	}
	completion, err := client.Invoke(ctx, model, prompt, maxTokens)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			return Completion{}, err
		}
		return Completion{}, &TransportError{Provider: family, Model: model, Err: err}
	}
	return completion, nil
}
