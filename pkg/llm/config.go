package llm

import (
	"fmt"
	"strings"
	"time"

	"spyglass/pkg/config"
)

type Config struct {
	Provider string
	APIKey   string
	APIURL   string
	Timeout  time.Duration
}

// LoadConfig reads client settings for one provider family from
// <FAMILY>_API_KEY / <FAMILY>_API_URL env vars.
func LoadConfig(family string) Config {
	prefix := strings.ToUpper(family)
	return Config{
		Provider: strings.ToLower(family),
		APIKey:   config.GetEnv(prefix+"_API_KEY", ""),
		APIURL:   config.GetEnv(prefix+"_API_URL", ""),
		Timeout:  config.GetEnvDuration(prefix+"_TIMEOUT", 0),
	}
}

// NewClient builds an Invoker for the configured provider family.
func NewClient(cfg Config) (Invoker, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	case "ollama":
		return NewOllamaClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
