package config

import (
	"strings"
	"time"

	"spyglass/pkg/config"
)

// Config stores environment configuration for Spyglass.
type Config struct {
	Port        string
	DatabaseURL string

	LLMProviders    []string // provider families to register clients for
	CallTimeout     time.Duration
	MaxOutputTokens int

	BucketConcurrency int
	PromptMaxLength   int
	MaxTopics         int
	SampleItems       int

	AgentEnabled  bool
	AgentInterval time.Duration
	AgentLookback time.Duration

	AdminAPIKey string
}

// LoadConfig loads the Spyglass configuration from environment variables.
func LoadConfig() Config {
	var providers []string
	for _, provider := range strings.Split(config.GetEnv("LLM_PROVIDERS", "openai"), ",") {
		provider = strings.TrimSpace(provider)
		if provider != "" {
			providers = append(providers, provider)
		}
	}
	return Config{
		Port:        config.GetEnv("PORT", "18030"),
		DatabaseURL: config.RequireEnv("DATABASE_URL"),

		LLMProviders:    providers,
		CallTimeout:     config.GetEnvDuration("LLM_CALL_TIMEOUT", 2*time.Minute),
		MaxOutputTokens: config.GetEnvInt("LLM_MAX_OUTPUT_TOKENS", 1024),

		BucketConcurrency: config.GetEnvInt("ANALYSIS_CONCURRENCY", 3),
		PromptMaxLength:   config.GetEnvInt("PROMPT_MAX_LENGTH", 12000),
		MaxTopics:         config.GetEnvInt("ANALYSIS_MAX_TOPICS", 10),
		SampleItems:       config.GetEnvInt("ANALYSIS_SAMPLE_ITEMS", 20),

		AgentEnabled:  config.GetEnvBool("AGENT_ENABLED", true),
		AgentInterval: config.GetEnvDuration("AGENT_INTERVAL", time.Hour),
		AgentLookback: config.GetEnvDuration("AGENT_LOOKBACK", 24*time.Hour),

		AdminAPIKey: config.GetEnv("ADMIN_API_KEY", ""),
	}
}
