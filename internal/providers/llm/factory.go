package llm

import (
	"context"
	"fmt"
	"strings"

	"uxforge/internal/infra"
	"uxforge/internal/materialize"
	"uxforge/internal/synthesis"
)

// Provider names accepted by New.
const (
	ProviderStatic    = "static"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
)

type Config struct {
	Provider      string
	Model         string
	OpenAIKey     string
	OpenAIBaseURL string
	AnthropicKey  string
	AWSRegion     string
	AWSProfile    string
	MaxIterations int
	Logger        infra.Logger
}

// New builds the synthesizer and page agent for cfg.Provider. The OpenAI
// provider has no tool loop, so it is paired with the static agent unless an
// Anthropic key is also configured.
func New(ctx context.Context, cfg Config) (synthesis.ContentSynthesizer, materialize.Agent, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", ProviderStatic:
		return NewStatic(), StaticAgent{}, nil
	case ProviderOpenAI:
		synth, err := NewOpenAI(OpenAIOptions{APIKey: cfg.OpenAIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.Model})
		if err != nil {
			return nil, nil, err
		}
		if strings.TrimSpace(cfg.AnthropicKey) == "" {
			return synth, StaticAgent{}, nil
		}
		agent, err := NewAnthropic(ctx, AnthropicOptions{
			APIKey:        cfg.AnthropicKey,
			MaxIterations: cfg.MaxIterations,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return synth, agent, nil
	case ProviderAnthropic, ProviderBedrock:
		client, err := NewAnthropic(ctx, AnthropicOptions{
			APIKey:        cfg.AnthropicKey,
			Model:         cfg.Model,
			UseBedrock:    provider == ProviderBedrock,
			AWSRegion:     cfg.AWSRegion,
			AWSProfile:    cfg.AWSProfile,
			MaxIterations: cfg.MaxIterations,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}
