package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"uxforge/internal/domain"
	"uxforge/internal/synthesis"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIOptions configures the chat completions synthesizer.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OpenAI implements synthesis.ContentSynthesizer with chat completions.
type OpenAI struct {
	model  string
	client openai.Client
}

func NewOpenAI(opts OpenAIOptions) (*OpenAI, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("llm: openai api key missing")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(key)}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{model: model, client: openai.NewClient(reqOpts...)}, nil
}

func (o *OpenAI) Complete(ctx context.Context, p synthesis.Prompt) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: openai %s: %w: %w", p.Task, domain.ErrProviderFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: openai %s: %w: empty choices", p.Task, domain.ErrProviderFailure)
	}
	return resp.Choices[0].Message.Content, nil
}
