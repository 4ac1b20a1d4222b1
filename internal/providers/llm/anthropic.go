package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"uxforge/internal/domain"
	"uxforge/internal/infra"
	"uxforge/internal/materialize"
	"uxforge/internal/synthesis"
)

const (
	DefaultMaxIterations = 12
	completeMaxTokens    = 4096
	agentMaxTokens       = 8192
	maxToolResultBytes   = 16 * 1024
)

// AnthropicOptions configures the Messages client. With UseBedrock the AWS
// default credential chain is used instead of an API key.
type AnthropicOptions struct {
	APIKey        string
	Model         string
	BaseURL       string
	UseBedrock    bool
	AWSRegion     string
	AWSProfile    string
	MaxIterations int
	HTTPClient    *http.Client
	Logger        infra.Logger
}

// Anthropic is both a ContentSynthesizer and a page-editing Agent.
type Anthropic struct {
	client        anthropic.Client
	model         anthropic.Model
	maxIterations int
	logger        infra.Logger
}

func NewAnthropic(ctx context.Context, opts AnthropicOptions) (*Anthropic, error) {
	var reqOpts []option.RequestOption
	if opts.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if opts.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(opts.AWSRegion))
		}
		if opts.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.AWSProfile))
		}
		reqOpts = append(reqOpts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		key := strings.TrimSpace(opts.APIKey)
		if key == "" {
			return nil, errors.New("llm: anthropic api key missing")
		}
		reqOpts = append(reqOpts, option.WithAPIKey(key))
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	model := anthropic.Model(strings.TrimSpace(opts.Model))
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if opts.UseBedrock {
		model = bedrockModel(model)
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	return &Anthropic{
		client:        anthropic.NewClient(reqOpts...),
		model:         model,
		maxIterations: maxIter,
		logger:        opts.Logger,
	}, nil
}

// bedrockModel maps API model names to Bedrock cross-region inference profiles.
func bedrockModel(model anthropic.Model) anthropic.Model {
	profiles := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:         "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.Model("claude-sonnet-4-5-20250929"): "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.Model("claude-haiku-4-5-20251001"):  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:        "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:         "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if p, ok := profiles[model]; ok {
		return anthropic.Model(p)
	}
	return model
}

func (a *Anthropic) Model() anthropic.Model { return a.model }

func (a *Anthropic) Complete(ctx context.Context, p synthesis.Prompt) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: completeMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: p.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: anthropic %s: %w: %w", p.Task, domain.ErrProviderFailure, err)
	}
	a.logger.Debug().
		Str("task", string(p.Task)).
		Int64("tokens_in", resp.Usage.InputTokens).
		Int64("tokens_out", resp.Usage.OutputTokens).
		Msg("llm: anthropic completion")

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("llm: anthropic %s: %w: empty response", p.Task, domain.ErrProviderFailure)
	}
	return sb.String(), nil
}

// RunTask drives the tool-use loop until the model ends its turn or the
// iteration cap is reached.
func (a *Anthropic) RunTask(ctx context.Context, task materialize.AgentTask, tools materialize.Toolbox) (string, error) {
	system, user, err := task.Prompt()
	if err != nil {
		return "", err
	}
	defs := toolDefinitions(tools)
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
	}
	logger := a.logger.With().Str("target", task.TargetPath).Logger()

	for iter := 1; iter <= a.maxIterations; iter++ {
		resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     a.model,
			MaxTokens: agentMaxTokens,
			System:    []anthropic.TextBlockParam{{Text: system}},
			Messages:  messages,
			Tools:     defs,
		})
		if err != nil {
			return "", fmt.Errorf("llm: agent iteration %d: %w: %w", iter, domain.ErrProviderFailure, err)
		}

		var assistant, results []anthropic.ContentBlockParamUnion
		var text strings.Builder
		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(variant.Text)
				assistant = append(assistant, anthropic.NewTextBlock(variant.Text))
			case anthropic.ToolUseBlock:
				assistant = append(assistant, anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))
				out, isErr := a.invoke(ctx, tools, variant.Name, variant.Input)
				logger.Debug().Int("iteration", iter).Str("tool", variant.Name).Bool("error", isErr).Msg("llm: agent tool call")
				results = append(results, anthropic.NewToolResultBlock(variant.ID, out, isErr))
			}
		}

		if resp.StopReason == anthropic.StopReasonEndTurn || len(results) == 0 {
			status := strings.TrimSpace(text.String())
			if status == "" {
				status = "done"
			}
			logger.Info().Int("iterations", iter).Msg("llm: agent finished")
			return status, nil
		}
		messages = append(messages,
			anthropic.NewAssistantMessage(assistant...),
			anthropic.NewUserMessage(results...),
		)
	}
	return "", fmt.Errorf("llm: agent: max iterations (%d) reached", a.maxIterations)
}

// invoke runs a tool call and reports failures back to the model as tool
// errors rather than aborting the loop.
func (a *Anthropic) invoke(ctx context.Context, tools materialize.Toolbox, name string, input json.RawMessage) (string, bool) {
	args, err := toolArgs(input)
	if err != nil {
		return err.Error(), true
	}
	out, err := tools.Invoke(ctx, name, args)
	if err != nil {
		if out != "" {
			return tail(out+"\n"+err.Error(), maxToolResultBytes), true
		}
		return err.Error(), true
	}
	return tail(out, maxToolResultBytes), false
}

func toolDefinitions(tools materialize.Toolbox) []anthropic.ToolUnionParam {
	defs := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]interface{}, len(t.Params))
		var required []string
		for _, p := range t.Params {
			props[p.Name] = map[string]interface{}{
				"type":        "string",
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		defs = append(defs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		})
	}
	return defs
}

// toolArgs flattens a tool input object into string arguments.
func toolArgs(input json.RawMessage) (map[string]string, error) {
	args := map[string]string{}
	if len(input) == 0 {
		return args, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(input, &raw); err != nil {
		return nil, fmt.Errorf("invalid tool input: %w", err)
	}
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			args[k] = val
		case nil:
			args[k] = ""
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("invalid tool input %q: %w", k, err)
			}
			args[k] = string(b)
		}
	}
	return args, nil
}

// tail keeps the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[len(s)-n:], "")
}
