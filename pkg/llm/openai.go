// Package llm adapts chat-completion APIs to the control loop's model client contract.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/minhyannv/mcp-agent-go/pkg/conversation"
	"github.com/minhyannv/mcp-agent-go/pkg/errorsx"
	loggerpkg "github.com/minhyannv/mcp-agent-go/pkg/logger"
	"github.com/minhyannv/mcp-agent-go/pkg/tools"
)

const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"

	GroqBaseURL      = "https://api.groq.com/openai/v1"
	DefaultGroqModel = "llama-3.1-8b-instant"
)

// Config holds the model endpoint settings.
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(c *OpenAIClient) {
		c.logger = loggerpkg.OrNop(l)
	}
}

// WithVerbose enables request/response debug logging.
func WithVerbose(v bool) Option {
	return func(c *OpenAIClient) {
		c.verbose = v
	}
}

// WithRequestOptions appends raw openai-go request options.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(c *OpenAIClient) {
		c.requestOpts = append(c.requestOpts, opts...)
	}
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client      openai.Client
	model       string
	requestOpts []option.RequestOption

	logger  loggerpkg.Logger
	verbose bool
}

// New validates cfg and builds a client. Credentials are taken from cfg only.
func New(cfg Config, opts ...Option) (*OpenAIClient, error) {
	cfg = normalize(cfg)
	if cfg.APIKey == "" {
		return nil, errors.New("APIKey is not set")
	}
	if cfg.Model == "" {
		return nil, errors.New("Model is not set")
	}

	c := &OpenAIClient{model: cfg.Model, logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, c.requestOpts...)
	c.client = openai.NewClient(reqOpts...)

	loggerpkg.Debug(c.verbose, c.logger, "model client ready", map[string]any{
		"provider": cfg.Provider,
		"model":    cfg.Model,
		"base_url": cfg.BaseURL,
	})
	return c, nil
}

func normalize(cfg Config) Config {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Provider == ProviderGroq {
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultGroqModel
		}
	}
	return cfg
}

// Complete asks the model for the next assistant message. Every failure is
// reported as *errorsx.ModelUnavailableError.
func (c *OpenAIClient) Complete(ctx context.Context, msgs []conversation.Message, schemas []tools.Schema) (conversation.Assistant, error) {
	params, err := c.newChatParams(msgs, schemas)
	if err != nil {
		return conversation.Assistant{}, &errorsx.ModelUnavailableError{Err: err}
	}

	loggerpkg.Debugf(c.verbose, c.logger, "[verbose] chat: sending %d message(s), %d tool(s)", len(params.Messages), len(params.Tools))
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return conversation.Assistant{}, &errorsx.ModelUnavailableError{Err: err}
	}
	if len(completion.Choices) == 0 {
		return conversation.Assistant{}, &errorsx.ModelUnavailableError{Err: errors.New("empty completion choices")}
	}
	choice := completion.Choices[0]
	loggerpkg.Debugf(c.verbose, c.logger, "[verbose] chat: finish_reason=%s tool_calls=%d", choice.FinishReason, len(choice.Message.ToolCalls))
	return fromCompletionMessage(choice.Message), nil
}

func (c *OpenAIClient) newChatParams(msgs []conversation.Message, schemas []tools.Schema) (openai.ChatCompletionNewParams, error) {
	messages, err := toMessageParams(msgs)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
		Tools:    toToolParams(schemas),
	}, nil
}

func toMessageParams(msgs []conversation.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for i, msg := range msgs {
		switch m := msg.(type) {
		case conversation.System:
			out = append(out, openai.SystemMessage(m.Content))
		case conversation.User:
			out = append(out, openai.UserMessage(m.Content))
		case conversation.Assistant:
			out = append(out, assistantParam(m))
		case conversation.ToolResult:
			out = append(out, openai.ToolMessage(m.Content, m.CallID))
		default:
			return nil, fmt.Errorf("invalid message at index %d: %T", i, msg)
		}
	}
	return out, nil
}

func assistantParam(m conversation.Assistant) openai.ChatCompletionMessageParamUnion {
	param := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != "" || len(m.ToolCalls) == 0 {
		param.Content.OfString = openai.String(m.Content)
	}
	for _, call := range m.ToolCalls {
		args := strings.TrimSpace(call.Arguments)
		if args == "" {
			args = "{}"
		}
		param.ToolCalls = append(param.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: args,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &param}
}

func toToolParams(schemas []tools.Schema) []openai.ChatCompletionToolParam {
	if len(schemas) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolParam, 0, len(schemas))
	for _, s := range schemas {
		params := s.Parameters
		if len(params) == 0 {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		fn := openai.FunctionDefinitionParam{
			Name:       s.Name,
			Parameters: openai.FunctionParameters(params),
		}
		if s.Description != "" {
			fn.Description = openai.String(s.Description)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out
}

func fromCompletionMessage(msg openai.ChatCompletionMessage) conversation.Assistant {
	content := msg.Content
	if content == "" && msg.Refusal != "" {
		content = msg.Refusal
	}
	out := conversation.Assistant{Content: content}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, conversation.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out
}
