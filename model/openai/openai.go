// Package openai provides a reasoner adapter for the OpenAI Chat Completions
// API, including streaming with function/tool calling. With a stream handler
// configured, text deltas are forwarded as they arrive and the aggregated
// step is returned once the stream finishes.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// allowing reconstruction of complete tool calls when the finish reason is
// emitted.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI reasoner adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
	// StreamHandler receives text deltas as they arrive. When nil the
	// adapter uses the non-streaming API.
	StreamHandler func(delta string)
}

// Reasoner wraps the OpenAI Chat Completions API behind the model.Reasoner
// interface.
type Reasoner struct {
	client *openai.Client
	opts   Options
}

var _ model.Reasoner = (*Reasoner)(nil)

// New creates a new OpenAI reasoner using the official client.
func New(optFns ...func(o *Options)) *Reasoner {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)
	return &Reasoner{client: &client, opts: opts}
}

// NewFromClient creates a new OpenAI reasoner from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Reasoner {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Reasoner{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4o,
		Temperature:         0.7,
		MaxCompletionTokens: 8192,
	}
}

// WithModel sets the model id.
func WithModel(m string) func(o *Options) {
	return func(o *Options) { o.Model = m }
}

// WithMaxCompletionTokens sets the completion token cap.
func WithMaxCompletionTokens(n int64) func(o *Options) {
	return func(o *Options) { o.MaxCompletionTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) func(o *Options) {
	return func(o *Options) { o.Temperature = t }
}

// WithStreamHandler enables streaming and forwards text deltas to fn.
func WithStreamHandler(fn func(delta string)) func(o *Options) {
	return func(o *Options) { o.StreamHandler = fn }
}

// Next implements model.Reasoner.
func (r *Reasoner) Next(ctx context.Context, req model.Request) (*model.Step, error) {
	params := r.buildParams(req)
	if r.opts.StreamHandler != nil {
		return r.nextStreaming(ctx, params)
	}
	return r.nextBlocking(ctx, params)
}

// buildParams assembles the request parameters including tool definitions.
func (r *Reasoner) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               r.opts.Model,
		Temperature:         openai.Float(r.opts.Temperature),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, desc := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        desc.Name,
				Description: openai.String(desc.Description),
				Parameters:  desc.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

// buildMessages converts conversation history into OpenAI chat messages.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleUser:
			if msg.Content != "" {
				messages = append(messages, openai.UserMessage(msg.Content))
			}
		case core.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
			for i, call := range msg.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   call.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: string(call.Arguments),
					},
				}
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls,
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case core.RoleTool:
			for _, res := range msg.ToolResults {
				messages = append(messages, openai.ToolMessage(res.Content, res.CallID))
			}
		}
	}
	return messages
}

// nextBlocking processes a normal (non-streaming) completion.
func (r *Reasoner) nextBlocking(ctx context.Context, params openai.ChatCompletionNewParams) (*model.Step, error) {
	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api error: no choices returned")
	}
	choice := resp.Choices[0]

	step := &model.Step{
		Text:       choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: &model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		step.ToolCalls = append(step.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: normalizeArgs(tc.Function.Arguments),
		})
	}
	return step, nil
}

// nextStreaming aggregates streaming deltas into a complete step, forwarding
// text deltas to the configured handler as they arrive.
func (r *Reasoner) nextStreaming(ctx context.Context, params openai.ChatCompletionNewParams) (*model.Step, error) {
	stream := r.client.Chat.Completions.NewStreaming(ctx, params)

	step := &model.Step{}
	toolAgg := map[int64]*aggCall{}
	var order []int64
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				step.Text += choice.Delta.Content
				r.opts.StreamHandler(choice.Delta.Content)
			}
			for _, tc := range choice.Delta.ToolCalls {
				ac, ok := toolAgg[tc.Index]
				if !ok {
					ac = &aggCall{}
					toolAgg[tc.Index] = ac
					order = append(order, tc.Index)
				}
				if tc.ID != "" {
					ac.id = tc.ID
				}
				if tc.Function.Name != "" {
					ac.name = tc.Function.Name
				}
				ac.args += tc.Function.Arguments
			}
			if choice.FinishReason != "" {
				step.StopReason = choice.FinishReason
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai streaming error: %w", err)
	}
	for _, idx := range order {
		ac := toolAgg[idx]
		step.ToolCalls = append(step.ToolCalls, core.ToolCall{
			ID:        ac.id,
			Name:      ac.name,
			Arguments: normalizeArgs(ac.args),
		})
	}
	return step, nil
}

// normalizeArgs guarantees tool call arguments are a valid JSON object.
func normalizeArgs(args string) json.RawMessage {
	if args == "" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}

// Info returns metadata describing this OpenAI reasoner implementation.
func (r *Reasoner) Info() model.Info {
	return model.Info{
		Name:          r.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
