package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"github.com/pkg/errors"
)

// OpenAIConfig configures the OpenAI-backed chat completion model.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string  // optional, for OpenAI-compatible endpoints
	Model       string  // default: gpt-4o-mini
	Temperature float32 // default: 1
	MaxTokens   int     // 0 means provider default
}

// OpenAIChatCompletion adapts the OpenAI chat completions API to the
// ChatCompletion contract.
type OpenAIChatCompletion struct {
	client            *openai.Client
	model             string
	temperature       float32
	maxTokens         int
	systemInstruction string
}

var _ ChatCompletion = (*OpenAIChatCompletion)(nil)

// NewOpenAIChatCompletion creates a new OpenAI chat completion model.
func NewOpenAIChatCompletion(cfg OpenAIConfig) *OpenAIChatCompletion {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 1
	}

	return &OpenAIChatCompletion{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// SetSystemInstruction replaces the system instruction prepended to every
// request.
func (c *OpenAIChatCompletion) SetSystemInstruction(instruction string) {
	c.systemInstruction = instruction
}

// Generate submits the message sequence and returns the ranked candidates.
func (c *OpenAIChatCompletion) Generate(ctx context.Context, messages []ChatMessage, tools []Tool) ([]Candidate, error) {
	request, err := c.buildRequest(messages, tools, false)
	if err != nil {
		return nil, err
	}

	result, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion request failed")
	}
	if len(result.Choices) == 0 {
		return nil, errors.New("no candidates returned")
	}

	choice := result.Choices[0]
	return convertChoice(choice.Message.Content, choice.Message.ToolCalls, convertFinishReason(choice.FinishReason))
}

// GenerateStream submits the message sequence and emits one candidate list
// per completed generation step. Text deltas and tool-call fragments are
// accumulated until the provider reports a finish reason.
func (c *OpenAIChatCompletion) GenerateStream(ctx context.Context, messages []ChatMessage, tools []Tool) (<-chan []Candidate, <-chan error) {
	candidateCh := make(chan []Candidate)
	errCh := make(chan error, 1)

	request, err := c.buildRequest(messages, tools, true)
	if err != nil {
		close(candidateCh)
		errCh <- err
		close(errCh)
		return candidateCh, errCh
	}

	go func() {
		defer close(candidateCh)
		defer close(errCh)

		stream, err := c.client.CreateChatCompletionStream(ctx, request)
		if err != nil {
			errCh <- errors.Wrap(err, "chat completion stream request failed")
			return
		}
		defer stream.Close()

		var text strings.Builder
		calls := newToolCallAccumulator()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- errors.Wrap(err, "chat completion stream receive failed")
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			text.WriteString(choice.Delta.Content)
			calls.add(choice.Delta.ToolCalls)

			if choice.FinishReason == "" || choice.FinishReason == openai.FinishReasonNull {
				continue
			}

			candidates, err := convertChoice(text.String(), calls.complete(), convertFinishReason(choice.FinishReason))
			if err != nil {
				errCh <- err
				return
			}

			select {
			case candidateCh <- candidates:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}

			text.Reset()
			calls = newToolCallAccumulator()
		}
	}()

	return candidateCh, errCh
}

func (c *OpenAIChatCompletion) buildRequest(messages []ChatMessage, tools []Tool, stream bool) (openai.ChatCompletionRequest, error) {
	converted, err := convertMessages(c.systemInstruction, messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    converted,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      stream,
	}
	for _, tool := range tools {
		request.Tools = append(request.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return request, nil
}

func convertMessages(systemInstruction string, messages []ChatMessage) ([]openai.ChatCompletionMessage, error) {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemInstruction != "" {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}

	for _, message := range messages {
		switch {
		case message.FunctionCall != nil:
			args, err := json.Marshal(message.FunctionCall.Args)
			if err != nil {
				args = []byte("{}")
			}
			converted = append(converted, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   message.FunctionCall.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      message.FunctionCall.Name,
						Arguments: string(args),
					},
				}},
			})

		case message.FunctionCallResponse != nil:
			content, err := json.Marshal(message.FunctionCallResponse.Response)
			if err != nil {
				return nil, errors.Wrap(err, "failed to marshal function call response")
			}
			converted = append(converted, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: message.FunctionCallResponse.ID,
				Content:    string(content),
			})

		case message.Image != nil:
			parts := []openai.ChatMessagePart{}
			if message.Text != "" {
				parts = append(parts, openai.ChatMessagePart{
					Type: openai.ChatMessagePartTypeText,
					Text: message.Text,
				})
			}
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    message.Image.URI,
					Detail: openai.ImageURLDetailHigh,
				},
			})
			converted = append(converted, openai.ChatCompletionMessage{
				Role:         convertRole(message.Role),
				MultiContent: parts,
			})

		case message.Text != "":
			converted = append(converted, openai.ChatCompletionMessage{
				Role:    convertRole(message.Role),
				Content: message.Text,
			})

		default:
			return nil, errors.New("invalid chat message: no payload")
		}
	}

	return converted, nil
}

func convertRole(role Role) string {
	switch role {
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}

func convertFinishReason(reason openai.FinishReason) FinishReason {
	switch reason {
	case openai.FinishReasonStop:
		return FinishReasonStop
	case openai.FinishReasonLength:
		return FinishReasonLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return FinishReasonFunctionCall
	case openai.FinishReasonContentFilter:
		return FinishReasonContentFilter
	case openai.FinishReasonNull:
		return FinishReasonUnknown
	default:
		return FinishReasonUnknown
	}
}

// convertChoice maps one provider choice into candidates. A choice carrying
// tool calls yields one function-call candidate per call; otherwise the
// text content yields a single text candidate.
func convertChoice(content string, toolCalls []openai.ToolCall, reason FinishReason) ([]Candidate, error) {
	if len(toolCalls) > 0 {
		candidates := make([]Candidate, 0, len(toolCalls))
		for _, call := range toolCalls {
			var args map[string]any
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				slog.Warn("failed to parse tool call arguments", "tool", call.Function.Name, "error", err)
				args = map[string]any{}
			}
			id := call.ID
			if id == "" {
				id = uuid.NewString()
			}
			candidates = append(candidates, Candidate{
				FinishReason: reason,
				Response: Payload{
					Type: ResponseTypeFunctionCall,
					FunctionCall: &FunctionCall{
						ID:   id,
						Name: call.Function.Name,
						Args: args,
					},
				},
			})
		}
		return candidates, nil
	}

	if content == "" {
		return nil, errors.New("no content in model response")
	}
	return []Candidate{{FinishReason: reason, Response: TextPayload(content)}}, nil
}

// toolCallAccumulator reassembles tool calls from streamed fragments, keyed
// by the provider's per-call index.
type toolCallAccumulator struct {
	order []int
	calls map[int]*streamedToolCall
}

type streamedToolCall struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[int]*streamedToolCall)}
}

func (a *toolCallAccumulator) add(fragments []openai.ToolCall) {
	for _, fragment := range fragments {
		index := 0
		if fragment.Index != nil {
			index = *fragment.Index
		}
		call, ok := a.calls[index]
		if !ok {
			call = &streamedToolCall{}
			a.calls[index] = call
			a.order = append(a.order, index)
		}
		if fragment.ID != "" {
			call.id = fragment.ID
		}
		if fragment.Function.Name != "" {
			call.name = fragment.Function.Name
		}
		call.args.WriteString(fragment.Function.Arguments)
	}
}

func (a *toolCallAccumulator) complete() []openai.ToolCall {
	completed := make([]openai.ToolCall, 0, len(a.order))
	for _, index := range a.order {
		call := a.calls[index]
		completed = append(completed, openai.ToolCall{
			ID:   call.id,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.name,
				Arguments: call.args.String(),
			},
		})
	}
	return completed
}
