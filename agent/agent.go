// Package agent implements the tool-calling orchestration loop: it feeds
// the conversation to a chat completion model, dispatches requested tool
// calls, and loops until the model produces a terminal text answer.
package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/hetarolabs/samantha/ai"
	"github.com/hetarolabs/samantha/memory"
)

// DefaultMaxToolHops bounds tool dispatches within one turn. A model that
// keeps requesting tools past this bound terminates the turn with
// ErrMaxToolHops instead of recursing forever.
const DefaultMaxToolHops = 8

// fallbackText is returned verbatim when a tool execution fails, so the
// user always receives a reply.
const fallbackText = "Sorry, something went wrong. Please try again later."

// Params configures a ChatAgent.
type Params struct {
	SystemInstruction string
	Completion        ai.ChatCompletion
	Tools             []ai.Tool
	Memory            *memory.Memory
	// MaxToolHops overrides DefaultMaxToolHops when positive.
	MaxToolHops int
}

// ChatAgent runs the orchestration loop for one user. It is constructed per
// request; the session store supplies the seed history and a Memory
// listener persists every appended conversation.
type ChatAgent struct {
	completion  ai.ChatCompletion
	memory      *memory.Memory
	maxToolHops int

	mu                sync.Mutex
	tools             []ai.Tool
	chatObservers     []func(ChatEvent)
	responseObservers []func(ResponseEvent)
	toolObservers     []func(ToolExecutedEvent)
}

// New creates a chat agent and installs its system instruction on the
// completion model.
func New(params Params) *ChatAgent {
	mem := params.Memory
	if mem == nil {
		mem = memory.New(nil)
	}
	maxToolHops := params.MaxToolHops
	if maxToolHops <= 0 {
		maxToolHops = DefaultMaxToolHops
	}

	params.Completion.SetSystemInstruction(params.SystemInstruction)

	return &ChatAgent{
		completion:  params.Completion,
		memory:      mem,
		maxToolHops: maxToolHops,
		tools:       params.Tools,
	}
}

// Memory exposes the agent's working memory, so callers can subscribe to
// persistence notifications.
func (a *ChatAgent) Memory() *memory.Memory {
	return a.memory
}

// AddTool binds another tool to the agent.
func (a *ChatAgent) AddTool(tool ai.Tool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tools = append(a.tools, tool)
}

func (a *ChatAgent) snapshotTools() []ai.Tool {
	a.mu.Lock()
	defer a.mu.Unlock()
	tools := make([]ai.Tool, len(a.tools))
	copy(tools, a.tools)
	return tools
}

// ChatOption customizes one chat turn.
type ChatOption func(*ai.ChatMessage)

// WithImage attaches an image reference to the user message.
func WithImage(uri, mimeType string) ChatOption {
	return func(message *ai.ChatMessage) {
		message.Image = &ai.ImageReference{URI: uri, MIMEType: mimeType}
	}
}

// Chat runs one turn: it submits the pruned history plus the new user
// message, dispatches any tool calls the model requests, and returns the
// terminal candidate.
func (a *ChatAgent) Chat(ctx context.Context, input string, opts ...ChatOption) (ai.Candidate, error) {
	userMessage := ai.NewUserMessage(input)
	for _, opt := range opts {
		opt(&userMessage)
	}

	a.emitChat(input)

	candidates, err := a.generate(ctx, userMessage)
	if err != nil {
		return ai.Candidate{}, err
	}
	return a.dispatch(ctx, candidates[0], 0)
}

// ChatStream is the streaming variant of Chat. Each element on the result
// channel is one terminal-or-intermediate step; tool dispatch happens
// synchronously between elements. At most one error is sent on the error
// channel, after which both channels are closed.
func (a *ChatAgent) ChatStream(ctx context.Context, input string) (<-chan ai.Candidate, <-chan error) {
	userMessage := ai.NewUserMessage(input)

	a.emitChat(input)

	results := make(chan ai.Candidate)
	errCh := make(chan error, 1)

	messages := ai.PruneOrphanedCalls(append(ai.Flatten(a.memory.History()), userMessage))
	stream, streamErrs := a.completion.GenerateStream(ctx, messages, a.snapshotTools())

	go func() {
		defer close(results)
		defer close(errCh)

		for candidates := range stream {
			a.emitChatResponse(candidates)

			assistantMessage, err := ai.ConvertCandidate(candidates[0])
			if err != nil {
				errCh <- errors.Wrap(ErrGenerate, err.Error())
				return
			}
			a.memory.AddMessage(userMessage, assistantMessage)

			result, err := a.dispatch(ctx, candidates[0], 0)
			if err != nil {
				errCh <- err
				return
			}

			select {
			case results <- result:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}

		if err := <-streamErrs; err != nil {
			errCh <- errors.Wrap(ErrGenerate, err.Error())
		}
	}()

	return results, errCh
}

// generate builds the model-bound sequence for the request message, invokes
// the model, and appends the resulting conversation to memory.
func (a *ChatAgent) generate(ctx context.Context, requestMessage ai.ChatMessage) ([]ai.Candidate, error) {
	messages := ai.PruneOrphanedCalls(append(ai.Flatten(a.memory.History()), requestMessage))

	candidates, err := a.completion.Generate(ctx, messages, a.snapshotTools())
	if err != nil {
		return nil, errors.Wrap(ErrGenerate, err.Error())
	}
	if len(candidates) == 0 {
		return nil, errors.Wrap(ErrGenerate, "empty candidate list")
	}

	a.emitChatResponse(candidates)

	assistantMessage, err := ai.ConvertCandidate(candidates[0])
	if err != nil {
		return nil, errors.Wrap(ErrGenerate, err.Error())
	}
	a.memory.AddMessage(requestMessage, assistantMessage)

	return candidates, nil
}

// dispatch inspects the leading candidate: text is terminal, a function
// call runs the named tool and resubmits its result to the model. Tool
// execution failures are converted to a fixed fallback reply so the loop
// always terminates with something to say.
func (a *ChatAgent) dispatch(ctx context.Context, candidate ai.Candidate, hops int) (ai.Candidate, error) {
	switch candidate.Response.Type {
	case ai.ResponseTypeText:
		return candidate, nil

	case ai.ResponseTypeFunctionCall:
		call := candidate.Response.FunctionCall
		if hops >= a.maxToolHops {
			return ai.Candidate{}, errors.Wrapf(ErrMaxToolHops, "%d hops", hops)
		}

		tool := a.findTool(call.Name)
		if tool == nil {
			return ai.Candidate{}, errors.Wrap(ErrFunctionNotFound, call.Name)
		}

		result, err := tool.Execute(ctx, call.Args)
		if err != nil {
			slog.Error("tool execution failed", "tool", call.Name, "error", err)
			return ai.Candidate{
				FinishReason: ai.FinishReasonStop,
				Response:     ai.TextPayload(fallbackText),
			}, nil
		}

		a.emitToolExecuted(call.Name, call.Args, result)

		responseMessage := ai.ChatMessage{
			Role: ai.RoleTool,
			FunctionCallResponse: &ai.FunctionCallResponse{
				ID:       call.ID,
				Name:     call.Name,
				Args:     call.Args,
				Response: map[string]any{"content": result},
			},
		}

		candidates, err := a.generate(ctx, responseMessage)
		if err != nil {
			return ai.Candidate{}, err
		}
		return a.dispatch(ctx, candidates[0], hops+1)

	default:
		return ai.Candidate{}, errors.Wrapf(ErrGenerate, "unsupported response type %q", candidate.Response.Type)
	}
}

func (a *ChatAgent) findTool(name string) ai.Tool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tool := range a.tools {
		if tool.Name() == name {
			return tool
		}
	}
	return nil
}
