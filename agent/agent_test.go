package agent

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hetarolabs/samantha/ai"
	"github.com/hetarolabs/samantha/memory"
)

// stubCompletion replays a scripted sequence of candidate lists.
type stubCompletion struct {
	mu                sync.Mutex
	script            [][]ai.Candidate
	calls             [][]ai.ChatMessage
	err               error
	systemInstruction string
}

func (s *stubCompletion) Generate(_ context.Context, messages []ai.ChatMessage, _ []ai.Tool) ([]ai.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, messages)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.script) == 0 {
		return nil, errors.New("script exhausted")
	}
	next := s.script[0]
	s.script = s.script[1:]
	return next, nil
}

func (s *stubCompletion) GenerateStream(ctx context.Context, messages []ai.ChatMessage, tools []ai.Tool) (<-chan []ai.Candidate, <-chan error) {
	candidates := make(chan []ai.Candidate)
	errCh := make(chan error, 1)
	go func() {
		defer close(candidates)
		defer close(errCh)
		next, err := s.Generate(ctx, messages, tools)
		if err != nil {
			errCh <- err
			return
		}
		candidates <- next
	}()
	return candidates, errCh
}

func (s *stubCompletion) SetSystemInstruction(instruction string) {
	s.systemInstruction = instruction
}

func (s *stubCompletion) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func textCandidate(text string) []ai.Candidate {
	return []ai.Candidate{{FinishReason: ai.FinishReasonStop, Response: ai.TextPayload(text)}}
}

func callCandidate(id, name string, args map[string]any) []ai.Candidate {
	return []ai.Candidate{{
		FinishReason: ai.FinishReasonFunctionCall,
		Response: ai.Payload{
			Type:         ai.ResponseTypeFunctionCall,
			FunctionCall: &ai.FunctionCall{ID: id, Name: name, Args: args},
		},
	}}
}

// stubTool returns a fixed result or error and records its arguments.
type stubTool struct {
	name   string
	result any
	err    error

	mu   sync.Mutex
	args map[string]any
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return t.name }
func (t *stubTool) Parameters() ai.FunctionParameters {
	return ai.FunctionParameters{Type: ai.ParameterTypeObject}
}

func (t *stubTool) Execute(_ context.Context, args map[string]any) (any, error) {
	t.mu.Lock()
	t.args = args
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

func TestChatPlainText(t *testing.T) {
	completion := &stubCompletion{script: [][]ai.Candidate{textCandidate("I am fine.")}}
	a := New(Params{SystemInstruction: "You are Samantha.", Completion: completion})

	toolEvents := 0
	a.OnToolExecuted(func(ToolExecutedEvent) { toolEvents++ })

	result, err := a.Chat(context.Background(), "Hello, how are you?")
	require.NoError(t, err)
	require.Equal(t, ai.FinishReasonStop, result.FinishReason)
	require.Equal(t, "I am fine.", result.Response.Text)
	require.Zero(t, toolEvents)
	require.Equal(t, "You are Samantha.", completion.systemInstruction)

	history := a.Memory().History()
	require.Len(t, history, 1)
	require.Equal(t, "Hello, how are you?", history[0].Request.Text)
	require.Equal(t, "I am fine.", history[0].Response.Text)
}

func TestChatToolDispatch(t *testing.T) {
	weatherReport := map[string]any{
		"location":    "New York",
		"temperature": 72,
		"conditions":  "sunny",
		"unit":        "fahrenheit",
	}
	completion := &stubCompletion{script: [][]ai.Candidate{
		callCandidate("c1", "get_current_weather", map[string]any{"location": "New York"}),
		textCandidate("It is sunny today."),
	}}
	tool := &stubTool{name: "get_current_weather", result: weatherReport}
	a := New(Params{SystemInstruction: "sys", Completion: completion, Tools: []ai.Tool{tool}})

	var executed []ToolExecutedEvent
	a.OnToolExecuted(func(event ToolExecutedEvent) { executed = append(executed, event) })

	result, err := a.Chat(context.Background(), "What's the weather in New York?")
	require.NoError(t, err)
	require.Equal(t, ai.FinishReasonStop, result.FinishReason)
	require.Equal(t, "It is sunny today.", result.Response.Text)

	require.Len(t, executed, 1)
	require.Equal(t, "get_current_weather", executed[0].ToolName)
	require.Equal(t, map[string]any{"location": "New York"}, executed[0].Args)
	require.Equal(t, weatherReport, executed[0].Result)

	history := a.Memory().History()
	require.Len(t, history, 2)
	require.NotNil(t, history[0].Response.FunctionCall)
	require.NotNil(t, history[1].Request.FunctionCallResponse)
	require.Equal(t, "c1", history[1].Request.FunctionCallResponse.ID)
	require.Equal(t, "It is sunny today.", history[1].Response.Text)
}

func TestChatFunctionNotFound(t *testing.T) {
	completion := &stubCompletion{script: [][]ai.Candidate{
		callCandidate("c1", "no_such_tool", map[string]any{}),
	}}
	a := New(Params{SystemInstruction: "sys", Completion: completion})

	_, err := a.Chat(context.Background(), "hi")
	require.ErrorIs(t, err, ErrFunctionNotFound)
	require.Equal(t, 1, completion.callCount())
}

func TestChatToolFailureReturnsFallback(t *testing.T) {
	completion := &stubCompletion{script: [][]ai.Candidate{
		callCandidate("c1", "get_current_weather", map[string]any{"location": "New York"}),
	}}
	tool := &stubTool{name: "get_current_weather", err: errors.New("upstream down")}
	a := New(Params{SystemInstruction: "sys", Completion: completion, Tools: []ai.Tool{tool}})

	result, err := a.Chat(context.Background(), "What's the weather?")
	require.NoError(t, err)
	require.Equal(t, ai.FinishReasonStop, result.FinishReason)
	require.Equal(t, "Sorry, something went wrong. Please try again later.", result.Response.Text)
}

func TestChatMaxToolHops(t *testing.T) {
	completion := &stubCompletion{script: [][]ai.Candidate{
		callCandidate("c1", "echo", map[string]any{}),
		callCandidate("c2", "echo", map[string]any{}),
		callCandidate("c3", "echo", map[string]any{}),
	}}
	tool := &stubTool{name: "echo", result: "ok"}
	a := New(Params{SystemInstruction: "sys", Completion: completion, Tools: []ai.Tool{tool}, MaxToolHops: 2})

	_, err := a.Chat(context.Background(), "hi")
	require.ErrorIs(t, err, ErrMaxToolHops)
}

func TestChatGenerateFailure(t *testing.T) {
	t.Run("ModelError", func(t *testing.T) {
		completion := &stubCompletion{err: errors.New("rate limited")}
		a := New(Params{SystemInstruction: "sys", Completion: completion})

		_, err := a.Chat(context.Background(), "hi")
		require.ErrorIs(t, err, ErrGenerate)
	})

	t.Run("EmptyCandidates", func(t *testing.T) {
		completion := &stubCompletion{script: [][]ai.Candidate{{}}}
		a := New(Params{SystemInstruction: "sys", Completion: completion})

		_, err := a.Chat(context.Background(), "hi")
		require.ErrorIs(t, err, ErrGenerate)
	})

	t.Run("UnsupportedPayloadType", func(t *testing.T) {
		completion := &stubCompletion{script: [][]ai.Candidate{{
			{FinishReason: ai.FinishReasonStop, Response: ai.Payload{Type: "audio"}},
		}}}
		a := New(Params{SystemInstruction: "sys", Completion: completion})

		_, err := a.Chat(context.Background(), "hi")
		require.ErrorIs(t, err, ErrGenerate)
	})
}

func TestChatPrunesOrphanedHistory(t *testing.T) {
	mem := memory.New([]ai.Conversation{{
		Request: ai.NewUserMessage("weather?"),
		Response: ai.ChatMessage{
			Role:         ai.RoleAssistant,
			FunctionCall: &ai.FunctionCall{ID: "c9", Name: "get_current_weather"},
		},
	}})
	completion := &stubCompletion{script: [][]ai.Candidate{textCandidate("hello")}}
	a := New(Params{SystemInstruction: "sys", Completion: completion, Memory: mem})

	_, err := a.Chat(context.Background(), "hi")
	require.NoError(t, err)

	// the orphaned function call must not reach the model
	require.Len(t, completion.calls, 1)
	for _, message := range completion.calls[0] {
		require.Nil(t, message.FunctionCall)
	}
}

func TestChatObserverPanicIsIsolated(t *testing.T) {
	completion := &stubCompletion{script: [][]ai.Candidate{textCandidate("hello")}}
	a := New(Params{SystemInstruction: "sys", Completion: completion})
	a.OnChat(func(ChatEvent) { panic("observer failure") })
	a.OnChatResponse(func(ResponseEvent) { panic("observer failure") })

	result, err := a.Chat(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "hello", result.Response.Text)
}

func TestChatStream(t *testing.T) {
	completion := &stubCompletion{script: [][]ai.Candidate{textCandidate("streamed reply")}}
	a := New(Params{SystemInstruction: "sys", Completion: completion})

	results, errCh := a.ChatStream(context.Background(), "hi")

	var received []ai.Candidate
	for candidate := range results {
		received = append(received, candidate)
	}
	require.NoError(t, <-errCh)
	require.Len(t, received, 1)
	require.Equal(t, "streamed reply", received[0].Response.Text)
	require.Len(t, a.Memory().History(), 1)
}

func TestMemoryListenerSeesToolConversations(t *testing.T) {
	completion := &stubCompletion{script: [][]ai.Candidate{
		callCandidate("c1", "echo", map[string]any{"value": "x"}),
		textCandidate("done"),
	}}
	tool := &stubTool{name: "echo", result: "x"}
	a := New(Params{SystemInstruction: "sys", Completion: completion, Tools: []ai.Tool{tool}})

	var persisted []ai.Conversation
	a.Memory().OnAddMessage(func(event memory.AddMessageEvent) {
		persisted = append(persisted, event.Conversation)
	})

	_, err := a.Chat(context.Background(), "hi")
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	require.NotNil(t, persisted[1].Request.FunctionCallResponse)
}
