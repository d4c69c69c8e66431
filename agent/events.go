package agent

import (
	"log/slog"

	"github.com/hetarolabs/samantha/ai"
)

// ChatEvent is emitted when a chat turn starts.
type ChatEvent struct {
	Message string
	History []ai.Conversation
	Tools   []ai.Tool
}

// ResponseEvent is emitted for every raw candidate list the model returns.
type ResponseEvent struct {
	Candidates []ai.Candidate
	History    []ai.Conversation
	Tools      []ai.Tool
}

// ToolExecutedEvent is emitted after a tool runs successfully.
type ToolExecutedEvent struct {
	ToolName string
	Args     map[string]any
	Result   any
}

// OnChat registers an observer for chat-started events.
func (a *ChatAgent) OnChat(fn func(ChatEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chatObservers = append(a.chatObservers, fn)
}

// OnChatResponse registers an observer for raw model responses.
func (a *ChatAgent) OnChatResponse(fn func(ResponseEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responseObservers = append(a.responseObservers, fn)
}

// OnToolExecuted registers an observer for successful tool executions.
func (a *ChatAgent) OnToolExecuted(fn func(ToolExecutedEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.toolObservers = append(a.toolObservers, fn)
}

func (a *ChatAgent) emitChat(message string) {
	a.mu.Lock()
	observers := make([]func(ChatEvent), len(a.chatObservers))
	copy(observers, a.chatObservers)
	a.mu.Unlock()

	event := ChatEvent{Message: message, History: a.memory.History(), Tools: a.snapshotTools()}
	for _, observer := range observers {
		notify(func() { observer(event) })
	}
}

func (a *ChatAgent) emitChatResponse(candidates []ai.Candidate) {
	a.mu.Lock()
	observers := make([]func(ResponseEvent), len(a.responseObservers))
	copy(observers, a.responseObservers)
	a.mu.Unlock()

	event := ResponseEvent{Candidates: candidates, History: a.memory.History(), Tools: a.snapshotTools()}
	for _, observer := range observers {
		notify(func() { observer(event) })
	}
}

func (a *ChatAgent) emitToolExecuted(toolName string, args map[string]any, result any) {
	a.mu.Lock()
	observers := make([]func(ToolExecutedEvent), len(a.toolObservers))
	copy(observers, a.toolObservers)
	a.mu.Unlock()

	event := ToolExecutedEvent{ToolName: toolName, Args: args, Result: result}
	for _, observer := range observers {
		notify(func() { observer(event) })
	}
}

// notify runs one observer, recovering a panic so a broken observer cannot
// abort the turn.
func notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent observer panicked", "panic", r)
		}
	}()
	fn()
}
