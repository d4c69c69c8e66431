// Package memory provides the agent's working memory: the paired
// conversation history for one user, with change notifications for
// persistence listeners.
package memory

import (
	"log/slog"
	"sync"

	"github.com/hetarolabs/samantha/ai"
)

// AddMessageEvent is delivered to listeners whenever a conversation is
// appended.
type AddMessageEvent struct {
	Conversation ai.Conversation
}

// AddMessageListener observes appended conversations. Listeners run
// synchronously on the appending goroutine; a panicking listener is
// recovered and logged so it cannot break the agent loop.
type AddMessageListener func(event AddMessageEvent)

// Memory holds the conversation history consulted and extended by the agent
// loop. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	history   []ai.Conversation
	listeners []AddMessageListener
}

// New creates a memory seeded with the given history.
func New(history []ai.Conversation) *Memory {
	return &Memory{history: history}
}

// History returns a snapshot of the conversation history.
func (m *Memory) History() []ai.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]ai.Conversation, len(m.history))
	copy(history, m.history)
	return history
}

// SetHistory replaces the conversation history. Listeners are not notified.
func (m *Memory) SetHistory(history []ai.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = history
}

// AddMessage notifies listeners of the new conversation and appends it to
// the history.
func (m *Memory) AddMessage(request, response ai.ChatMessage) {
	conversation := ai.Conversation{Request: request, Response: response}

	m.mu.Lock()
	listeners := make([]AddMessageListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.history = append(m.history, conversation)
	m.mu.Unlock()

	for _, listener := range listeners {
		notify(listener, AddMessageEvent{Conversation: conversation})
	}
}

// OnAddMessage registers a listener for appended conversations.
func (m *Memory) OnAddMessage(listener AddMessageListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

func notify(listener AddMessageListener, event AddMessageEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("memory listener panicked", "panic", r)
		}
	}()
	listener(event)
}
