package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hetarolabs/samantha/ai"
)

func TestMemoryAddMessage(t *testing.T) {
	m := New(nil)

	var events []AddMessageEvent
	m.OnAddMessage(func(event AddMessageEvent) {
		events = append(events, event)
	})

	request := ai.NewUserMessage("hi")
	response := ai.ChatMessage{Role: ai.RoleAssistant, Text: "hello"}
	m.AddMessage(request, response)

	history := m.History()
	require.Len(t, history, 1)
	require.Equal(t, request, history[0].Request)
	require.Equal(t, response, history[0].Response)

	require.Len(t, events, 1)
	require.Equal(t, history[0], events[0].Conversation)
}

func TestMemorySetHistory(t *testing.T) {
	m := New([]ai.Conversation{
		{Request: ai.NewUserMessage("old"), Response: ai.ChatMessage{Role: ai.RoleAssistant, Text: "old"}},
	})

	notified := false
	m.OnAddMessage(func(AddMessageEvent) { notified = true })

	replacement := []ai.Conversation{
		{Request: ai.NewUserMessage("new"), Response: ai.ChatMessage{Role: ai.RoleAssistant, Text: "new"}},
	}
	m.SetHistory(replacement)

	require.Equal(t, replacement, m.History())
	require.False(t, notified)
}

func TestMemoryHistoryIsSnapshot(t *testing.T) {
	m := New(nil)
	m.AddMessage(ai.NewUserMessage("hi"), ai.ChatMessage{Role: ai.RoleAssistant, Text: "hello"})

	snapshot := m.History()
	snapshot[0].Request.Text = "mutated"

	require.Equal(t, "hi", m.History()[0].Request.Text)
}

func TestMemoryPanickingListenerIsIsolated(t *testing.T) {
	m := New(nil)
	m.OnAddMessage(func(AddMessageEvent) { panic("listener failure") })

	called := false
	m.OnAddMessage(func(AddMessageEvent) { called = true })

	require.NotPanics(t, func() {
		m.AddMessage(ai.NewUserMessage("hi"), ai.ChatMessage{Role: ai.RoleAssistant, Text: "hello"})
	})
	require.True(t, called)
	require.Len(t, m.History(), 1)
}
