// Package ai defines the data model and capability contracts shared by the
// agent loop and the session store: chat messages, conversations, the chat
// completion model interface, and the tool interface.
package ai

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleTool marks a function-call-response message carrying the result of
	// an executed tool back to the model.
	RoleTool Role = "tool"
)

// ImageReference points at an externally hosted image.
type ImageReference struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
}

// FunctionCall is a model request to invoke a named tool.
type FunctionCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionCallResponse carries the result of an executed tool, paired to its
// originating call by ID.
type FunctionCallResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Args     map[string]any `json:"args"`
	Response any            `json:"response"`
}

// ChatMessage is a tagged union: exactly one of Text/Image,
// FunctionCall, or FunctionCallResponse is populated.
type ChatMessage struct {
	Role                 Role                  `json:"role"`
	Text                 string                `json:"text,omitempty"`
	Image                *ImageReference       `json:"image,omitempty"`
	FunctionCall         *FunctionCall         `json:"functionCall,omitempty"`
	FunctionCallResponse *FunctionCallResponse `json:"functionCallResponse,omitempty"`
}

// NewUserMessage builds a plain text user message.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Text: text}
}

// NewUserImageMessage builds a user message with text and an image reference.
func NewUserImageMessage(text, imageURI, mimeType string) ChatMessage {
	return ChatMessage{
		Role:  RoleUser,
		Text:  text,
		Image: &ImageReference{URI: imageURI, MIMEType: mimeType},
	}
}

// Conversation is the atomic unit of stored history: one request message
// (user input or a function-call-response) paired with the assistant message
// it produced.
type Conversation struct {
	Request  ChatMessage `json:"request"`
	Response ChatMessage `json:"response"`
}

// Flatten expands paired conversations into the flat message sequence a
// model consumes.
func Flatten(history []Conversation) []ChatMessage {
	messages := make([]ChatMessage, 0, len(history)*2)
	for _, conversation := range history {
		messages = append(messages, conversation.Request, conversation.Response)
	}
	return messages
}

// PruneOrphanedCalls removes function-call messages that are not immediately
// followed by their matching function-call-response. Some models terminate a
// turn mid-tool-call; submitting the dangling call back upstream is rejected,
// so it has to be filtered out of every model-bound sequence.
func PruneOrphanedCalls(messages []ChatMessage) []ChatMessage {
	pruned := make([]ChatMessage, 0, len(messages))
	for i, message := range messages {
		if message.FunctionCall != nil {
			if i+1 >= len(messages) {
				continue
			}
			next := messages[i+1]
			if next.FunctionCallResponse == nil || next.FunctionCallResponse.ID != message.FunctionCall.ID {
				continue
			}
		}
		pruned = append(pruned, message)
	}
	return pruned
}

// RepairHistory applies the same orphan rule to paired history: a leading
// conversation whose request is a function-call-response has lost its call
// and is dropped, and a conversation whose response is a function call is
// dropped unless the next conversation's request carries the matching
// response.
func RepairHistory(history []Conversation) []Conversation {
	repaired := make([]Conversation, 0, len(history))
	for i, conversation := range history {
		if i == 0 && conversation.Request.Role == RoleTool {
			continue
		}
		if call := conversation.Response.FunctionCall; call != nil {
			if i+1 >= len(history) {
				continue
			}
			next := history[i+1].Request.FunctionCallResponse
			if next == nil || next.ID != call.ID {
				continue
			}
		}
		repaired = append(repaired, conversation)
	}
	return repaired
}
