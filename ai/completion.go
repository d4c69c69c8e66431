package ai

import (
	"context"

	"github.com/pkg/errors"
)

// FinishReason classifies why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "STOP"
	FinishReasonLength        FinishReason = "LENGTH"
	FinishReasonFunctionCall  FinishReason = "FUNCTION_CALL"
	FinishReasonContentFilter FinishReason = "CONTENT_FILTER"
	FinishReasonOther         FinishReason = "OTHER"
	FinishReasonUnknown       FinishReason = "UNKNOWN"
)

// ResponseType identifies the payload variant of a model response.
type ResponseType string

const (
	ResponseTypeText         ResponseType = "text"
	ResponseTypeFunctionCall ResponseType = "function"
	ResponseTypeImage        ResponseType = "image"
)

// Payload is a tagged union of model output: text, a function call, or an
// image, discriminated by Type.
type Payload struct {
	Type         ResponseType    `json:"type"`
	Text         string          `json:"text,omitempty"`
	FunctionCall *FunctionCall   `json:"functionCall,omitempty"`
	Image        *ImageReference `json:"image,omitempty"`
}

// TextPayload builds a plain text payload.
func TextPayload(text string) Payload {
	return Payload{Type: ResponseTypeText, Text: text}
}

// Candidate is one ranked model response tagged with its finish reason.
type Candidate struct {
	FinishReason FinishReason `json:"finishReason"`
	Response     Payload      `json:"response"`
}

// ErrUnknownResponseType is returned when a model payload cannot be
// represented as a chat message.
var ErrUnknownResponseType = errors.New("unknown response type")

// ChatCompletion is the conversational model contract. Implementations wrap
// a vendor SDK; the core never talks to a vendor directly.
type ChatCompletion interface {
	// Generate submits the message sequence with optional tool declarations
	// and returns one or more ranked candidates.
	Generate(ctx context.Context, messages []ChatMessage, tools []Tool) ([]Candidate, error)

	// GenerateStream is the streaming counterpart. Each element on the
	// candidate channel is one generation step; the channel is closed when
	// the stream ends. At most one error is sent on the error channel.
	GenerateStream(ctx context.Context, messages []ChatMessage, tools []Tool) (<-chan []Candidate, <-chan error)

	// SetSystemInstruction replaces the model's system instruction.
	SetSystemInstruction(instruction string)
}

// ConvertCandidate maps a model candidate to the assistant message appended
// to history.
func ConvertCandidate(candidate Candidate) (ChatMessage, error) {
	switch candidate.Response.Type {
	case ResponseTypeText:
		return ChatMessage{Role: RoleAssistant, Text: candidate.Response.Text}, nil
	case ResponseTypeImage:
		return ChatMessage{Role: RoleAssistant, Image: candidate.Response.Image}, nil
	case ResponseTypeFunctionCall:
		return ChatMessage{Role: RoleAssistant, FunctionCall: candidate.Response.FunctionCall}, nil
	default:
		return ChatMessage{}, errors.Wrapf(ErrUnknownResponseType, "type %q", candidate.Response.Type)
	}
}
